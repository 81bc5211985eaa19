package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"serve", "--detach", "--addr", ":3000", "--detach=true"})
	want := []string{"serve", "--addr", ":3000"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPIDAndStateFiles(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "chamad.pid")

	if err := writePID(pidFile, 4242); err != nil {
		t.Fatal(err)
	}
	pid, err := readPID(pidFile)
	if err != nil || pid != 4242 {
		t.Fatalf("readPID = %d, %v", pid, err)
	}

	st := serverRuntimeState{PID: 4242, Addr: "127.0.0.1:3000", StartedAt: time.Now().UTC().Truncate(time.Second)}
	if err := writeState(statePath(pidFile), st); err != nil {
		t.Fatal(err)
	}
	got, err := readState(statePath(pidFile))
	if err != nil || got.Addr != st.Addr || !got.StartedAt.Equal(st.StartedAt) {
		t.Fatalf("readState = %+v, %v", got, err)
	}

	if err := os.WriteFile(pidFile, []byte("nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readPID(pidFile); err == nil {
		t.Error("garbage pid file should not parse")
	}
}

func TestEnsureServerNotRunningClearsStalePID(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "chamad.pid")

	if err := ensureServerNotRunning(pidFile); err != nil {
		t.Fatalf("missing pid file: %v", err)
	}

	if err := writePID(pidFile, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	if err := ensureServerNotRunning(pidFile); err == nil {
		t.Error("live pid should be reported as running")
	}

	// Far above any default pid_max.
	if err := writePID(pidFile, 1<<30); err != nil {
		t.Fatal(err)
	}
	if err := ensureServerNotRunning(pidFile); err != nil {
		t.Fatalf("stale pid: %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("stale pid file should be removed")
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("abcdefghijklmnopqrstuvwxyz"); got != "abcdefgh...wxyz" {
		t.Errorf("maskToken long = %q", got)
	}
	if got := maskToken("short"); got != "*****" {
		t.Errorf("maskToken short = %q", got)
	}
}

func TestValidURL(t *testing.T) {
	for _, ok := range []string{"http://127.0.0.1:3000", "https://api.example.org/api"} {
		if err := validURL(ok); err != nil {
			t.Errorf("validURL(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "localhost:3000", "/api"} {
		if err := validURL(bad); err == nil {
			t.Errorf("validURL(%q) should fail", bad)
		}
	}
}

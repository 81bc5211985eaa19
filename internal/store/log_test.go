package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/bl4ckh401/chama/internal/model"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "notifications.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []model.Notification{
		{Type: model.NotifyPayment, Message: "first", ReceivedAt: base},
		{Type: model.NotifyGroup, Message: "second", UserID: "u1", ReceivedAt: base.Add(time.Minute)},
		{Type: model.NotifyPayment, Message: "third", Data: json.RawMessage(`{"amount":"500"}`), ReceivedAt: base.Add(2 * time.Minute)},
	}
	for _, n := range entries {
		if _, err := l.Append(ctx, n); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Message != "third" || got[1].Message != "second" {
		t.Fatalf("Recent(2) = %+v", got)
	}
	if string(got[0].Data) != `{"amount":"500"}` {
		t.Errorf("Data = %s", got[0].Data)
	}
	if got[1].UserID != "u1" || !got[1].ReceivedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("second = %+v", got[1])
	}

	all, err := l.Recent(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("Recent(0) = %d, %v", len(all), err)
	}
}

func TestCountByType(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	for _, kind := range []model.NotificationType{model.NotifyPayment, model.NotifyPayment, model.NotifySystem} {
		if _, err := l.Append(ctx, model.Notification{Type: kind, Message: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := l.CountByType(ctx)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if counts[model.NotifyPayment] != 2 || counts[model.NotifySystem] != 1 || counts[model.NotifyUser] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

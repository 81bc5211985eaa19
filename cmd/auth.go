package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/portal"
	"github.com/bl4ckh401/chama/internal/tui/theme"
	"github.com/bl4ckh401/chama/internal/upstream"
)

const authTimeout = 30 * time.Second

var (
	flagUsername string
	flagPassword string
	flagEmail    string
	flagName     string
	flagPhone    string
	flagToken    string
	flagCode     string
	flagShowFull bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign out and manage your account",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the proxy and keep the session cookie",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget the cookie",
	RunE:  runLogout,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the session token for direct backend calls",
	RunE:  runToken,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

var forgotCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Email a password reset link",
	RunE:  runForgotPassword,
}

var resetCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password with an emailed reset token",
	RunE:  runResetPassword,
}

var verifyCmd = &cobra.Command{
	Use:   "verify-2fa",
	Short: "Submit a two-factor code for the current session",
	RunE:  runVerify2FA,
}

func init() {
	loginCmd.Flags().StringVarP(&flagUsername, "username", "u", "", "Username or email")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "Password (prompted when empty, or set CHAMA_PASSWORD)")

	registerCmd.Flags().StringVarP(&flagUsername, "username", "u", "", "Username")
	registerCmd.Flags().StringVar(&flagEmail, "email", "", "Email address")
	registerCmd.Flags().StringVar(&flagPassword, "password", "", "Password (prompted when empty)")
	registerCmd.Flags().StringVar(&flagName, "name", "", "Full name")
	registerCmd.Flags().StringVar(&flagPhone, "phone", "", "Phone number")

	forgotCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")

	resetCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")
	resetCmd.Flags().StringVar(&flagToken, "token", "", "Reset token from the email")
	resetCmd.Flags().StringVar(&flagPassword, "password", "", "New password (prompted when empty)")

	verifyCmd.Flags().StringVar(&flagCode, "code", "", "One-time code")

	tokenCmd.Flags().BoolVar(&flagShowFull, "full", false, "Print the whole token instead of a masked one")

	authCmd.AddCommand(loginCmd, registerCmd, logoutCmd, tokenCmd, whoamiCmd, forgotCmd, resetCmd, verifyCmd)
	rootCmd.AddCommand(authCmd)
}

// withPortal runs fn against a portal client and saves cookies afterwards.
func withPortal(cmd *cobra.Command, fn func(ctx context.Context, pc *portal.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	defer cancel()

	pc, err := openPortal()
	if err != nil {
		return err
	}
	defer func() {
		if err := pc.Close(); err != nil {
			logger.Warn("saving cookies", zap.Error(err))
		}
	}()
	return describe(fn(ctx, pc))
}

// describe turns backend failures into the message the server sent.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.Message != "" {
		logger.Debug("request failed", zap.Int("status", ue.StatusCode), zap.Error(err))
		return errors.New(ue.Message)
	}
	return err
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if flagPassword == "" {
		flagPassword = os.Getenv("CHAMA_PASSWORD")
	}
	if err := prompt(
		inputField("Username or email", &flagUsername, false),
		inputField("Password", &flagPassword, true),
	); err != nil {
		return err
	}

	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		res, err := pc.Login(ctx, portal.Credentials{Username: flagUsername, Password: flagPassword})
		if err != nil {
			return err
		}
		fmt.Printf("  Signed in as %s\n", res.User.DisplayName())
		if res.Message != "" && !strings.EqualFold(res.Message, "login successful") {
			fmt.Printf("  %s\n", res.Message)
		}
		return nil
	})
}

func runRegister(cmd *cobra.Command, _ []string) error {
	if err := prompt(
		inputField("Username", &flagUsername, false),
		inputField("Email", &flagEmail, false),
		inputField("Password", &flagPassword, true),
	); err != nil {
		return err
	}

	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		res, err := pc.Register(ctx, portal.Registration{
			Username: flagUsername,
			Email:    flagEmail,
			Password: flagPassword,
			Name:     flagName,
			Phone:    flagPhone,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Account created for %s\n", res.User.DisplayName())
		return nil
	})
}

func runLogout(cmd *cobra.Command, _ []string) error {
	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		if err := pc.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("  Signed out")
		return nil
	})
}

func runToken(cmd *cobra.Command, _ []string) error {
	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		tok, err := pc.Token(ctx)
		if errors.Is(err, errors.Unauthorized) {
			return errors.New("not signed in, run `chama auth login`")
		}
		if err != nil {
			return err
		}
		if !flagShowFull {
			tok = maskToken(tok)
		}
		fmt.Println(tok)
		return nil
	})
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		user, err := pc.Session(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			fmt.Println("  Not signed in")
			return nil
		}
		pairs := [][2]string{
			{"Name", user.DisplayName()},
			{"Username", user.Username},
			{"Email", user.Email},
			{"Role", string(user.Role)},
			{"Group", user.ChamaID},
		}
		fmt.Println()
		fmt.Print(cli.RenderKeyValues("Signed in", nonEmpty(pairs)))
		fmt.Println()
		return nil
	})
}

func runForgotPassword(cmd *cobra.Command, _ []string) error {
	if err := prompt(inputField("Email", &flagEmail, false)); err != nil {
		return err
	}
	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		msg, err := pc.ForgotPassword(ctx, flagEmail)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", orDefault(msg, "Check your email for a reset link"))
		return nil
	})
}

func runResetPassword(cmd *cobra.Command, _ []string) error {
	if err := prompt(
		inputField("Email", &flagEmail, false),
		inputField("Reset token", &flagToken, false),
		inputField("New password", &flagPassword, true),
	); err != nil {
		return err
	}
	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		msg, err := pc.ResetPassword(ctx, portal.PasswordReset{
			Email:    flagEmail,
			Token:    flagToken,
			Password: flagPassword,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", orDefault(msg, "Password updated, sign in again"))
		return nil
	})
}

func runVerify2FA(cmd *cobra.Command, _ []string) error {
	if err := prompt(inputField("Code", &flagCode, false)); err != nil {
		return err
	}
	return withPortal(cmd, func(ctx context.Context, pc *portal.Client) error {
		if err := pc.VerifyTwoFactor(ctx, flagCode); err != nil {
			return err
		}
		fmt.Println("  Code accepted")
		return nil
	})
}

// inputField returns a prompt for *dst, or nil when it is already set.
func inputField(title string, dst *string, secret bool) huh.Field {
	if *dst != "" {
		return nil
	}
	in := huh.NewInput().
		Title(title).
		Value(dst).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.Errorf("%s is required", strings.ToLower(title))
			}
			return nil
		})
	if secret {
		in = in.EchoMode(huh.EchoModePassword)
	}
	return in
}

// prompt asks for the missing fields in one form. Nil fields are skipped.
func prompt(fields ...huh.Field) error {
	var missing []huh.Field
	for _, f := range fields {
		if f != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if flagQuiet {
		return errors.New("missing required flags, quiet mode does not prompt")
	}

	t := theme.Active
	ht := huh.ThemeBase()
	ht.Focused.Title = ht.Focused.Title.Foreground(t.Accent)

	err := huh.NewForm(huh.NewGroup(missing...)).WithTheme(ht).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("canceled")
	}
	return errors.Trace(err)
}

func maskToken(tok string) string {
	if len(tok) > 16 {
		return tok[:8] + "..." + tok[len(tok)-4:]
	}
	return strings.Repeat("*", len(tok))
}

func nonEmpty(pairs [][2]string) [][2]string {
	out := pairs[:0]
	for _, p := range pairs {
		if p[1] != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

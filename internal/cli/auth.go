package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/erauner12/catalog-admin/internal/config"
	"github.com/erauner12/catalog-admin/internal/session"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Long: `Exchange email and password for a token pair. The refresh token is kept in
the configured token store so later commands stay signed in.

Without --password the password is read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = pw
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			if err := a.svc.Login(ctx, email, password); err != nil {
				return err
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), map[string]any{
					"authenticated": true,
					"email":         strings.ToLower(strings.TrimSpace(email)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Logged in")+" as "+strings.ToLower(strings.TrimSpace(email)))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.svc.Logout()

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), map[string]any{"authenticated": false})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			user, err := a.svc.Profile(ctx)
			if err != nil {
				return a.check(err)
			}

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatUser(user))
			return nil
		},
	}
}

// sessionStatus is what `status` reports. It never calls the API.
type sessionStatus struct {
	APIURL         string     `json:"apiUrl"`
	TokenStore     string     `json:"tokenStore"`
	TokenLocation  string     `json:"tokenLocation,omitempty"`
	Authenticated  bool       `json:"authenticated"`
	RefreshExpires *time.Time `json:"refreshExpires,omitempty"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local session state without calling the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.status()

			if a.jsonOutput {
				return a.printJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatStatus(st, time.Now()))
			return nil
		},
	}
}

func (a *app) status() sessionStatus {
	st := sessionStatus{
		APIURL:        a.cfg.APIURL,
		TokenStore:    a.cfg.TokenStore,
		Authenticated: a.svc.IsAuthenticated(),
	}
	// The redis URL may carry a password, so only the file location is shown
	if a.cfg.TokenStore == config.StoreFile {
		st.TokenLocation = a.cfg.TokenDir
	}

	if rt := a.session.RefreshToken(); rt != "" {
		// Opaque refresh tokens simply have no expiry to show
		if exp, err := session.TokenExpiry(rt); err == nil {
			st.RefreshExpires = &exp
		}
	}
	return st
}

func formatStatus(st sessionStatus, now time.Time) string {
	auth := warningStyle.Render("no")
	if st.Authenticated {
		auth = successStyle.Render("yes")
	}

	store := st.TokenStore
	if st.TokenLocation != "" {
		store += " (" + st.TokenLocation + ")"
	}

	lines := []string{
		labelStyle.Render("API") + st.APIURL,
		labelStyle.Render("Token store") + store,
		labelStyle.Render("Authenticated") + auth,
	}

	if st.RefreshExpires != nil {
		left := st.RefreshExpires.Sub(now)
		expiry := st.RefreshExpires.Local().Format("2006-01-02 15:04")
		if left > 0 {
			expiry += mutedStyle.Render(" (in " + humanDuration(left) + ")")
		} else {
			expiry += " " + errorStyle.Render("expired")
		}
		lines = append(lines, labelStyle.Render("Session until")+expiry)
	}

	if !st.Authenticated {
		lines = append(lines, "", "Run `catalogctl login` to sign in.")
	}
	return strings.Join(lines, "\n")
}

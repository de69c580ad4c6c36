// Package cli is the catalogctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erauner12/catalog-admin/internal/apiclient"
	"github.com/erauner12/catalog-admin/internal/catalog"
	"github.com/erauner12/catalog-admin/internal/config"
	"github.com/erauner12/catalog-admin/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitOK           = 0
	ExitError        = 1
	ExitUnauthorized = 2
)

// app holds what every command needs once configuration is resolved
type app struct {
	configFile string
	apiURL     string
	jsonOutput bool

	cfg     *config.Config
	session *session.Session
	svc     *catalog.Service
	closers []func()
}

// NewRootCommand builds the catalogctl command tree.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Admin client for the product catalog API",
		Long: `catalogctl manages products and categories of the catalog REST API.

Log in once; the refresh token is kept between runs and the access token is
renewed transparently when the API rejects it.

Environment Variables:
  CATALOG_API_URL      API base URL (default: ` + config.DefaultAPIURL + `)
  CATALOG_TOKEN_STORE  file, redis or memory (default: file)
  CATALOG_TOKEN_DIR    directory for the file token store
  CATALOG_REDIS_URL    redis URL for the redis token store`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default: ./catalogctl.yaml or ~/.catalogctl/catalogctl.yaml)")
	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (overrides CATALOG_API_URL)")
	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output JSON instead of human-readable text")

	cmd.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newStatusCommand(a),
		newProductsCommand(a),
		newCategoriesCommand(a),
	)

	return cmd, a
}

// Execute runs catalogctl with os.Args and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, a := newRootCommand()
	defer a.close()

	err := cmd.ExecuteContext(ctx)
	return exitCode(cmd.ErrOrStderr(), err)
}

// setup loads configuration and wires session, gateway and service
func (a *app) setup(ctx context.Context) error {
	if a.svc != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	configureLogging(cfg)

	durable, err := a.openTokenStore(ctx, cfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.session = session.New(session.NewMemoryStorage(), durable)
	client := apiclient.NewClient(cfg.APIURL, a.session, cfg.Timeout)
	a.svc = catalog.NewService(client, a.session, catalog.Options{
		ListTTL: cfg.ListCacheTTL,
		ItemTTL: cfg.ItemCacheTTL,
	})
	a.closers = append(a.closers, a.svc.Close)

	log.Debug().
		Str("apiUrl", cfg.APIURL).
		Str("tokenStore", cfg.TokenStore).
		Dur("timeout", cfg.Timeout).
		Msg("client configured")
	return nil
}

func (a *app) openTokenStore(ctx context.Context, cfg *config.Config) (session.Storage, error) {
	switch cfg.TokenStore {
	case config.StoreRedis:
		store, err := session.NewRedisStorage(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { store.Close() })
		return store, nil
	case config.StoreMemory:
		return session.NewMemoryStorage(), nil
	default:
		return session.NewFileStorage(cfg.TokenDir), nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// check drops the stored session when the API says it is no longer valid
func (a *app) check(err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) && a.svc != nil {
		a.svc.Logout()
	}
	return err
}

// commandContext bounds a command by three request timeouts: the first
// attempt, the refresh and the retry
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := apiclient.DefaultTimeout
	if a.cfg != nil {
		timeout = a.cfg.Timeout
	}
	return context.WithTimeout(ctx, 3*timeout)
}

func (a *app) printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

// exitCode prints err for the user and maps it to a process exit code
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}

	var verr *apiclient.ValidationError
	var remote *apiclient.RemoteError
	var netErr *apiclient.NetworkError

	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		fmt.Fprintln(w, errorStyle.Render("Session expired or missing.")+" Run `catalogctl login` to sign in again.")
		return ExitUnauthorized
	case errors.As(err, &verr):
		fmt.Fprintln(w, errorStyle.Render("Invalid input:"))
		fmt.Fprintln(w, formatValidation(verr))
	case errors.As(err, &remote):
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(fmt.Sprintf("API error %d:", remote.Status)), remote.Message)
	case errors.As(err, &netErr):
		hint := "check your connection and try again"
		if netErr.Timeout() {
			hint = "the API did not answer in time, try again"
		}
		fmt.Fprintf(w, "%s %v (%s)\n", errorStyle.Render("Network error:"), netErr, hint)
	default:
		fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Error:"), err)
	}
	return ExitError
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

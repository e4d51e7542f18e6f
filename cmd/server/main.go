package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	emailPkg "bulksms/internal/adapters/email"
	web "bulksms/internal/adapters/http"
	"bulksms/internal/adapters/http/perf"
	"bulksms/internal/adapters/provider"
	"bulksms/internal/adapters/storage"
	dispatchStore "bulksms/internal/adapters/storage/dispatch"
	"bulksms/internal/application/orchestrators"
	"bulksms/internal/config"
	"bulksms/internal/domain/sms"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// shutdownTimeout bounds how long in-flight requests (a large dispatch included) may finish after a signal.
const shutdownTimeout = 2 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bulksms:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bulksms",
		Short:         "Web front-end for sending bulk SMS through the provider's JSON API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.AddCommand(newBalanceCmd(), newStatusCmd())
	return root
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the remaining credit of BULKSMS_USERNAME",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, creds, err := cliSetup()
			if err != nil {
				return err
			}
			result, err := orchestrators.ExecuteCheckBalance(cmd.Context(), creds, queryDeps(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Balance)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <message-id>...",
		Short: "Print the delivery status of one or more message ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, creds, err := cliSetup()
			if err != nil {
				return err
			}
			result, err := orchestrators.ExecuteCheckStatus(cmd.Context(), creds, args, queryDeps(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Pretty)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg))
	return cfg, nil
}

// cliSetup loads configuration and the provider credentials the subcommands run as.
func cliSetup() (*config.Config, sms.Credentials, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, sms.Credentials{}, err
	}
	if cfg.Username == "" {
		return nil, sms.Credentials{}, fmt.Errorf("%s is required", config.KeyUsername)
	}
	return cfg, sms.Credentials{Username: cfg.Username, Password: cfg.Password}, nil
}

func queryDeps(cfg *config.Config) orchestrators.QueryDeps {
	return orchestrators.QueryDeps{Provider: newProvider(cfg, nil)}
}

// newLogger writes JSON in production and text elsewhere.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newProvider(cfg *config.Config, collector *perf.Collector) provider.API {
	if cfg.Provider == config.ProviderNoop {
		slog.Warn("provider_noop", "detail", "messages are accepted locally and never delivered")
		return provider.NewNoopClient()
	}
	return provider.NewClient(cfg.ProviderBaseURL,
		provider.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		provider.WithCollector(collector),
	)
}

// newReportDeps returns nil when no report recipients are configured.
func newReportDeps(cfg *config.Config) *orchestrators.DispatchReportDeps {
	if len(cfg.ReportTo) == 0 {
		return nil
	}
	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.ReportFrom)
		slog.Info("report_sender", "sender", "resend", "recipients", len(cfg.ReportTo))
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("report_sender", "sender", "noop", "detail", "BULKSMS_RESEND_KEY is not set; dispatch reports are not delivered")
		}
	}
	return &orchestrators.DispatchReportDeps{Sender: sender, From: cfg.ReportFrom, To: cfg.ReportTo}
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("journal_open_failed", "path", cfg.DBPath, "error", err)
		return err
	}
	defer db.Close()
	if cfg.DBPath == storage.MemoryPath {
		slog.Info("journal_in_memory", "detail", "dispatch history is lost on restart; set BULKSMS_DB_PATH to keep it")
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	handler := web.NewMux(&web.Deps{
		Provider:  newProvider(cfg, collector),
		Journal:   dispatchStore.NewSQLiteStore(timedDB),
		Report:    newReportDeps(cfg),
		Collector: collector,
		Location:  cfg.Location,
	}, web.Options{
		CSRFKey:        cfg.CSRFKey,
		Secure:         cfg.Secure,
		TrustedOrigins: cfg.TrustedOrigins,
		SessionTTL:     cfg.SessionTTL,
		RateLimit:      cfg.RateLimit,
		SlowRequest:    cfg.SlowRequest,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_start", "version", version, "addr", cfg.Addr, "env", cfg.Env, "provider", cfg.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server_failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server_shutdown_failed", "error", err)
		return err
	}
	return nil
}

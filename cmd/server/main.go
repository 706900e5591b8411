package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/modchat-server/internal/app"
	"github.com/vovakirdan/modchat-server/internal/config"
	applog "github.com/vovakirdan/modchat-server/internal/log"
)

var (
	configPath string
	envFile    string
	overrides  config.Config

	rootCmd = &cobra.Command{
		Use:           "modchat-server",
		Short:         "Real-time chat server with moderation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server (default)",
		RunE:  runServe,
	}

	bansCmd = &cobra.Command{
		Use:   "bans",
		Short: "Inspect persisted moderation state",
	}

	bansListCmd = &cobra.Command{
		Use:   "list",
		Short: "Print persisted ban records",
		RunE:  runBansList,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to config.yaml (created with defaults if missing)")
	pf.StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before config")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&overrides.DataDir, "data-dir", "", "directory for persisted state")
	pf.StringVar(&overrides.StorageDriver, "storage", "", "storage driver: json or sqlite")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		f := cmd.Flags()
		f.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
		f.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
		f.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	}

	bansCmd.AddCommand(bansListCmd)
	rootCmd.AddCommand(serveCmd, bansCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves .env, file, env vars and flags, in that order of precedence.
func loadConfig() (config.Config, error) {
	bootLog := applog.New(overrides.LogLevel)
	config.LoadDotEnv(bootLog, envFile)

	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(overrides)
	bootLog.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := applog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting modchat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runBansList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := app.OpenStore(&cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bans, err := st.LoadBans(cmd.Context())
	if err != nil {
		return err
	}
	if len(bans) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no bans")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICIPANT\tNAME\tBANNED AT\tREASON")
	for _, b := range bans {
		at := time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ParticipantID, b.DisplayName, at, b.Reason)
	}
	return w.Flush()
}

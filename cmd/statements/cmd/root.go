package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/statement-insights/internal/app"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// v holds defaults, STATEMENTS_* environment overrides, the optional
	// config file and bound flags.
	v = config.NewViper()
)

// errNoUser is returned when neither --user nor user_id is set.
var errNoUser = errors.New("no user id: pass --user or set STATEMENTS_USER_ID")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "statements",
	Short: "Statement ingestion and spending insights",
	Long: `Statements extracts transactions from bank and credit card statements
with Gemini, deduplicates them against everything already stored for the
user, and reports spending aggregates.

Examples:
  statements ingest --user alice march.pdf april.pdf
  statements ingest --user alice gs://my-bucket/statements/may.pdf
  statements summary --user alice --year 2024 --month March
  statements schema
  statements backfill --user alice --dry-run`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id whose transactions are read or written")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: bigquery, mongo or memory")

	_ = v.BindPFlag("user_id", rootCmd.PersistentFlags().Lookup("user"))
	_ = v.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

// loadConfig reads the config file, if any, and validates the merged settings.
func loadConfig(vp *viper.Viper) (*config.Config, error) {
	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}
	if verbose {
		vp.Set("log.level", "debug")
	}
	return config.FromViper(vp)
}

// env is what every data command needs: configuration, a logger in the
// context and an open backend.
type env struct {
	ctx     context.Context
	cfg     *config.Config
	log     zerolog.Logger
	backend *app.Backend
}

func (e *env) Close() {
	if err := e.backend.Close(); err != nil {
		e.log.Warn().Err(err).Msg("Failed to close backend")
	}
}

// setup loads configuration and opens the configured backend.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewFromConfig(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("Using config file")
	}

	ctx := logger.WithContext(cmd.Context(), log)
	backend, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &env{ctx: ctx, cfg: cfg, log: log, backend: backend}, nil
}

// requireUser returns the configured user id.
func requireUser(cfg *config.Config) (string, error) {
	if cfg.UserID == "" {
		return "", errNoUser
	}
	return cfg.UserID, nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(ver, c, d string) {
	version = ver
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

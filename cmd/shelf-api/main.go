package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/config"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelf-api",
		Short: "Shelf reference library backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newUsersCommand(), newSeedCommand(), newBackfillCommand())
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded when present")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.StringSlice("cors-origins", defaults.GetStringSlice("http.cors_origins"), "Allowed CORS origins (empty reflects the caller)")
	flags.String("static-dir", defaults.GetString("http.static_dir"), "Directory holding the built front-end")
	flags.String("environment", defaults.GetString("environment"), "Runtime environment (development, production)")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.Int("busy-timeout-ms", defaults.GetInt("database.busy_timeout_ms"), "SQLite busy timeout in milliseconds")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.String("allowed-domain", defaults.GetString("auth.allowed_domain"), "Email domain allowed to sign in")
	flags.String("denied-policy", defaults.GetString("auth.denied_policy"), "Handling of denied access requests (permanent, rerequest)")
	flags.String("category-delete-policy", defaults.GetString("catalog.category_delete_policy"), "Category deletion policy (nullify, restrict)")
	flags.String("redis-addr", defaults.GetString("ratelimit.redis_addr"), "Redis address for shared rate limiting")
	flags.String("metrics-address", defaults.GetString("metrics.address"), "Prometheus listen address (empty disables)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.cors_origins", "cors-origins")
	bindFlag(cmd, "http.static_dir", "static-dir")
	bindFlag(cmd, "environment", "environment")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.busy_timeout_ms", "busy-timeout-ms")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.allowed_domain", "allowed-domain")
	bindFlag(cmd, "auth.denied_policy", "denied-policy")
	bindFlag(cmd, "catalog.category_delete_policy", "category-delete-policy")
	bindFlag(cmd, "ratelimit.redis_addr", "redis-addr")
	bindFlag(cmd, "metrics.address", "metrics-address")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

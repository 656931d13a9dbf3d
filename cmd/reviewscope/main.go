package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacesedan/reviewscope/config"
	"github.com/spacesedan/reviewscope/internal/artifacts"
	"github.com/spacesedan/reviewscope/internal/detector"
	"github.com/spacesedan/reviewscope/internal/logging"
)

// cfg is resolved once per invocation by the root command's pre-run hook.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:               "reviewscope",
	Short:             "Fake review detection service and toolkit",
	Long:              `reviewscope classifies product reviews as fake or genuine and reports whether a product's reviews are mostly fake.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().String("env", "", "environment name used to pick config/envs/.env.<env> (default $APP_ENV or dev)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	env, _ := cmd.Flags().GetString("env")
	envFile, err := config.LoadEnv(config.ENV_DIR, env)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	logging.InitLogger(c.LogLevel, c.LogFormat)
	if envFile == "" {
		slog.Debug("No .env file found, using OS environment")
	} else {
		slog.Debug("Loaded .env file", slog.String("file", envFile))
	}
	cfg = c
	return nil
}

func loadDetector(ctx context.Context, c *config.Config) (*detector.Detector, error) {
	bundle, err := artifacts.LoadAll(ctx, c.VectorizerPath, c.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}
	return detector.New(bundle.Vectorizer, bundle.Model)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/logging"
)

// skipConfig marks commands that run without quay.yml.
const skipConfig = "quay/skip-config"

var (
	// Loaded by PersistentPreRunE before any command runs.
	cfg    *config.Config
	paths  config.Paths
	logger = zap.NewNop()
	out    = logging.NewConsole()

	// Flags may also be set as QUAY_CONFIG, QUAY_DATA_DIR, ...
	flags = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "quay",
	Short:         "quay: stacks of containers on a single host, driven by docker compose",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(flags.GetString("log-level"))
		if err != nil {
			return err
		}
		logger = l

		paths, err = config.ResolvePaths(flags.GetString("data-dir"), flags.GetString("stacks-dir"))
		if err != nil {
			return err
		}
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}

		file := flags.GetString("config")
		if file == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			if file, err = config.Find(wd); err != nil {
				return err
			}
		}
		cfg, err = config.Load(file)
		if err != nil {
			return err
		}
		logger.Debug("loaded config", zap.String("file", file), zap.String("data_dir", paths.Data))
		return nil
	},
}

// Execute runs the root command and prints any error.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to quay.yml (default: quay.yml or quay.yaml in the working directory)")
	pf.String("data-dir", config.DataDirName, "directory holding projects, volumes and caches")
	pf.String("stacks-dir", config.StacksDirName, "directory searched for stack descriptors")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")

	flags.SetEnvPrefix("QUAY")
	flags.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	flags.AutomaticEnv()
	if err := flags.BindPFlags(pf); err != nil {
		panic(err)
	}
}

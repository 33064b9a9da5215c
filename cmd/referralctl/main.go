// Command referralctl drives the referral and reward ledger from a shell:
// capture links, simulate sign-ins, claim rewards and run reconciles.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/challengeties/rewards/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dev        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "referralctl",
		Short:         "Referral attribution and reward ledger tooling",
		Version:       version + " (" + buildDate + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "rewards.yaml", "config file (optional)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "human readable logs")

	root.AddCommand(
		newParseLinkCmd(),
		newCaptureLinkCmd(opts),
		newLoginCmd(opts),
		newTokenCmd(opts),
		newProfileCmd(opts),
		newAchievementCmd(opts),
		newMilestoneCmd(opts),
		newReconcileCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// withApp loads config, wires the app and runs fn with it.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.dev {
		cfg.Logging.Dev = true
	}
	log, err := loadLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

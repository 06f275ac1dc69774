package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/oklog/run"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yairfalse/purku/broker"
	"github.com/yairfalse/purku/confirm"
	"github.com/yairfalse/purku/internal/config"
	"github.com/yairfalse/purku/journal"
	"github.com/yairfalse/purku/orchestrator"
	"github.com/yairfalse/purku/report"
)

var (
	destroyDryRun        bool
	destroyForce         bool
	destroyAccounts      []string
	destroyCrossAccount  bool
	destroyCloseAccounts bool
	destroyTfstate       bool
	destroyRegions       []string
	destroyJournalDir    string
	destroyLedgerPath    string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy all project resources across the organization",
	Long: `Run the full teardown: scan every configured account for resources
matching the project patterns and destroy them in dependency order.

Every resource requires an interactive confirmation unless --force is
given. --dry-run prints the manifest and guarantees zero mutating
calls.`,
	Example: `  purku destroy --dry-run              # See what would go
  purku destroy                        # Current account only, confirm each resource
  purku destroy --cross-account        # The whole organization
  purku destroy --account 222222222222 # One member account
  purku destroy --force --close-accounts --tfstate`,
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)

	destroyCmd.Flags().BoolVar(&destroyDryRun, "dry-run", false, "Plan only, no mutating calls")
	destroyCmd.Flags().BoolVar(&destroyForce, "force", false, "Skip interactive confirmations")
	destroyCmd.Flags().StringSliceVar(&destroyAccounts, "account", nil, "Restrict the run to these account IDs")
	destroyCmd.Flags().BoolVar(&destroyCrossAccount, "cross-account", false, "Include member accounts via role assumption")
	destroyCmd.Flags().BoolVar(&destroyCloseAccounts, "close-accounts", false, "Close member accounts after all phases")
	destroyCmd.Flags().BoolVar(&destroyTfstate, "tfstate", false, "Also remove terraform state buckets and lock tables")
	destroyCmd.Flags().StringSliceVar(&destroyRegions, "region", nil, "Override configured regions")
	destroyCmd.Flags().StringVar(&destroyJournalDir, "journal-dir", ".purku", "Directory for the destruction journal")
	destroyCmd.Flags().StringVar(&destroyLedgerPath, "ledger", ".purku/runs.db", "Run-history ledger file")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	jnl, err := journal.Open(destroyJournalDir)
	if err != nil {
		return err
	}
	defer jnl.Close()

	o, credBroker, err := buildOrchestrator(ctx, cfg, jnl, logger)
	if err != nil {
		return err
	}

	var rep *report.Report

	// Two actors: the run itself and the signal handler. Whichever exits
	// first interrupts the other; SIGINT mid-run flips the report to
	// aborted rather than killing the process between a journal intent and
	// its outcome.
	var group run.Group
	group.Add(func() error {
		var runErr error
		rep, runErr = o.Run(ctx, credBroker.CallerAccount())
		return runErr
	}, func(error) {
		cancel()
	})
	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	if err := group.Run(); err != nil {
		var sigErr run.SignalError
		if !errors.As(err, &sigErr) {
			return err
		}
		logger.Warn().Str("signal", sigErr.Signal.String()).Msg("interrupted")
	}
	if rep == nil {
		return fmt.Errorf("run produced no report")
	}

	if err := rep.WriteJSON(os.Stdout); err != nil {
		return err
	}
	appendLedger(rep, logger)

	// Partial and aborted runs are recoverable: rerun purku. Exit zero so
	// wrapping scripts do not treat them as hard failures.
	return nil
}

func loadRunConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if destroyDryRun {
		cfg.Run.DryRun = true
	}
	if destroyForce {
		cfg.Run.Force = true
	}
	if destroyCrossAccount {
		cfg.Run.CrossAccount = true
	}
	if destroyCloseAccounts {
		cfg.Run.CloseAccounts = true
	}
	if destroyTfstate {
		cfg.Run.TfstateCleanup = true
	}
	if len(destroyAccounts) > 0 {
		cfg.Run.AccountFilter = destroyAccounts
	}
	if len(destroyRegions) > 0 {
		cfg.Regions = destroyRegions
	}
	return cfg, nil
}

// buildOrchestrator wires the broker and orchestrator. jnl is nil for the
// read-only commands; only destroy keeps a journal on disk.
func buildOrchestrator(ctx context.Context, cfg *config.Config, jnl *journal.Journal, logger zerolog.Logger) (*orchestrator.Orchestrator, *broker.Broker, error) {
	base, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}
	if base.Region == "" {
		base.Region = cfg.Regions[0]
	}

	credBroker, err := broker.New(ctx, base, logger)
	if err != nil {
		return nil, nil, err
	}

	o := orchestrator.New(cfg, credBroker, gateFor(cfg, logger), jnl, logger)
	return o, credBroker, nil
}

func gateFor(cfg *config.Config, logger zerolog.Logger) confirm.Policy {
	switch {
	case cfg.Run.DryRun:
		return confirm.AutoDeny{}
	case cfg.Run.Force:
		return confirm.AutoApprove{}
	default:
		return confirm.NewInteractive(os.Stdin, os.Stderr, cfg.Run.ConfirmTimeout, logger)
	}
}

func appendLedger(rep *report.Report, logger zerolog.Logger) {
	ledger, err := report.OpenLedger(destroyLedgerPath)
	if err != nil {
		logger.Error().Err(err).Msg("ledger unavailable, run not recorded")
		return
	}
	defer ledger.Close()

	if err := ledger.Append(rep); err != nil {
		logger.Error().Err(err).Msg("failed to record run")
	}
}

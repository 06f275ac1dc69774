// Package orchestrator runs the teardown: fixed phase order, account fan-out
// per phase, credential scoping through the broker, confirmation gating, and
// journaling. Deletion engines never see a resource the orchestrator has not
// journaled an intent for.
package orchestrator

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/broker"
	"github.com/yairfalse/purku/confirm"
	"github.com/yairfalse/purku/destroy"
	"github.com/yairfalse/purku/internal/config"
	"github.com/yairfalse/purku/journal"
	"github.com/yairfalse/purku/report"
	"github.com/yairfalse/purku/scan"
	"github.com/yairfalse/purku/types"
)

// Scanner lists a family's candidates in one credential scope.
type Scanner interface {
	Scan(ctx context.Context, family types.Family) ([]types.Resource, error)
}

// Destroyer executes deletions in one credential scope.
type Destroyer interface {
	Destroy(ctx context.Context, r types.Resource) (destroy.Outcome, error)
	CloseAccount(ctx context.Context, accountID string) error
}

// CredentialBroker hands out per-account credential scopes.
type CredentialBroker interface {
	Assume(ctx context.Context, account types.Account) (aws.Config, bool, error)
}

// Orchestrator drives one destruction run.
type Orchestrator struct {
	cfg     *config.Config
	broker  CredentialBroker
	gate    confirm.Policy
	journal *journal.Journal
	logger  zerolog.Logger
	phases  []Phase

	// Factory seams; tests swap these for fakes.
	newScanner   func(clients *awsx.Clients) Scanner
	newDestroyer func(awsCfg aws.Config, clients *awsx.Clients) Destroyer
}

// New creates an orchestrator over the default phases.
func New(cfg *config.Config, credBroker CredentialBroker, gate confirm.Policy, jnl *journal.Journal, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		broker:  credBroker,
		gate:    gate,
		journal: jnl,
		logger:  logger,
		phases:  DefaultPhases,
	}
	o.newScanner = func(clients *awsx.Clients) Scanner {
		return scan.New(clients, cfg.Patterns, logger).WithTfstateCleanup(cfg.Run.TfstateCleanup)
	}
	o.newDestroyer = func(awsCfg aws.Config, clients *awsx.Clients) Destroyer {
		return destroy.New(awsCfg, clients, logger)
	}
	return o
}

// WithPhases overrides the phase list.
func (o *Orchestrator) WithPhases(phases []Phase) *Orchestrator {
	o.phases = phases
	return o
}

// Run executes every phase across the account set and returns the report.
// Failures inside a phase are isolated: they are counted, journaled, and the
// run moves on. The only things that stop a run early are context
// cancellation and the run timeout.
//
// The run timeout is checked at resource boundaries only: an in-flight
// deletion always finishes (half-emptied buckets are worse than a late run),
// then the remainder is abandoned. Signal cancellation on ctx still cuts
// through everything.
func (o *Orchestrator) Run(ctx context.Context, currentAccountID string) (*report.Report, error) {
	runCtx := ctx
	if o.cfg.Run.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Run.RunTimeout)
		defer cancel()
	}

	accounts := o.accountSet(currentAccountID)
	rep := report.New(o.cfg.Run.DryRun, o.cfg.Run.Force, o.cfg.Run.CrossAccount, accountIDs(accounts))

	var handled []types.Resource

	for _, phase := range o.phases {
		phaseReport := rep.Phase(phase.Order, phase.Family, phase.Name)
		o.logger.Info().Str("phase", phase.Name).Int("order", phase.Order).Msg("phase started")

		for _, account := range accounts {
			if phase.ManagementOnly && !account.Current {
				continue
			}
			if runCtx.Err() != nil {
				break
			}

			resources := o.runUnit(ctx, runCtx, phase, account, phaseReport)
			handled = append(handled, resources...)
		}

		if runCtx.Err() != nil {
			o.logger.Warn().Str("phase", phase.Name).Msg("run cut short, abandoning remaining phases")
			rep.Aborted = true
			break
		}
	}

	if !rep.Aborted && o.cfg.Run.CloseAccounts && !o.cfg.Run.DryRun {
		rep.ClosedAccounts = o.closeAccounts(ctx, accounts, currentAccountID)
	}

	if !o.cfg.Run.DryRun && !rep.Aborted {
		residuals, err := o.Validate(ctx, currentAccountID)
		if err != nil {
			o.logger.Error().Err(err).Msg("post-run validation failed")
		} else {
			rep.Residuals = residuals
			if len(residuals) > 0 {
				o.logger.Warn().
					Int("residuals", len(residuals)).
					Msg("resources still present after run, see report")
			}
		}
	}

	rep.EstimatedMonthlySavings = report.EstimateMonthlySavings(handled)
	rep.Finish()
	return rep, nil
}

// runUnit scans and destroys one phase in one account. Returns the resources
// that were handled (or planned), for the savings estimate.
//
// runCtx carries the run timeout and is only consulted between resources;
// destroyCtx reaches the deletion engines, so an in-flight deletion runs to
// completion even after the timeout fires.
func (o *Orchestrator) runUnit(destroyCtx, runCtx context.Context, phase Phase, account types.Account, phaseReport *report.PhaseReport) []types.Resource {
	ctx := runCtx
	awsCfg, assumed, err := o.broker.Assume(ctx, account)
	if err != nil {
		var scopeErr *broker.ScopeError
		if errors.As(err, &scopeErr) {
			o.logger.Warn().
				Str("phase", phase.Name).
				Str("account", account.ID).
				Err(err).
				Msg("credential scope unavailable, skipping account")
			return nil
		}
		o.logger.Error().Str("account", account.ID).Err(err).Msg("assume failed")
		return nil
	}
	if assumed {
		o.logger.Debug().Str("account", account.ID).Msg("assumed member account role")
	}

	resources := o.scanUnit(ctx, phase, account, awsCfg)
	if len(resources) == 0 {
		return nil
	}

	if o.cfg.Run.DryRun {
		phaseReport.Planned += len(resources)
		for _, r := range resources {
			o.record(journal.EntryPlanned, r, true, nil)
		}
		return resources
	}

	// Engines need clients in the resource's own region; one destroyer per
	// region seen in this unit.
	destroyers := make(map[string]Destroyer)
	destroyerFor := func(region string) Destroyer {
		if region == "" {
			region = o.primaryRegion()
		}
		if d, ok := destroyers[region]; ok {
			return d
		}
		d := o.newDestroyer(awsCfg, awsx.InRegion(awsCfg, account.ID, region))
		destroyers[region] = d
		return d
	}

	var handled []types.Resource
	for _, r := range resources {
		if ctx.Err() != nil {
			break
		}

		if !o.gate.Confirm(ctx, phase.Name, r.ID) {
			phaseReport.Skipped++
			o.record(journal.EntrySkipped, r, false, nil)
			continue
		}

		o.record(journal.EntryIntent, r, false, nil)

		outcome, err := destroyerFor(r.Region).Destroy(destroyCtx, r)
		if err != nil {
			phaseReport.Failed++
			o.logger.Error().
				Str("phase", phase.Name).
				Str("resource", r.ID).
				Str("account", account.ID).
				Err(err).
				Msg("destroy failed")
			o.record(journal.EntryFailed, r, false, err)
			continue
		}

		phaseReport.AddOutcome(outcome)
		handled = append(handled, r)
		o.record(journalType(outcome), r, false, nil)
	}
	return handled
}

// record writes one journal entry. A nil journal (plan and validate runs)
// makes this a no-op.
func (o *Orchestrator) record(t journal.EntryType, r types.Resource, dryRun bool, cause error) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(t, r, dryRun, cause); err != nil {
		o.logger.Error().Err(err).Msg("journal write failed")
	}
}

// scanUnit scans one phase in one account across its regions, deduplicating
// resources that globally-listed APIs repeat per region.
func (o *Orchestrator) scanUnit(ctx context.Context, phase Phase, account types.Account, awsCfg aws.Config) []types.Resource {
	regions := o.cfg.Regions
	if phase.Global {
		regions = []string{awsx.GlobalRegion}
	}

	seen := make(map[string]bool)
	var resources []types.Resource

	for _, region := range regions {
		clients := awsx.InRegion(awsCfg, account.ID, region)
		scanner := o.newScanner(clients)

		found, err := scanner.Scan(ctx, phase.Family)
		if err != nil {
			o.logger.Error().
				Str("phase", phase.Name).
				Str("account", account.ID).
				Str("region", region).
				Err(err).
				Msg("scan failed")
			continue
		}

		for _, r := range found {
			// Account-global listings (IAM, budgets) carry an empty region
			// and collapse here; regional resources that happen to share a
			// name stay distinct per region.
			key := string(r.Family) + "/" + r.AccountID + "/" + r.Region + "/" + r.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			resources = append(resources, r)
		}
	}
	return resources
}

// Plan scans everything without mutating or journaling. The manifest the
// plan command prints comes from here.
func (o *Orchestrator) Plan(ctx context.Context, currentAccountID string) ([]types.Resource, error) {
	var manifest []types.Resource

	for _, phase := range o.phases {
		for _, account := range o.accountSet(currentAccountID) {
			if phase.ManagementOnly && !account.Current {
				continue
			}
			if err := ctx.Err(); err != nil {
				return manifest, err
			}

			awsCfg, _, err := o.broker.Assume(ctx, account)
			if err != nil {
				var scopeErr *broker.ScopeError
				if errors.As(err, &scopeErr) {
					o.logger.Warn().Str("account", account.ID).Err(err).Msg("skipping account")
					continue
				}
				return nil, err
			}
			manifest = append(manifest, o.scanUnit(ctx, phase, account, awsCfg)...)
		}
	}
	return manifest, nil
}

// Validate re-scans after a run and reports what is still there. Lazily
// deferred buckets show up here until their lifecycle completes; the reason
// field flags them as expected.
func (o *Orchestrator) Validate(ctx context.Context, currentAccountID string) ([]report.Residual, error) {
	remaining, err := o.Plan(ctx, currentAccountID)
	if err != nil {
		return nil, err
	}

	residuals := make([]report.Residual, 0, len(remaining))
	for _, r := range remaining {
		residual := report.Residual{Family: r.Family, ID: r.ID}
		if r.Family == types.FamilyStorage || r.Family == types.FamilyAuditTrail {
			residual.Reason = "may be draining via lazy-delete lifecycle"
		}
		residuals = append(residuals, residual)
	}
	return residuals, nil
}

func (o *Orchestrator) closeAccounts(ctx context.Context, accounts []types.Account, currentAccountID string) []string {
	current := types.Account{ID: currentAccountID, Current: true}
	awsCfg, _, err := o.broker.Assume(ctx, current)
	if err != nil {
		o.logger.Error().Err(err).Msg("management scope unavailable, not closing accounts")
		return nil
	}
	destroyer := o.newDestroyer(awsCfg, awsx.InRegion(awsCfg, currentAccountID, awsx.GlobalRegion))

	var closed []string
	for _, account := range accounts {
		if account.Current {
			continue
		}
		if !o.gate.Confirm(ctx, "close-account", account.ID) {
			o.logger.Info().Str("account", account.ID).Msg("account closure declined")
			continue
		}
		if err := destroyer.CloseAccount(ctx, account.ID); err != nil {
			o.logger.Error().Str("account", account.ID).Err(err).Msg("account closure failed")
			continue
		}
		o.logger.Info().Str("account", account.ID).Msg("account closure requested")
		closed = append(closed, account.ID)
	}
	return closed
}

// accountSet resolves the run's accounts: config set, narrowed by the
// account filter, narrowed to the current account unless cross-account runs
// are on.
func (o *Orchestrator) accountSet(currentAccountID string) []types.Account {
	accounts := o.cfg.AccountSet(currentAccountID)

	var selected []types.Account
	for _, account := range accounts {
		if !o.cfg.Run.CrossAccount && !account.Current {
			continue
		}
		if !o.cfg.Allowed(account.ID) {
			o.logger.Info().Str("account", account.ID).Msg("account outside the filter, leaving it alone")
			continue
		}
		selected = append(selected, account)
	}
	return selected
}

func (o *Orchestrator) primaryRegion() string {
	if len(o.cfg.Regions) > 0 {
		return o.cfg.Regions[0]
	}
	return awsx.GlobalRegion
}

func journalType(outcome destroy.Outcome) journal.EntryType {
	switch outcome {
	case destroy.OutcomeLazyDeferred:
		return journal.EntryLazy
	default:
		return journal.EntryDone
	}
}

func accountIDs(accounts []types.Account) []string {
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	return ids
}

package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/purku/awsx"
	"github.com/yairfalse/purku/broker"
	"github.com/yairfalse/purku/confirm"
	"github.com/yairfalse/purku/destroy"
	"github.com/yairfalse/purku/internal/config"
	"github.com/yairfalse/purku/journal"
	"github.com/yairfalse/purku/report"
	"github.com/yairfalse/purku/types"
)

const (
	mgmtAccount = "111111111111"
	devAccount  = "222222222222"
)

type fakeBroker struct {
	denied  map[string]bool
	assumes []string
}

func (b *fakeBroker) Assume(_ context.Context, account types.Account) (aws.Config, bool, error) {
	if b.denied[account.ID] {
		return aws.Config{}, false, &broker.ScopeError{AccountID: account.ID, Err: fmt.Errorf("access denied")}
	}
	b.assumes = append(b.assumes, account.ID)
	return aws.Config{Region: "us-east-1"}, !account.Current, nil
}

type fakeScanner struct {
	resources map[types.Family][]types.Resource
	errs      map[types.Family]error
}

func (s *fakeScanner) Scan(_ context.Context, family types.Family) ([]types.Resource, error) {
	if err := s.errs[family]; err != nil {
		return nil, err
	}
	return s.resources[family], nil
}

// scanFunc adapts a closure to the Scanner interface.
type scanFunc func(ctx context.Context, family types.Family) ([]types.Resource, error)

func (f scanFunc) Scan(ctx context.Context, family types.Family) ([]types.Resource, error) {
	return f(ctx, family)
}

type fakeDestroyer struct {
	failIDs   map[string]bool
	delay     time.Duration
	destroyed []string
	regions   []string
	ctxErrs   []error
	closed    []string
}

func (d *fakeDestroyer) Destroy(ctx context.Context, r types.Resource) (destroy.Outcome, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
	if d.failIDs[r.ID] {
		return "", fmt.Errorf("deletion refused for %s", r.ID)
	}
	d.destroyed = append(d.destroyed, r.ID)
	d.regions = append(d.regions, r.Region)
	return destroy.OutcomeDestroyed, nil
}

func (d *fakeDestroyer) CloseAccount(_ context.Context, accountID string) error {
	d.closed = append(d.closed, accountID)
	return nil
}

// pickyGate approves resources by name.
type pickyGate struct{ approve map[string]bool }

func (g pickyGate) Confirm(_ context.Context, _ string, name string) bool {
	return g.approve[name]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
accounts:
  management: "` + mgmtAccount + `"
  dev: "` + devAccount + `"
patterns:
  - proj-
`))
	require.NoError(t, err)
	return cfg
}

func testJournal(t *testing.T) *journal.Journal {
	t.Helper()
	jnl, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { jnl.Close() })
	return jnl
}

func testOrchestrator(t *testing.T, cfg *config.Config, scanner *fakeScanner, destroyer *fakeDestroyer, gate confirm.Policy) (*Orchestrator, *fakeBroker) {
	t.Helper()
	credBroker := &fakeBroker{denied: map[string]bool{}}
	o := New(cfg, credBroker, gate, testJournal(t), zerolog.Nop())
	o.newScanner = func(*awsx.Clients) Scanner { return scanner }
	o.newDestroyer = func(aws.Config, *awsx.Clients) Destroyer { return destroyer }
	return o, credBroker
}

func resource(family types.Family, id string) types.Resource {
	return types.Resource{Family: family, ID: id, AccountID: mgmtAccount, Region: "us-east-1"}
}

func TestRunDestroysInPhaseOrder(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
		types.FamilyCDN:     {resource(types.FamilyCDN, "proj-dist")},
	}}
	destroyer := &fakeDestroyer{}
	o, _ := testOrchestrator(t, testConfig(t), scanner, destroyer, confirm.AutoApprove{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	// CDN phase runs before storage.
	require.Equal(t, []string{"proj-dist", "proj-assets"}, destroyer.destroyed)
	assert.Equal(t, 2, rep.Totals.Destroyed)
	assert.Equal(t, report.StatusClean, rep.Status)
	assert.Positive(t, rep.EstimatedMonthlySavings)
}

func TestRunIsolatesFailures(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {
			resource(types.FamilyStorage, "proj-a"),
			resource(types.FamilyStorage, "proj-b"),
			resource(types.FamilyStorage, "proj-c"),
		},
	}}
	destroyer := &fakeDestroyer{failIDs: map[string]bool{"proj-b": true}}
	o, _ := testOrchestrator(t, testConfig(t), scanner, destroyer, confirm.AutoApprove{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Equal(t, []string{"proj-a", "proj-c"}, destroyer.destroyed)
	assert.Equal(t, 2, rep.Totals.Destroyed)
	assert.Equal(t, 1, rep.Totals.Failed)
	assert.Equal(t, report.StatusPartial, rep.Status)
}

func TestRunDryRunNeverMutates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.DryRun = true

	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
		types.FamilyDNS:     {resource(types.FamilyDNS, "proj.example.com")},
	}}
	destroyer := &fakeDestroyer{}
	o, _ := testOrchestrator(t, cfg, scanner, destroyer, confirm.AutoDeny{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Empty(t, destroyer.destroyed)
	assert.Equal(t, 2, rep.Totals.Planned)
	assert.Equal(t, report.StatusPlanned, rep.Status)
}

func TestRunConfirmationDenialSkips(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
	}}
	destroyer := &fakeDestroyer{}
	o, _ := testOrchestrator(t, testConfig(t), scanner, destroyer, confirm.AutoDeny{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Empty(t, destroyer.destroyed)
	assert.Equal(t, 1, rep.Totals.Skipped)
	assert.Zero(t, rep.Totals.Destroyed)
}

func TestRunStaysInCurrentAccountByDefault(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{}}
	o, credBroker := testOrchestrator(t, testConfig(t), scanner, &fakeDestroyer{}, confirm.AutoApprove{})

	_, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	for _, id := range credBroker.assumes {
		assert.Equal(t, mgmtAccount, id)
	}
}

func TestRunCrossAccountSkipsDeniedScope(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.CrossAccount = true

	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
	}}
	destroyer := &fakeDestroyer{}
	o, credBroker := testOrchestrator(t, cfg, scanner, destroyer, confirm.AutoApprove{})
	credBroker.denied[devAccount] = true

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	// The denied member account is skipped; the run itself still succeeds.
	assert.NotContains(t, credBroker.assumes, devAccount)
	assert.Equal(t, report.StatusClean, rep.Status)
}

func TestRunAccountFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.CrossAccount = true
	cfg.Run.AccountFilter = []string{devAccount}

	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{}}
	o, credBroker := testOrchestrator(t, cfg, scanner, &fakeDestroyer{}, confirm.AutoApprove{})

	_, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	for _, id := range credBroker.assumes {
		assert.Equal(t, devAccount, id)
	}
}

func TestRunManagementOnlyPhaseSkipsMembers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.CrossAccount = true

	scanned := map[string]int{}
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{}}
	destroyer := &fakeDestroyer{}
	credBroker := &fakeBroker{denied: map[string]bool{}}
	o := New(cfg, credBroker, confirm.AutoApprove{}, testJournal(t), zerolog.Nop())
	o.newDestroyer = func(aws.Config, *awsx.Clients) Destroyer { return destroyer }
	o.newScanner = func(clients *awsx.Clients) Scanner {
		scanned[clients.AccountID]++
		return scanner
	}
	o.WithPhases([]Phase{{Order: 9, Family: types.FamilyOrganization, Name: "organization", Global: true, ManagementOnly: true}})

	_, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Positive(t, scanned[mgmtAccount])
	assert.Zero(t, scanned[devAccount])
}

func TestRunClosesAccountsAfterPhases(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.CrossAccount = true
	cfg.Run.CloseAccounts = true

	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{}}
	destroyer := &fakeDestroyer{}
	o, _ := testOrchestrator(t, cfg, scanner, destroyer, confirm.AutoApprove{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Equal(t, []string{devAccount}, destroyer.closed)
	assert.Equal(t, []string{devAccount}, rep.ClosedAccounts)
}

// regionalOrchestrator builds an orchestrator whose scanner fake sees the
// region its clients are pinned to, the way real scanners do.
func regionalOrchestrator(t *testing.T, cfg *config.Config, destroyer *fakeDestroyer, list func(region string) []types.Resource) *Orchestrator {
	t.Helper()
	credBroker := &fakeBroker{denied: map[string]bool{}}
	o := New(cfg, credBroker, confirm.AutoApprove{}, testJournal(t), zerolog.Nop())
	o.newDestroyer = func(aws.Config, *awsx.Clients) Destroyer { return destroyer }
	o.newScanner = func(clients *awsx.Clients) Scanner {
		region := clients.Region
		return scanFunc(func(context.Context, types.Family) ([]types.Resource, error) {
			return list(region), nil
		})
	}
	return o
}

func TestRunKeepsSameNameAcrossRegions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Regions = []string{"us-east-1", "eu-west-1"}

	// The same log group name exists independently in both regions; both
	// copies must go.
	destroyer := &fakeDestroyer{}
	o := regionalOrchestrator(t, cfg, destroyer, func(region string) []types.Resource {
		return []types.Resource{{
			Family:    types.FamilyObservability,
			ID:        "proj-app-logs",
			AccountID: mgmtAccount,
			Region:    region,
		}}
	})
	o.WithPhases([]Phase{{Order: 5, Family: types.FamilyObservability, Name: "observability"}})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Equal(t, []string{"proj-app-logs", "proj-app-logs"}, destroyer.destroyed)
	assert.ElementsMatch(t, []string{"us-east-1", "eu-west-1"}, destroyer.regions)
	assert.Equal(t, 2, rep.Totals.Destroyed)
}

func TestRunCollapsesAccountGlobalListings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Regions = []string{"us-east-1", "eu-west-1"}

	// IAM listings repeat identically per region and carry no region on the
	// resource; the duplicate scans collapse to one deletion.
	destroyer := &fakeDestroyer{}
	o := regionalOrchestrator(t, cfg, destroyer, func(string) []types.Resource {
		return []types.Resource{{
			Family:    types.FamilyIdentity,
			ID:        "proj-deployer",
			AccountID: mgmtAccount,
		}}
	})
	o.WithPhases([]Phase{{Order: 8, Family: types.FamilyIdentity, Name: "identity"}})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Equal(t, []string{"proj-deployer"}, destroyer.destroyed)
	assert.Equal(t, 1, rep.Totals.Destroyed)
}

func TestRunConfirmsEachResource(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {
			resource(types.FamilyStorage, "proj-a"),
			resource(types.FamilyStorage, "proj-b"),
			resource(types.FamilyStorage, "proj-c"),
		},
	}}
	destroyer := &fakeDestroyer{}
	gate := pickyGate{approve: map[string]bool{"proj-b": true}}
	o, _ := testOrchestrator(t, testConfig(t), scanner, destroyer, gate)

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	// Denying one resource skips that resource only.
	assert.Equal(t, []string{"proj-b"}, destroyer.destroyed)
	assert.Equal(t, 1, rep.Totals.Destroyed)
	assert.Equal(t, 2, rep.Totals.Skipped)
}

func TestRunTimeoutFinishesInFlightResource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.RunTimeout = 20 * time.Millisecond

	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {
			resource(types.FamilyStorage, "proj-a"),
			resource(types.FamilyStorage, "proj-b"),
			resource(types.FamilyStorage, "proj-c"),
		},
	}}
	destroyer := &fakeDestroyer{delay: 50 * time.Millisecond}
	o, _ := testOrchestrator(t, cfg, scanner, destroyer, confirm.AutoApprove{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	// The timeout fires mid-deletion: the first resource still finishes on a
	// live context, the rest are abandoned rather than cut off half-done.
	assert.Equal(t, []string{"proj-a"}, destroyer.destroyed)
	require.Len(t, destroyer.ctxErrs, 1)
	assert.NoError(t, destroyer.ctxErrs[0])
	assert.Equal(t, report.StatusAborted, rep.Status)
}

func TestRunReportsResiduals(t *testing.T) {
	// The fake scanner keeps reporting the zone after the run, as a real
	// re-scan would if deletion had not taken.
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyDNS: {resource(types.FamilyDNS, "proj.example.com")},
	}}
	o, _ := testOrchestrator(t, testConfig(t), scanner, &fakeDestroyer{}, confirm.AutoApprove{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	require.Len(t, rep.Residuals, 1)
	assert.Equal(t, "proj.example.com", rep.Residuals[0].ID)
}

func TestRunDryRunWithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.DryRun = true

	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
	}}
	credBroker := &fakeBroker{denied: map[string]bool{}}
	o := New(cfg, credBroker, confirm.AutoDeny{}, nil, zerolog.Nop())
	o.newScanner = func(*awsx.Clients) Scanner { return scanner }
	o.newDestroyer = func(aws.Config, *awsx.Clients) Destroyer { return &fakeDestroyer{} }

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Totals.Planned)
}

func TestRunScanFailureDoesNotAbort(t *testing.T) {
	scanner := &fakeScanner{
		resources: map[types.Family][]types.Resource{
			types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
		},
		errs: map[types.Family]error{
			types.FamilyCDN: fmt.Errorf("throttled"),
		},
	}
	destroyer := &fakeDestroyer{}
	o, _ := testOrchestrator(t, testConfig(t), scanner, destroyer, confirm.AutoApprove{})

	rep, err := o.Run(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Equal(t, []string{"proj-assets"}, destroyer.destroyed)
	assert.Equal(t, 1, rep.Totals.Destroyed)
}

func TestPlanCollectsWithoutMutating(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-assets")},
		types.FamilyCDN:     {resource(types.FamilyCDN, "proj-dist")},
	}}
	destroyer := &fakeDestroyer{}
	o, _ := testOrchestrator(t, testConfig(t), scanner, destroyer, confirm.AutoApprove{})

	manifest, err := o.Plan(context.Background(), mgmtAccount)
	require.NoError(t, err)

	assert.Len(t, manifest, 2)
	assert.Empty(t, destroyer.destroyed)
}

func TestValidateFlagsLazyCandidates(t *testing.T) {
	scanner := &fakeScanner{resources: map[types.Family][]types.Resource{
		types.FamilyStorage: {resource(types.FamilyStorage, "proj-access-logs")},
		types.FamilyDNS:     {resource(types.FamilyDNS, "proj.example.com")},
	}}
	o, _ := testOrchestrator(t, testConfig(t), scanner, &fakeDestroyer{}, confirm.AutoApprove{})

	residuals, err := o.Validate(context.Background(), mgmtAccount)
	require.NoError(t, err)
	require.Len(t, residuals, 2)

	byID := map[string]report.Residual{}
	for _, r := range residuals {
		byID[r.ID] = r
	}
	assert.Contains(t, byID["proj-access-logs"].Reason, "lazy-delete")
	assert.Empty(t, byID["proj.example.com"].Reason)
}

// Package broker obtains scoped credentials for target accounts via STS role
// assumption. Credentials are explicit aws.Config values threaded through the
// callers, never process-global state, so one account's credentials cannot
// leak into another's phase by construction.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/yairfalse/purku/types"
)

const (
	// SessionNamePrefix identifies purku sessions in CloudTrail.
	SessionNamePrefix = "purku-destroy"

	// SessionDuration bounds assumed-credential lifetime. The broker never
	// refreshes; callers re-assume per phase-account unit.
	SessionDuration = time.Hour
)

// ScopeError means one account cannot be accessed. Callers skip that account
// for the current phase; the run continues.
type ScopeError struct {
	AccountID string
	Err       error
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("cannot access account %s: %v", e.AccountID, e.Err)
}

func (e *ScopeError) Unwrap() error { return e.Err }

// AssumeRoleAPI is the slice of the STS client the broker needs.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Broker brokers per-account credential scopes off one ambient base config.
type Broker struct {
	base          aws.Config
	stsClient     AssumeRoleAPI
	callerAccount string
	logger        zerolog.Logger
}

// New resolves the caller identity and returns a broker. Failure here is a
// setup error: without a caller identity nothing can run.
func New(ctx context.Context, base aws.Config, logger zerolog.Logger) (*Broker, error) {
	client := sts.NewFromConfig(base)
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("resolve caller identity: %w", err)
	}

	b := &Broker{
		base:          base,
		stsClient:     client,
		callerAccount: aws.ToString(out.Account),
		logger:        logger,
	}
	logger.Info().Str("caller_account", b.callerAccount).Msg("credential broker ready")
	return b, nil
}

// NewWithCaller builds a broker with a pre-resolved caller account and STS
// client. Used by tests.
func NewWithCaller(base aws.Config, client AssumeRoleAPI, callerAccount string, logger zerolog.Logger) *Broker {
	return &Broker{base: base, stsClient: client, callerAccount: callerAccount, logger: logger}
}

// CallerAccount returns the account the run was invoked from.
func (b *Broker) CallerAccount() string { return b.callerAccount }

// Assume returns an aws.Config scoped to the target account. When the caller
// already is the target account the ambient config is returned unchanged
// (assumed=false) without an STS round trip. Assumption failures come back as
// *ScopeError.
func (b *Broker) Assume(ctx context.Context, account types.Account) (aws.Config, bool, error) {
	if account.ID == b.callerAccount {
		b.logger.Debug().Str("account", account.ID).Msg("already in target account, using ambient credentials")
		return b.base, false, nil
	}
	if account.RoleARN == "" {
		return aws.Config{}, false, &ScopeError{AccountID: account.ID, Err: fmt.Errorf("no role ARN configured")}
	}

	provider := stscreds.NewAssumeRoleProvider(b.stsClient, account.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = fmt.Sprintf("%s-%d", SessionNamePrefix, time.Now().Unix())
		o.Duration = SessionDuration
	})
	cache := aws.NewCredentialsCache(provider)

	// Retrieve eagerly so a missing or denied role surfaces here, not in
	// the middle of a scanner call.
	if _, err := cache.Retrieve(ctx); err != nil {
		return aws.Config{}, false, &ScopeError{AccountID: account.ID, Err: err}
	}

	cfg := b.base.Copy()
	cfg.Credentials = cache

	b.logger.Info().
		Str("account", account.ID).
		Str("env", account.Env).
		Str("role_arn", account.RoleARN).
		Msg("assumed role in member account")
	return cfg, true, nil
}

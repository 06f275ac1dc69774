package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/purku/types"
)

type fakeSTS struct {
	calls int
	err   error
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	expiry := time.Now().Add(time.Hour)
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("AKIAFAKE"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      &expiry,
		},
	}, nil
}

func testBroker(stsClient AssumeRoleAPI) *Broker {
	base := aws.Config{Region: "us-east-1"}
	return NewWithCaller(base, stsClient, "111111111111", zerolog.Nop())
}

func TestAssumeShortCircuitsCurrentAccount(t *testing.T) {
	fake := &fakeSTS{}
	b := testBroker(fake)

	cfg, assumed, err := b.Assume(context.Background(), types.Account{ID: "111111111111", Current: true})
	require.NoError(t, err)

	assert.False(t, assumed, "current account must use ambient credentials")
	assert.Equal(t, 0, fake.calls, "no STS call for the current account")
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestAssumeMemberAccount(t *testing.T) {
	fake := &fakeSTS{}
	b := testBroker(fake)

	account := types.Account{
		ID:      "222222222222",
		Env:     "dev",
		RoleARN: "arn:aws:iam::222222222222:role/OrganizationAccountAccessRole",
	}
	cfg, assumed, err := b.Assume(context.Background(), account)
	require.NoError(t, err)

	assert.True(t, assumed)
	assert.Equal(t, 1, fake.calls)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIAFAKE", creds.AccessKeyID)
}

func TestAssumeScopedConfigsAreIndependent(t *testing.T) {
	fake := &fakeSTS{}
	b := testBroker(fake)

	account := types.Account{ID: "222222222222", RoleARN: "arn:aws:iam::222222222222:role/r"}
	scoped, _, err := b.Assume(context.Background(), account)
	require.NoError(t, err)

	ambient, assumed, err := b.Assume(context.Background(), types.Account{ID: "111111111111"})
	require.NoError(t, err)
	assert.False(t, assumed)

	// The ambient config must not pick up the assumed-role credential
	// source: no leakage across accounts.
	assert.NotSame(t, scoped.Credentials, ambient.Credentials)
	assert.Nil(t, ambient.Credentials)
}

func TestAssumeDeniedReturnsScopeError(t *testing.T) {
	fake := &fakeSTS{err: errors.New("AccessDenied")}
	b := testBroker(fake)

	account := types.Account{ID: "222222222222", RoleARN: "arn:aws:iam::222222222222:role/r"}
	_, _, err := b.Assume(context.Background(), account)
	require.Error(t, err)

	var scopeErr *ScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "222222222222", scopeErr.AccountID)
}

func TestAssumeMissingRoleARN(t *testing.T) {
	b := testBroker(&fakeSTS{})

	_, _, err := b.Assume(context.Background(), types.Account{ID: "222222222222"})
	var scopeErr *ScopeError
	require.ErrorAs(t, err, &scopeErr)
}

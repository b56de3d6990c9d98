package federation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/album/internal/module/session"
)

type MockIdentityAPI struct {
	mock.Mock
}

func (m *MockIdentityAPI) GetId(ctx context.Context, in *cognitoidentity.GetIdInput, _ ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cognitoidentity.GetIdOutput), args.Error(1)
}

func (m *MockIdentityAPI) GetCredentialsForIdentity(ctx context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, _ ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cognitoidentity.GetCredentialsForIdentityOutput), args.Error(1)
}

const testProvider = "cognito-idp.ap-northeast-1.amazonaws.com/ap-northeast-1_AbCdEf"

func testConfig() Config {
	return Config{
		Issuer:         "https://cognito-idp.ap-northeast-1.amazonaws.com/ap-northeast-1_AbCdEf",
		IdentityPoolID: "ap-northeast-1:11111111-2222-3333-4444-555555555555",
		Region:         "ap-northeast-1",
	}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExchanger(t *testing.T, api IdentityAPI) *Exchanger {
	t.Helper()
	e, err := NewExchanger(api, testConfig(), nil, nil)
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	return e
}

func credentialsOutput(expiration time.Time) *cognitoidentity.GetCredentialsForIdentityOutput {
	return &cognitoidentity.GetCredentialsForIdentityOutput{
		IdentityId: aws.String("identity-1"),
		Credentials: &types.Credentials{
			AccessKeyId:  aws.String("ASIAEXAMPLE"),
			SecretKey:    aws.String("secret"),
			SessionToken: aws.String("session-token"),
			Expiration:   aws.Time(expiration),
		},
	}
}

func authenticatedSession() *session.Session {
	return &session.Session{ID: "sess-1", IdentityToken: "id-token", AccessToken: "at", ExpiresAt: testNow.Add(time.Hour)}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing issuer", func(c *Config) { c.Issuer = "" }, true},
		{"missing pool", func(c *Config) { c.IdentityPoolID = " " }, true},
		{"missing region", func(c *Config) { c.Region = "" }, true},
		{"issuer without pool segment", func(c *Config) { c.Issuer = "https://cognito-idp.ap-northeast-1.amazonaws.com/" }, true},
		{"issuer with trailing slash", func(c *Config) { c.Issuer += "/" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ProviderName(t *testing.T) {
	name, err := testConfig().ProviderName()
	require.NoError(t, err)
	assert.Equal(t, testProvider, name)
}

func TestNewExchanger_RejectsInvalidConfig(t *testing.T) {
	_, err := NewExchanger(new(MockIdentityAPI), Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExchanger_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("exchanges identity token", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.MatchedBy(func(in *cognitoidentity.GetIdInput) bool {
			return aws.ToString(in.IdentityPoolId) == testConfig().IdentityPoolID &&
				in.Logins[testProvider] == "id-token" && len(in.Logins) == 1
		})).Return(&cognitoidentity.GetIdOutput{IdentityId: aws.String("identity-1")}, nil).Once()
		api.On("GetCredentialsForIdentity", mock.Anything, mock.MatchedBy(func(in *cognitoidentity.GetCredentialsForIdentityInput) bool {
			return aws.ToString(in.IdentityId) == "identity-1" && in.Logins[testProvider] == "id-token"
		})).Return(credentialsOutput(testNow.Add(time.Hour)), nil).Once()

		e := newTestExchanger(t, api)
		creds, err := e.Exchange(ctx, authenticatedSession())
		require.NoError(t, err)
		assert.Equal(t, "ASIAEXAMPLE", creds.AccessKeyID)
		assert.Equal(t, "secret", creds.SecretAccessKey)
		assert.Equal(t, "session-token", creds.SessionToken)
		assert.Equal(t, testNow.Add(time.Hour), creds.Expiration)
		api.AssertExpectations(t)
	})

	t.Run("no network call without identity token", func(t *testing.T) {
		tests := []struct {
			name string
			s    *session.Session
		}{
			{"nil session", nil},
			{"empty identity token", &session.Session{ID: "s"}},
			{"refresh failed", &session.Session{ID: "s", IdentityToken: "t", Error: session.ErrorRefreshFailed}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				api := new(MockIdentityAPI)
				e := newTestExchanger(t, api)

				_, err := e.Exchange(ctx, tt.s)
				assert.ErrorIs(t, err, ErrNoAuthenticatedSession)
				api.AssertNotCalled(t, "GetId", mock.Anything, mock.Anything)
				api.AssertNotCalled(t, "GetCredentialsForIdentity", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("refused identity token", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.Anything).Return(nil, &smithy.GenericAPIError{
			Code:    "NotAuthorizedException",
			Message: "Invalid login token. Token expired.",
			Fault:   smithy.FaultClient,
		})

		e := newTestExchanger(t, api)
		_, err := e.Exchange(ctx, authenticatedSession())
		assert.ErrorIs(t, err, ErrNotAuthorized)
		assert.Contains(t, err.Error(), "Token expired")
	})

	t.Run("expired credentials are rejected", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.Anything).
			Return(&cognitoidentity.GetIdOutput{IdentityId: aws.String("identity-1")}, nil)
		api.On("GetCredentialsForIdentity", mock.Anything, mock.Anything).
			Return(credentialsOutput(testNow.Add(-time.Second)), nil)

		e := newTestExchanger(t, api)
		_, err := e.Exchange(ctx, authenticatedSession())
		assert.ErrorIs(t, err, ErrCredentialsExpired)
	})

	t.Run("incomplete response", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.Anything).
			Return(&cognitoidentity.GetIdOutput{IdentityId: aws.String("identity-1")}, nil)
		api.On("GetCredentialsForIdentity", mock.Anything, mock.Anything).
			Return(&cognitoidentity.GetCredentialsForIdentityOutput{}, nil)

		e := newTestExchanger(t, api)
		_, err := e.Exchange(ctx, authenticatedSession())
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})

	t.Run("transport failure", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))

		e := newTestExchanger(t, api)
		_, err := e.Exchange(ctx, authenticatedSession())
		assert.ErrorIs(t, err, ErrExchangeFailed)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestExchanger_CircuitBreaker(t *testing.T) {
	ctx := context.Background()

	t.Run("opens after consecutive outages", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.Anything).Return(nil, errors.New("service unavailable")).Times(5)

		e := newTestExchanger(t, api)
		for i := 0; i < 5; i++ {
			_, err := e.Exchange(ctx, authenticatedSession())
			require.Error(t, err)
		}

		_, err := e.Exchange(ctx, authenticatedSession())
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.ErrorIs(t, err, ErrExchangeFailed)
		api.AssertNumberOfCalls(t, "GetId", 5)
	})

	t.Run("refused tokens do not trip the breaker", func(t *testing.T) {
		api := new(MockIdentityAPI)
		api.On("GetId", mock.Anything, mock.Anything).Return(nil, &smithy.GenericAPIError{
			Code:  "NotAuthorizedException",
			Fault: smithy.FaultClient,
		})

		e := newTestExchanger(t, api)
		for i := 0; i < 8; i++ {
			_, err := e.Exchange(ctx, authenticatedSession())
			assert.ErrorIs(t, err, ErrNotAuthorized)
		}
		api.AssertNumberOfCalls(t, "GetId", 8)
	})
}

type stubKeeper struct {
	result *session.Session
	err    error
	calls  int
}

func (s *stubKeeper) EnsureValid(_ context.Context, in *session.Session) (*session.Session, error) {
	s.calls++
	if s.result == nil && s.err == nil {
		return in, nil
	}
	return s.result, s.err
}

type stubExchanger struct {
	got *session.Session
}

func (s *stubExchanger) Exchange(_ context.Context, in *session.Session) (*Credentials, error) {
	s.got = in
	return &Credentials{AccessKeyID: "AK", Expiration: testNow.Add(time.Hour)}, nil
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("exchanges the refreshed session", func(t *testing.T) {
		refreshed := authenticatedSession()
		refreshed.IdentityToken = "id-new"
		keeper := &stubKeeper{result: refreshed}
		exchanger := &stubExchanger{}

		creds, err := NewResolver(keeper, exchanger).Resolve(ctx, authenticatedSession())
		require.NoError(t, err)
		assert.Equal(t, "AK", creds.AccessKeyID)
		assert.Equal(t, "id-new", exchanger.got.IdentityToken)
	})

	t.Run("session states requiring sign-in", func(t *testing.T) {
		for _, cause := range []error{session.ErrRefreshFailed, session.ErrMissingRefreshToken, session.ErrNotFound} {
			t.Run(cause.Error(), func(t *testing.T) {
				exchanger := &stubExchanger{}
				_, err := NewResolver(&stubKeeper{err: cause}, exchanger).Resolve(ctx, authenticatedSession())
				assert.ErrorIs(t, err, ErrNoAuthenticatedSession)
				assert.ErrorIs(t, err, cause)
				assert.Nil(t, exchanger.got)
			})
		}
	})

	t.Run("transport failures pass through", func(t *testing.T) {
		_, err := NewResolver(&stubKeeper{err: session.ErrTokenEndpoint}, &stubExchanger{}).
			Resolve(ctx, authenticatedSession())
		assert.ErrorIs(t, err, session.ErrTokenEndpoint)
		assert.NotErrorIs(t, err, ErrNoAuthenticatedSession)
	})

	t.Run("nil session", func(t *testing.T) {
		keeper := &stubKeeper{}
		_, err := NewResolver(keeper, &stubExchanger{}).Resolve(ctx, nil)
		assert.ErrorIs(t, err, ErrNoAuthenticatedSession)
		assert.Zero(t, keeper.calls)
	})
}

func TestCredentials_Expired(t *testing.T) {
	c := &Credentials{Expiration: testNow}
	assert.True(t, c.Expired(testNow))
	assert.False(t, c.Expired(testNow.Add(-time.Nanosecond)))
}

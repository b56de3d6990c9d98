package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker/v2"
	"github.com/uniedit/album/internal/module/session"
	"github.com/uniedit/album/internal/utils/metrics"
	"go.uber.org/zap"
)

// Credentials are temporary storage credentials bound to one identity.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// Expired reports whether the credentials can no longer be used at now.
func (c *Credentials) Expired(now time.Time) bool {
	return !now.Before(c.Expiration)
}

// IdentityAPI is the subset of the identity pool API used here.
type IdentityAPI interface {
	GetId(ctx context.Context, in *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// NewIdentityClient creates an identity pool client for region. Both calls
// used by the exchanger are unauthenticated, so no AWS credentials are loaded.
func NewIdentityClient(ctx context.Context, region string) (*cognitoidentity.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return cognitoidentity.NewFromConfig(cfg), nil
}

// Exchanger trades identity tokens for temporary storage credentials.
type Exchanger struct {
	api      IdentityAPI
	cfg      Config
	provider string
	breaker  *gobreaker.CircuitBreaker[*Credentials]
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewExchanger validates cfg and returns an Exchanger.
func NewExchanger(api IdentityAPI, cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Exchanger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := cfg.ProviderName()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("federation")

	settings := gobreaker.Settings{
		Name:        "identity-pool",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A refused token is the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || isClientFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Exchanger{
		api:      api,
		cfg:      cfg,
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker[*Credentials](settings),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ProviderName returns the logins key used for every exchange.
func (e *Exchanger) ProviderName() string {
	return e.provider
}

// Exchange returns fresh credentials for the session's identity token.
// It never touches the network for a session without a usable identity token.
func (e *Exchanger) Exchange(ctx context.Context, s *session.Session) (*Credentials, error) {
	if !s.Authenticated() {
		return nil, ErrNoAuthenticatedSession
	}

	logins := map[string]string{e.provider: s.IdentityToken}

	creds, err := e.breaker.Execute(func() (*Credentials, error) {
		idOut, err := e.api.GetId(ctx, &cognitoidentity.GetIdInput{
			IdentityPoolId: aws.String(e.cfg.IdentityPoolID),
			Logins:         logins,
		})
		if err != nil {
			return nil, err
		}

		credOut, err := e.api.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
			IdentityId: idOut.IdentityId,
			Logins:     logins,
		})
		if err != nil {
			return nil, err
		}

		c := credOut.Credentials
		if c == nil || c.AccessKeyId == nil || c.SecretKey == nil || c.SessionToken == nil || c.Expiration == nil {
			return nil, fmt.Errorf("%w: incomplete credentials in response", ErrExchangeFailed)
		}
		return &Credentials{
			AccessKeyID:     aws.ToString(c.AccessKeyId),
			SecretAccessKey: aws.ToString(c.SecretKey),
			SessionToken:    aws.ToString(c.SessionToken),
			Expiration:      aws.ToTime(c.Expiration),
		}, nil
	})
	if err != nil {
		return nil, e.fail(s, err)
	}

	if creds.Expired(e.now()) {
		e.metrics.RecordCredentialExchange("error")
		return nil, ErrCredentialsExpired
	}

	e.metrics.RecordCredentialExchange("success")
	e.logger.Debug("credentials exchanged",
		zap.String("session_id", s.ID),
		zap.Time("expiration", creds.Expiration),
	)
	return creds, nil
}

func (e *Exchanger) fail(s *session.Session, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotAuthorizedException" {
		e.metrics.RecordCredentialExchange("rejected")
		e.logger.Warn("identity token rejected",
			zap.String("session_id", s.ID),
			zap.String("code", apiErr.ErrorCode()),
			zap.String("message", apiErr.ErrorMessage()),
		)
		return fmt.Errorf("%w: %s", ErrNotAuthorized, apiErr.ErrorMessage())
	}

	e.metrics.RecordCredentialExchange("error")
	e.logger.Error("credential exchange failed",
		zap.String("session_id", s.ID),
		zap.Error(err),
	)
	if errors.Is(err, ErrExchangeFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExchangeFailed, err)
}

func isClientFault(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient
}

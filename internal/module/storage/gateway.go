package storage

import (
	"context"
	"time"

	"github.com/uniedit/album/internal/module/federation"
	"github.com/uniedit/album/internal/module/session"
)

// Bucket is the set of operations available once credentials are bound.
type Bucket interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, limit int32, token *string) (*Page, error)
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (*PresignedURL, error)
}

// CredentialSource resolves fresh federated credentials for a session.
type CredentialSource interface {
	Resolve(ctx context.Context, s *session.Session) (*federation.Credentials, error)
}

// ClientBuilder creates a client for one credential set.
type ClientBuilder interface {
	Client(creds *federation.Credentials) (*Client, error)
}

// Gateway hands out buckets bound to a session's federated credentials.
type Gateway struct {
	credentials CredentialSource
	clients     ClientBuilder
}

// NewGateway creates a Gateway.
func NewGateway(credentials CredentialSource, clients ClientBuilder) *Gateway {
	return &Gateway{credentials: credentials, clients: clients}
}

// Bind resolves credentials for s and returns a bucket using them.
// Every call performs a new exchange; the result must not be kept beyond
// the operation it was bound for.
func (g *Gateway) Bind(ctx context.Context, s *session.Session) (Bucket, error) {
	creds, err := g.credentials.Resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	client, err := g.clients.Client(creds)
	if err != nil {
		return nil, err
	}
	return client, nil
}

var (
	_ Bucket        = (*Client)(nil)
	_ ClientBuilder = (*ClientFactory)(nil)
)

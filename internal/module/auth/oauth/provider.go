package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/uniedit/album/internal/infra/httpclient"
	"golang.org/x/oauth2"
)

// Provider defines the interface for the hosted sign-in provider.
type Provider interface {
	// AuthURL returns the authorization URL for state.
	AuthURL(state string) string

	// Exchange exchanges the authorization code for tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Config holds OAuth provider configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
}

// HostedUIProvider implements the authorization code flow against an
// OIDC hosted sign-in domain. Client credentials go in the basic auth header.
type HostedUIProvider struct {
	config *oauth2.Config
	client *http.Client
}

// NewHostedUIProvider creates a new hosted sign-in provider.
func NewHostedUIProvider(cfg *Config, client *http.Client) *HostedUIProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}

	return &HostedUIProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client: client,
	}
}

// AuthURL returns the OAuth authorization URL.
func (p *HostedUIProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange exchanges the authorization code for tokens.
func (p *HostedUIProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(httpclient.WithOAuth2Client(ctx, p.client), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

var _ Provider = (*HostedUIProvider)(nil)

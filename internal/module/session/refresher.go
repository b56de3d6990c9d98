package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/uniedit/album/internal/infra/httpclient"
	"golang.org/x/oauth2"
)

// Refresher exchanges a refresh token for a fresh token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

// OAuthRefresher refreshes against an OAuth 2.0 token endpoint with the
// client credentials sent as HTTP basic authentication.
type OAuthRefresher struct {
	config *oauth2.Config
	client *http.Client
}

// NewOAuthRefresher creates a refresher for tokenURL.
func NewOAuthRefresher(clientID, clientSecret, tokenURL string, client *http.Client) *OAuthRefresher {
	return &OAuthRefresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client: client,
	}
}

// Refresh performs a grant_type=refresh_token exchange. The result always
// carries an access token, an identity token and a positive lifetime.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	ctx = httpclient.WithOAuth2Client(ctx, r.client)

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	return TokensFromOAuth2(tok, refreshToken)
}

// TokensFromOAuth2 validates a token endpoint response. previousRefresh is
// dropped from the result when the provider echoed it back unchanged.
func TokensFromOAuth2(tok *oauth2.Token, previousRefresh string) (*Tokens, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access_token", ErrMalformedTokenResponse)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: missing id_token", ErrMalformedTokenResponse)
	}
	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		// Expiry is derived from the same expires_in field.
		expiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	if expiresIn <= 0 {
		return nil, fmt.Errorf("%w: missing expires_in", ErrMalformedTokenResponse)
	}

	t := &Tokens{
		AccessToken:   tok.AccessToken,
		IdentityToken: idToken,
		ExpiresIn:     expiresIn,
	}
	if tok.RefreshToken != previousRefresh {
		t.RefreshToken = tok.RefreshToken
	}
	return t, nil
}

func classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s", ErrRefreshRejected, retrieveErr.ErrorCode)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTokenEndpoint, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err)
}

var _ Refresher = (*OAuthRefresher)(nil)

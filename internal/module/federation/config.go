package federation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/uniedit/album/internal/infra/config"
)

// Config identifies the identity pool and the user pool that issues the
// identity tokens it trusts.
type Config struct {
	Issuer         string
	IdentityPoolID string
	Region         string
}

// ConfigFromApp extracts the federation settings from the validated app config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		Issuer:         cfg.Auth.Issuer,
		IdentityPoolID: cfg.Storage.IdentityPoolID,
		Region:         cfg.Storage.Region,
	}
}

// Validate reports a missing value or an issuer without a user pool segment.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Issuer) == "" {
		missing = append(missing, "issuer")
	}
	if strings.TrimSpace(c.IdentityPoolID) == "" {
		missing = append(missing, "identity pool id")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if _, err := c.userPoolID(); err != nil {
		return err
	}
	return nil
}

// ProviderName returns the logins key the identity pool expects for tokens
// from the issuer, cognito-idp.<region>.amazonaws.com/<userPoolId>.
func (c Config) ProviderName() (string, error) {
	poolID, err := c.userPoolID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", c.Region, poolID), nil
}

// userPoolID is the issuer path segment after the last slash.
func (c Config) userPoolID() (string, error) {
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return "", fmt.Errorf("%w: issuer: %v", ErrInvalidConfig, err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return "", fmt.Errorf("%w: issuer %q has no user pool segment", ErrInvalidConfig, c.Issuer)
	}
	return path[idx+1:], nil
}

package config

import "strings"

// ConfigError reports every required setting that is missing or invalid.
// It is a deployment defect and stops startup.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required config: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid config: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Initialize validates cfg once at process start. Downstream components depend
// on the returned value and never consult the environment again.
func Initialize(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, &ConfigError{Missing: []string{"config"}}
	}

	e := &ConfigError{}
	required := []struct {
		key   string
		value string
	}{
		{"storage.bucket", cfg.Storage.Bucket},
		{"storage.region", cfg.Storage.Region},
		{"storage.identity_pool_id", cfg.Storage.IdentityPoolID},
		{"auth.issuer", cfg.Auth.Issuer},
		{"auth.client_id", cfg.Auth.ClientID},
		{"auth.client_secret", cfg.Auth.ClientSecret},
		{"auth.token_endpoint", cfg.Auth.ResolvedTokenEndpoint()},
		{"auth.session_secret", cfg.Auth.SessionSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			e.Missing = append(e.Missing, r.key)
		}
	}

	if cfg.Storage.PresignTTL < 0 {
		e.Invalid = append(e.Invalid, "storage.presign_ttl must not be negative")
	}
	if cfg.Storage.MaxUploadBytes < 0 {
		e.Invalid = append(e.Invalid, "storage.max_upload_bytes must not be negative")
	}

	if len(e.Missing) > 0 || len(e.Invalid) > 0 {
		return nil, e
	}
	return cfg, nil
}

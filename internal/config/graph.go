package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// GraphConfig holds configuration for the collaboration-platform API and the
// delegated credential exchange against the identity provider.
type GraphConfig struct {
	TenantID     string `env:"GRAPH_TENANT_ID" yaml:"tenant_id" required:"true"`
	ClientID     string `env:"GRAPH_CLIENT_ID" yaml:"client_id" required:"true"`
	ClientSecret string `env:"GRAPH_CLIENT_SECRET" yaml:"client_secret" required:"true"`

	// Scopes is the space-separated delegated permission set requested on
	// every exchange.
	Scopes string `env:"GRAPH_SCOPES" yaml:"scopes" default:"Files.ReadWrite.All Chat.ReadWrite offline_access"`

	BaseURL string `env:"GRAPH_BASE_URL" yaml:"base_url" default:"https://graph.microsoft.com/v1.0"`

	// TokenCacheTTL bounds how long an exchanged access token is reused
	// before a fresh exchange is performed.
	TokenCacheTTL time.Duration `env:"TOKEN_CACHE_TTL" yaml:"token_cache_ttl" default:"5m"`

	RequestTimeout time.Duration `env:"GRAPH_REQUEST_TIMEOUT" yaml:"request_timeout" default:"30s"`
}

// ScopeList returns the configured permission set as a slice.
func (c GraphConfig) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

func (c GraphConfig) validate() error {
	var result error
	if c.TokenCacheTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("token_cache_ttl must be greater than 0"))
	}
	if len(c.ScopeList()) == 0 {
		result = multierror.Append(result, fmt.Errorf("graph scopes must not be empty"))
	}
	if c.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("graph base_url must not be empty"))
	}
	return result
}

package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

// ExchangeResult is the tagged outcome of a credential exchange. Exactly one
// of AccessToken or ReauthRequired is meaningful; callers pattern-match
// instead of catching provider-specific errors.
type ExchangeResult struct {
	AccessToken    string
	ReauthRequired bool
}

// TokenExchanger turns a durable session handle into a fresh delegated
// access token for a permission set.
type TokenExchanger interface {
	Exchange(ctx context.Context, handle string, scopes []string) (ExchangeResult, error)
}

// ExchangerConfig configures the identity-provider exchange.
type ExchangerConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// TokenURL overrides the identity endpoint (tests, sovereign clouds).
	TokenURL string

	Logger logger.Logger
}

// IdentityExchanger performs the confidential-client refresh exchange
// against the identity provider.
type IdentityExchanger struct {
	conf *oauth2.Config
	log  logger.Logger
}

// NewIdentityExchanger creates an exchanger for the tenant.
func NewIdentityExchanger(cfg ExchangerConfig) *IdentityExchanger {
	endpoint := microsoft.AzureADEndpoint(cfg.TenantID)
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL}
	}
	return &IdentityExchanger{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		log: cfg.Logger,
	}
}

// Exchange redeems the durable handle for a fresh access token. A rejected
// handle (revoked or expired consent) is reported as ReauthRequired, not as
// an error; transport and provider faults are errors.
func (e *IdentityExchanger) Exchange(ctx context.Context, handle string, scopes []string) (ExchangeResult, error) {
	conf := *e.conf
	conf.Scopes = scopes

	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: handle})
	token, err := source.Token()
	if err != nil {
		if isReauthError(err) {
			if e.log != nil {
				e.log.Warn("identity provider rejected durable handle, interactive re-consent required")
			}
			return ExchangeResult{ReauthRequired: true}, nil
		}
		return ExchangeResult{}, fmt.Errorf("credential exchange: %w", err)
	}
	if token.AccessToken == "" {
		return ExchangeResult{}, fmt.Errorf("credential exchange returned an empty access token")
	}
	return ExchangeResult{AccessToken: token.AccessToken}, nil
}

// isReauthError detects the provider responses that mean the durable handle
// itself is no longer good, as opposed to a transient fault.
func isReauthError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	switch retrieveErr.ErrorCode {
	case "invalid_grant", "interaction_required", "consent_required":
		return true
	}
	body := string(retrieveErr.Body)
	for _, marker := range []string{"invalid_grant", "interaction_required", "AADSTS50076", "AADSTS65001", "AADSTS70008", "AADSTS700082"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// discoveryTimeout bounds the discovery fetch so a hung issuer cannot stall startup.
var discoveryTimeout = 10 * time.Second

// OIDCProvider holds the parts of an OpenID Connect discovery document this
// service uses.
type OIDCProvider struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// NewOIDCProvider fetches <issuer>/.well-known/openid-configuration.
func NewOIDCProvider(issuerURL string) (*OIDCProvider, error) {
	discoveryURL := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"

	var provider OIDCProvider
	resp, err := resty.New().SetTimeout(discoveryTimeout).R().
		SetHeader("Accept", "application/json").
		SetResult(&provider).
		Get(discoveryURL)
	if err != nil {
		return nil, fmt.Errorf("fetching OIDC discovery document: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("OIDC discovery endpoint returned status %d", resp.StatusCode())
	}
	if provider.JWKSURI == "" {
		return nil, fmt.Errorf("OIDC discovery document missing jwks_uri")
	}

	return &provider, nil
}

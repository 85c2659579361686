package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// discoveryDocument is the subset of the OIDC discovery response the
// server reads. Tokens are issued by the external identity provider;
// only the JWKS endpoint matters here.
type discoveryDocument struct {
	JWKSURI string `json:"jwks_uri"`
}

// DiscoverJWKSURL resolves the identity provider's JWKS endpoint from
// its /.well-known/openid-configuration document. Any OIDC-compliant
// issuer works (Keycloak, Auth0, Okta, Azure AD, Google).
func DiscoverJWKSURL(issuerURL string) (string, error) {
	issuerURL = strings.TrimRight(issuerURL, "/")
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(issuerURL + "/.well-known/openid-configuration")
	if err != nil {
		return "", fmt.Errorf("fetch OIDC discovery document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OIDC discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode OIDC discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("OIDC discovery document missing jwks_uri")
	}
	return doc.JWKSURI, nil
}

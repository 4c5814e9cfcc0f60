// Package provider builds the provider authorization URL for a loopback flow.
package provider

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// CallbackPath is the only path the loopback listener serves.
const CallbackPath = "/oauth-callback"

// RedirectURI returns the loopback redirect URI for port.
// Both the authorization request and the token exchange must use this exact value.
func RedirectURI(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, CallbackPath)
}

// OAuth2Config assembles the oauth2 configuration shared by both legs of the flow.
func OAuth2Config(session *core.AuthSession, endpoint oauth2.Endpoint, port int) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     session.ClientID,
		ClientSecret: session.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  RedirectURI(port),
		Scopes:       session.Scopes,
	}
}

// Builder produces authorization URLs for a fixed provider endpoint.
type Builder struct {
	endpoint oauth2.Endpoint
}

// New creates a Builder for endpoint.
func New(endpoint oauth2.Endpoint) *Builder {
	return &Builder{endpoint: endpoint}
}

// Build returns the authorization URL for session with the listener bound to port.
// It requests offline access and forces the consent prompt so a refresh token is issued.
func (b *Builder) Build(session *core.AuthSession, port int) string {
	return OAuth2Config(session, b.endpoint, port).AuthCodeURL(
		session.CSRFToken,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
}

package provider

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	// GoogleAuthURL is Google's v2 authorization endpoint.
	GoogleAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

	gitlabAuthorizePath = "/oauth/authorize"
	gitlabTokenPath     = "/oauth/token"
	giteaAuthorizePath  = "/login/oauth/authorize"
	giteaTokenPath      = "/login/oauth/access_token"

	defaultGitLabHost = "https://gitlab.com"
)

// Name identifies a supported OAuth provider.
type Name string

const (
	Google Name = "google"
	GitHub Name = "github"
	GitLab Name = "gitlab"
	Gitea  Name = "gitea"
)

// ErrUnknownProvider is returned for a provider name that has no endpoints.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrHostRequired is returned when a self-hosted provider is selected without a host.
var ErrHostRequired = errors.New("provider host is required")

// ParseName parses a provider name; empty means Google.
func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case "":
		return Google, nil
	case Google, GitHub, GitLab, Gitea:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Endpoints returns the authorization and token endpoints for name.
// host selects a self-hosted GitLab (defaults to gitlab.com) or Gitea instance
// and is ignored for Google and GitHub.
func Endpoints(name Name, host string) (oauth2.Endpoint, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")

	var ep oauth2.Endpoint
	switch name {
	case Google, "":
		ep = google.Endpoint
		ep.AuthURL = GoogleAuthURL
	case GitHub:
		ep = github.Endpoint
	case GitLab:
		if host == "" {
			host = defaultGitLabHost
		}
		ep = oauth2.Endpoint{
			AuthURL:  host + gitlabAuthorizePath,
			TokenURL: host + gitlabTokenPath,
		}
	case Gitea:
		if host == "" {
			return oauth2.Endpoint{}, fmt.Errorf("gitea: %w", ErrHostRequired)
		}
		ep = oauth2.Endpoint{
			AuthURL:  host + giteaAuthorizePath,
			TokenURL: host + giteaTokenPath,
		}
	default:
		return oauth2.Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep, nil
}

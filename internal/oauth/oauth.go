// Package oauth wraps the external identity providers used for login.
package oauth

import (
	"context"
	"net/http"
	"sort"

	"golang.org/x/oauth2"

	"github.com/msomdec/calendar-api/internal/domain"
)

// Identity is what a provider vouches for about the signed-in account.
type Identity struct {
	Provider   domain.Provider
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// Provider runs one provider's authorization code flow.
type Provider interface {
	Name() domain.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, token *oauth2.Token) (Identity, error)
}

// Config holds the settings shared by all providers. Endpoint and
// APIBaseURL default to the provider's public endpoints when zero.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	APIBaseURL   string
	HTTPClient   *http.Client
}

func (c Config) oauth2Config(scopes []string, endpoint oauth2.Endpoint) *oauth2.Config {
	if c.Endpoint.AuthURL != "" {
		endpoint = c.Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

// withClient makes oauth2 use the configured HTTP client for ctx.
func (c Config) withClient(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

// Registry holds the providers enabled at startup.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.Provider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get looks up a provider by its path name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[domain.Provider(name)]
	return p, ok
}

// Names lists the enabled providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/msomdec/calendar-api/internal/domain"
)

const githubAPI = "https://api.github.com"

// GitHub signs users in with their GitHub account.
type GitHub struct {
	cfg     Config
	conf    *oauth2.Config
	apiBase string
}

var _ Provider = (*GitHub)(nil)

func NewGitHub(cfg Config) *GitHub {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = githubAPI
	}
	return &GitHub{
		cfg:     cfg,
		conf:    cfg.oauth2Config([]string{"user:email"}, github.Endpoint),
		apiBase: base,
	}
}

func (g *GitHub) Name() domain.Provider { return domain.ProviderGitHub }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

func (g *GitHub) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.conf.Exchange(g.cfg.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: github token exchange: %v", domain.ErrProvider, err)
	}
	return tok, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Identity reads the profile and the primary verified email. Accounts
// without one are rejected.
func (g *GitHub) Identity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	client := g.conf.Client(g.cfg.withClient(ctx), tok)

	var user githubUser
	if err := g.get(ctx, client, "/user", &user); err != nil {
		return Identity{}, err
	}
	if user.ID == 0 {
		return Identity{}, fmt.Errorf("%w: github account id missing", domain.ErrProvider)
	}

	var emails []githubEmail
	if err := g.get(ctx, client, "/user/emails", &emails); err != nil {
		return Identity{}, err
	}
	var email string
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}
	if email == "" {
		return Identity{}, fmt.Errorf("%w: github account has no verified primary email", domain.ErrProvider)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return Identity{
		Provider:   domain.ProviderGitHub,
		ExternalID: strconv.FormatInt(user.ID, 10),
		Email:      email,
		Name:       name,
		AvatarURL:  user.AvatarURL,
	}, nil
}

func (g *GitHub) get(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: github %s: %v", domain.ErrProvider, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: github %s returned %d", domain.ErrProvider, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode github %s: %v", domain.ErrProvider, path, err)
	}
	return nil
}

package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/msomdec/calendar-api/internal/domain"
)

// Google signs users in with their Google account.
type Google struct {
	cfg  Config
	conf *oauth2.Config
}

var _ Provider = (*Google)(nil)

func NewGoogle(cfg Config) *Google {
	return &Google{
		cfg:  cfg,
		conf: cfg.oauth2Config([]string{"openid", "email", "profile"}, google.Endpoint),
	}
}

func (g *Google) Name() domain.Provider { return domain.ProviderGoogle }

func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.conf.Exchange(g.cfg.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: google token exchange: %v", domain.ErrProvider, err)
	}
	return tok, nil
}

// Identity fetches the userinfo profile. The email must be reported as
// verified; a missing verified_email field counts as unverified.
func (g *Google) Identity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	opts := []option.ClientOption{option.WithHTTPClient(g.conf.Client(g.cfg.withClient(ctx), tok))}
	if g.cfg.APIBaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.APIBaseURL))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: google userinfo: %v", domain.ErrProvider, err)
	}
	if info.Id == "" {
		return Identity{}, fmt.Errorf("%w: google account id missing", domain.ErrProvider)
	}
	if info.Email == "" {
		return Identity{}, fmt.Errorf("%w: google account has no email", domain.ErrProvider)
	}
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return Identity{}, fmt.Errorf("%w: google email is not verified", domain.ErrProvider)
	}

	return Identity{
		Provider:   domain.ProviderGoogle,
		ExternalID: info.Id,
		Email:      info.Email,
		Name:       info.Name,
		AvatarURL:  info.Picture,
	}, nil
}

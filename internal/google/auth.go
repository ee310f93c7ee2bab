package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
)

// ErrNoClientSecret is returned when no client secret has been imported yet.
var ErrNoClientSecret = errors.New("no client secret imported; run 'auth import <client_secret.json>' first")

// DefaultScopes are the read-only scopes the exporter needs.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/presentations.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

// TokenStore holds the imported client secret and the OAuth2 token between
// runs. The metadata store satisfies it.
type TokenStore interface {
	Secret() json.RawMessage
	Token() *oauth2.Token
	SetToken(tok *oauth2.Token) error
}

// AuthConfig holds authorizer configuration.
type AuthConfig struct {
	Store TokenStore
	// Scopes defaults to DefaultScopes.
	Scopes []string
	// ListenAddr for the local redirect listener (default "127.0.0.1:0").
	ListenAddr string
	// Notify presents the authorization URL to the user.
	Notify func(authURL string)
	// Logger for auth events.
	Logger *slog.Logger
}

// Authorizer produces an authorized token source, running the local-redirect
// consent flow when no stored token exists and persisting refreshed tokens.
type Authorizer struct {
	store      TokenStore
	oauth      *oauth2.Config
	listenAddr string
	notify     func(string)
	logger     *slog.Logger
}

// NewAuthorizer builds an authorizer from the stored client secret.
func NewAuthorizer(cfg AuthConfig) (*Authorizer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string) {}
	}

	secret := cfg.Store.Secret()
	if len(secret) == 0 {
		return nil, ErrNoClientSecret
	}
	oauthCfg, err := oauthgoogle.ConfigFromJSON(secret, cfg.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("google: parsing client secret: %w", err)
	}

	return &Authorizer{
		store:      cfg.Store,
		oauth:      oauthCfg,
		listenAddr: cfg.ListenAddr,
		notify:     cfg.Notify,
		logger:     cfg.Logger,
	}, nil
}

// TokenSource returns a refreshing token source, running the consent flow
// first if no token is stored. Refreshed tokens are written back to the
// store.
func (a *Authorizer) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok := a.store.Token()
	if tok == nil {
		var err error
		tok, err = a.consentFlow(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.store.SetToken(tok); err != nil {
			return nil, fmt.Errorf("google: persisting token: %w", err)
		}
	}

	return &persistingTokenSource{
		src:   oauth2.ReuseTokenSource(tok, a.oauth.TokenSource(ctx, tok)),
		store: a.store,
		last:  tok.AccessToken,
	}, nil
}

// consentFlow runs the browser consent flow against a loopback listener and
// exchanges the returned code for a token.
func (a *Authorizer) consentFlow(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("google: starting redirect listener: %w", err)
	}
	defer ln.Close()

	cfg := *a.oauth
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, fmt.Errorf("google: generating state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			http.Error(w, "authorization failed", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("google: authorization denied: %s", errParam)}
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: errors.New("google: oauth state mismatch")}
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		results <- result{code: r.URL.Query().Get("code")}
	})}
	go server.Serve(ln)
	defer server.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	a.notify(authURL)
	a.logger.Info("waiting for authorization", slog.String("redirect", cfg.RedirectURL))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("google: exchanging authorization code: %w", err)
		}
		return tok, nil
	}
}

// persistingTokenSource writes refreshed tokens back to the store so the next
// run skips the consent flow.
type persistingTokenSource struct {
	src   oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	changed := tok.AccessToken != p.last
	if changed {
		p.last = tok.AccessToken
	}
	p.mu.Unlock()

	if changed {
		if err := p.store.SetToken(tok); err != nil {
			return nil, fmt.Errorf("google: persisting refreshed token: %w", err)
		}
	}
	return tok, nil
}

// Package auth keeps the user's Google OAuth2 token, runs the browser consent
// flow and persists refreshed tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

const stateTTL = 5 * time.Minute

// ErrTokenNotSet indicates no OAuth token is available.
var ErrTokenNotSet = errors.New("no token defined")

// Scopes are the Gmail permissions the agent asks for: reading mail and
// managing drafts.
var Scopes = []string{gmail.GmailReadonlyScope, gmail.GmailComposeScope}

// NewConfig builds the OAuth2 client configuration for Google.
func NewConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// Token manages OAuth2 tokens with thread-safe operations.
type Token struct {
	mu          sync.RWMutex
	cfg         *oauth2.Config
	token       *oauth2.Token
	persistPath string
	states      map[string]time.Time
}

// NewToken creates a Token manager, loading from disk if path provided.
func NewToken(cfg *oauth2.Config, persistPath string) (*Token, error) {
	t := &Token{
		cfg:         cfg,
		persistPath: persistPath,
		states:      make(map[string]time.Time),
	}
	if persistPath == "" {
		return t, nil
	}

	data, err := os.ReadFile(persistPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("File %s doesn't exist, it will be created after authorization", persistPath)
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile failed: %w", err)
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("json.Unmarshal failed: %w", err)
	}
	t.token = token

	return t, nil
}

// RedirectURL generates the OAuth2 authorization URL with a secure random state.
func (t *Token) RedirectURL() (string, error) {
	state, err := t.newState()
	if err != nil {
		return "", fmt.Errorf("newState failed: %w", err)
	}

	return t.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (t *Token) newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read failed: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for s, exp := range t.states {
		if exp.Before(now) {
			delete(t.states, s)
		}
	}
	t.states[state] = now.Add(stateTTL)

	return state, nil
}

func (t *Token) consumeState(state string) bool {
	if state == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.states[state]
	delete(t.states, state)

	return ok && time.Now().Before(expiry)
}

// AuthorizeCode exchanges an authorization code for a token after validating
// state, and persists it.
func (t *Token) AuthorizeCode(ctx context.Context, code string, state string) error {
	if !t.consumeState(state) {
		return errors.New("invalid or expired state parameter")
	}

	tok, err := t.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("cfg.Exchange failed: %w", err)
	}

	t.mu.Lock()
	t.token = tok
	t.mu.Unlock()

	return t.Persist()
}

// OAuthToken returns the current OAuth2 token.
func (t *Token) OAuthToken() (*oauth2.Token, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.token == nil {
		return nil, ErrTokenNotSet
	}

	return t.token, nil
}

// Client returns an HTTP client that authorizes requests. Refreshed tokens
// are kept and written to disk.
func (t *Token) Client(ctx context.Context) (*http.Client, error) {
	tok, err := t.OAuthToken()
	if err != nil {
		return nil, err
	}

	src := oauth2.ReuseTokenSource(tok, &savingSource{
		src:   t.cfg.TokenSource(ctx, tok),
		owner: t,
	})

	return oauth2.NewClient(ctx, src), nil
}

// Persist saves the token to disk.
func (t *Token) Persist() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.persistPath == "" || t.token == nil {
		return nil
	}

	data, err := json.Marshal(t.token)
	if err != nil {
		return fmt.Errorf("json.Marshal failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.persistPath), 0o700); err != nil {
		return fmt.Errorf("os.MkdirAll failed: %w", err)
	}
	if err := os.WriteFile(t.persistPath, data, 0600); err != nil {
		return fmt.Errorf("os.WriteFile failed: %w", err)
	}

	return nil
}

type savingSource struct {
	src   oauth2.TokenSource
	owner *Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.owner.mu.Lock()
	changed := s.owner.token == nil || s.owner.token.AccessToken != tok.AccessToken
	s.owner.token = tok
	s.owner.mu.Unlock()

	if changed {
		log.Println("OAuth token refreshed")
		if err := s.owner.Persist(); err != nil {
			log.Println(fmt.Errorf("owner.Persist failed: %w", err))
		}
	}

	return tok, nil
}

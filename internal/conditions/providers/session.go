package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultEarthEngineURL is the public Earth Engine REST endpoint.
	DefaultEarthEngineURL = "https://earthengine.googleapis.com"

	// EarthEngineScope is the OAuth2 scope requested for default credentials.
	EarthEngineScope = "https://www.googleapis.com/auth/earthengine"
)

var (
	ErrNoProject     = errors.New("imagery project is not configured")
	ErrNoCredentials = errors.New("imagery access token is not configured")
)

// NewTokenSource returns a static source for accessToken, or the
// application default credentials when accessToken is empty. Tokens are
// cached and refreshed on expiry.
func NewTokenSource(ctx context.Context, accessToken string) (oauth2.TokenSource, error) {
	if accessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}), nil
	}
	ts, err := google.DefaultTokenSource(ctx, EarthEngineScope)
	if err != nil {
		return nil, fmt.Errorf("default credentials: %w", err)
	}
	return ts, nil
}

// Session is the process-wide handle to the imagery platform. It is
// initialized lazily on first use and verified again after Invalidate.
type Session struct {
	client  *http.Client
	baseURL string
	project string
	tokens  oauth2.TokenSource

	mu    sync.Mutex
	ready atomic.Bool
}

// NewSession creates an uninitialized session. An empty baseURL selects
// the public API.
func NewSession(client *http.Client, baseURL, project string, tokens oauth2.TokenSource) *Session {
	if baseURL == "" {
		baseURL = DefaultEarthEngineURL
	}
	if tokens != nil {
		tokens = oauth2.ReuseTokenSource(nil, tokens)
	}
	return &Session{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		project: project,
		tokens:  tokens,
	}
}

// Ensure initializes the session once by verifying the configured
// credentials against the platform. A failed attempt is retried on the
// next call; a successful one holds until Invalidate.
func (s *Session) Ensure(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready.Load() {
		return nil
	}

	if s.project == "" {
		return ErrNoProject
	}
	if s.tokens == nil {
		return ErrNoCredentials
	}
	if s.client == nil {
		return errNoHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("algorithms"), nil)
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	if err := s.authorize(req); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("initialize session: %w", &StatusError{Code: resp.StatusCode, Body: string(body)})
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.ready.Store(true)
	return nil
}

// Ready reports whether the session has been initialized.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Invalidate forces the next Ensure to verify credentials again.
func (s *Session) Invalidate() {
	s.ready.Store(false)
}

// endpoint returns the project-scoped URL for method, e.g. "value:compute".
func (s *Session) endpoint(method string) string {
	return fmt.Sprintf("%s/v1/projects/%s/%s", s.baseURL, s.project, method)
}

func (s *Session) authorize(req *http.Request) error {
	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if tok.AccessToken == "" {
		return ErrNoCredentials
	}
	tok.SetAuthHeader(req)
	req.Header.Set("X-Goog-User-Project", s.project)
	return nil
}

package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/model"
)

// Client is one caller's view of a Provider: it holds at most one session
// token and exposes the operations the session manager drives.
type Client struct {
	provider *Provider

	mu    sync.Mutex
	token string
	// pending is a token issued by CreateSession that has not resolved to an
	// identity yet.
	pending string
}

func NewClient(p *Provider, token string) *Client {
	return &Client{provider: p, token: token}
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) CreateAccount(ctx context.Context, email, password, displayName string) (model.Identity, error) {
	return c.provider.CreateAccount(ctx, email, password, displayName)
}

// CreateSession authenticates and stages the new token. The held token is
// only replaced once the next GetCurrentIdentity resolves the new one, so a
// failed lookup leaves the previous session intact.
func (c *Client) CreateSession(ctx context.Context, email, password string) error {
	token, err := c.provider.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}

	c.mu.Lock()
	stale := c.pending
	c.pending = token
	c.mu.Unlock()

	if stale != "" {
		_ = c.provider.Revoke(ctx, stale)
	}
	return nil
}

func (c *Client) GetCurrentIdentity(ctx context.Context) (model.Identity, error) {
	c.mu.Lock()
	held, pending := c.token, c.pending
	c.pending = ""
	c.mu.Unlock()

	if pending != "" {
		return c.promote(ctx, held, pending)
	}

	identity, err := c.provider.Resolve(ctx, held)
	if errors.Is(err, apperr.ErrNoSession) {
		// Stale token: forget it so later calls skip the store.
		c.setToken("")
	}
	return identity, err
}

// promote resolves a staged token and, on success, swaps it in and revokes
// the one it replaces. On failure the staged token is discarded.
func (c *Client) promote(ctx context.Context, held, pending string) (model.Identity, error) {
	identity, err := c.provider.Resolve(ctx, pending)
	if err != nil {
		_ = c.provider.Revoke(ctx, pending)
		return identity, err
	}

	c.setToken(pending)
	if held != "" {
		_ = c.provider.Revoke(ctx, held)
	}
	return identity, nil
}

// DestroySession revokes the token. The client forgets it even when the
// store call fails.
func (c *Client) DestroySession(ctx context.Context) error {
	token := c.Token()
	c.setToken("")
	return c.provider.Revoke(ctx, token)
}

package client

import (
	"context"
	"sync"

	"github.com/joestump/joe-marks/internal/bookmarks"
)

// TokenIdentity signs in with a personal access token. Tokens are minted
// through the server's browser login; see LoginURL.
type TokenIdentity struct {
	client *Client

	mu        sync.Mutex
	current   *bookmarks.Identity
	listeners map[int]func(*bookmarks.Identity)
	nextID    int
}

var _ bookmarks.IdentityProvider = (*TokenIdentity)(nil)

func NewTokenIdentity(c *Client) *TokenIdentity {
	return &TokenIdentity{client: c, listeners: make(map[int]func(*bookmarks.Identity))}
}

// SignIn resolves token to an identity, makes it the client's credential,
// and notifies listeners. On failure the previous identity stays.
func (p *TokenIdentity) SignIn(ctx context.Context, token string) (*bookmarks.Identity, error) {
	ident, err := p.client.Me(ctx, token)
	if err != nil {
		return nil, err
	}
	p.client.SetToken(token)

	p.mu.Lock()
	p.current = ident
	p.mu.Unlock()

	p.notify(ident)
	return copyIdentity(ident), nil
}

// SignOut clears the credential and notifies listeners with nil.
func (p *TokenIdentity) SignOut() {
	p.client.SetToken("")

	p.mu.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if wasSignedIn {
		p.notify(nil)
	}
}

func (p *TokenIdentity) CurrentIdentity() *bookmarks.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

func (p *TokenIdentity) OnIdentityChange(fn func(*bookmarks.Identity)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// LoginURL is where a user signs in with a browser to mint a token.
func (p *TokenIdentity) LoginURL() string {
	return p.client.BaseURL() + "/auth/login"
}

func (p *TokenIdentity) notify(ident *bookmarks.Identity) {
	p.mu.Lock()
	fns := make([]func(*bookmarks.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(ident))
	}
}

func copyIdentity(ident *bookmarks.Identity) *bookmarks.Identity {
	if ident == nil {
		return nil
	}
	c := *ident
	return &c
}

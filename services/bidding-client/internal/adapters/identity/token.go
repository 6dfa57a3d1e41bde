// Package identity resolves the signed-in bidder from an access token.
package identity

import (
	"log/slog"
	"sync"

	"github.com/floroz/livebid/pkg/auth"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// TokenIdentity holds the session's access token. The user is the token
// subject for as long as the token validates; an expired or missing token
// means nobody is signed in.
type TokenIdentity struct {
	signer *auth.Signer
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewTokenIdentity creates an identity for token, validated with signer
func NewTokenIdentity(signer *auth.Signer, token string, logger *slog.Logger) *TokenIdentity {
	return &TokenIdentity{signer: signer, token: token, logger: logger}
}

var _ bids.Identity = (*TokenIdentity)(nil)

// CurrentUserID returns the token subject while the token is valid
func (i *TokenIdentity) CurrentUserID() (string, bool) {
	token := i.Token()
	if token == "" {
		return "", false
	}
	claims, err := i.signer.ValidateToken(token)
	if err != nil {
		i.logger.Debug("Access token rejected", "error", err)
		return "", false
	}
	return claims.Subject, true
}

// Token returns the raw token for the bearer interceptor
func (i *TokenIdentity) Token() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token
}

// SignIn replaces the session token
func (i *TokenIdentity) SignIn(token string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.token = token
}

// SignOut clears the session token
func (i *TokenIdentity) SignOut() {
	i.SignIn("")
}

// Package tokenauth implements the Stream-Token Verifier: a membership
// check over stream tokens owned by an external user store, repopulated
// on a miss.
package tokenauth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/acerestreamer/gateway/internal/apperr"
)

// User is the subset of the external user store's record this component
// needs: XC credential check and stream-token membership.
type User struct {
	Username    string
	StreamToken string
}

// UserDirectory is the external user store. Implementations are expected
// to be comparatively expensive (a remote call or a DB query), which is
// why the Verifier only calls it on a cache miss.
type UserDirectory interface {
	Users(ctx context.Context) ([]User, error)
}

// Verifier holds the stream-token set. Verify is lock-free: readers load
// an immutable snapshot map via atomic.Pointer, and a miss triggers a
// copy-on-write refresh rather than a lock around the read path.
type Verifier struct {
	dir UserDirectory

	tokens *atomic.Pointer[map[string]struct{}]
	users  *atomic.Pointer[map[string]User] // keyed by username, for XC auth

	refreshMu sync.Mutex
}

func New(dir UserDirectory) *Verifier {
	emptyTokens := map[string]struct{}{}
	emptyUsers := map[string]User{}
	v := &Verifier{
		dir:    dir,
		tokens: new(atomic.Pointer[map[string]struct{}]),
		users:  new(atomic.Pointer[map[string]User]),
	}
	v.tokens.Store(&emptyTokens)
	v.users.Store(&emptyUsers)
	return v
}

// Verify reports whether token is a currently-valid stream token. On a
// miss it repopulates from the UserDirectory once and rechecks.
func (v *Verifier) Verify(token string) bool {
	if token == "" {
		return false
	}
	if v.hasToken(token) {
		return true
	}
	v.refresh(context.Background())
	return v.hasToken(token)
}

// VerifyCredentials implements the XC front-door's
// (username, password) == (user.username, user.stream_token) check.
func (v *Verifier) VerifyCredentials(username, password string) error {
	if v.matchesCredentials(username, password) {
		return nil
	}
	v.refresh(context.Background())
	if v.matchesCredentials(username, password) {
		return nil
	}
	return apperr.New(apperr.Unauthorized, "invalid username or stream token")
}

func (v *Verifier) hasToken(token string) bool {
	m := *v.tokens.Load()
	_, ok := m[token]
	return ok
}

func (v *Verifier) matchesCredentials(username, password string) bool {
	m := *v.users.Load()
	u, ok := m[username]
	return ok && u.StreamToken == password
}

func (v *Verifier) refresh(ctx context.Context) {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	users, err := v.dir.Users(ctx)
	if err != nil {
		return
	}
	tokens := make(map[string]struct{}, len(users))
	byUsername := make(map[string]User, len(users))
	for _, u := range users {
		if u.StreamToken != "" {
			tokens[u.StreamToken] = struct{}{}
		}
		byUsername[u.Username] = u
	}
	v.tokens.Store(&tokens)
	v.users.Store(&byUsername)
}

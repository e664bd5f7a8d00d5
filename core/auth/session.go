package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/rbac"
)

type contextKey string

const SessionContextKey contextKey = "session"

var (
	ErrMissingKey = errors.New("api key required")
	ErrUnknownKey = errors.New("unknown api key")
)

// Session is the caller identity attached to a request.
type Session struct {
	// KeyID is a short fingerprint of the key, safe to log.
	KeyID string
	Roles []string
}

func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*Session)
	return sess, ok && sess != nil
}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, sess)
}

type apiKey struct {
	secret []byte
	role   string
	id     string
}

// KeyManager resolves request credentials against the configured API keys.
// With no keys configured every request runs as admin.
type KeyManager struct {
	keys []apiKey
}

func NewKeyManager(cfg config.AuthConfig, policy *rbac.Policy) (*KeyManager, error) {
	m := &KeyManager{}
	for _, raw := range cfg.APIKeys {
		key, role, ok := strings.Cut(strings.TrimSpace(raw), ":")
		key = strings.TrimSpace(key)
		role = strings.ToLower(strings.TrimSpace(role))
		if !ok || key == "" || role == "" {
			return nil, errors.New("api key entry must be key:role")
		}
		if policy != nil && !policy.HasRole(role) {
			return nil, fmt.Errorf("api key role %q is not defined (known: %s)", role, strings.Join(policy.RoleNames(), ", "))
		}
		m.keys = append(m.keys, apiKey{secret: []byte(key), role: role, id: fingerprint(key)})
	}
	return m, nil
}

func (m *KeyManager) Enabled() bool {
	return m != nil && len(m.keys) > 0
}

// Authenticate reads X-API-Key or a bearer token from r.
func (m *KeyManager) Authenticate(r *http.Request) (*Session, error) {
	if !m.Enabled() {
		return &Session{KeyID: "anonymous", Roles: []string{rbac.RoleAdmin}}, nil
	}
	presented := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if presented == "" {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			presented = strings.TrimSpace(authz[7:])
		}
	}
	if presented == "" {
		return nil, ErrMissingKey
	}
	for _, k := range m.keys {
		if subtle.ConstantTimeCompare(k.secret, []byte(presented)) == 1 {
			return &Session{KeyID: k.id, Roles: []string{k.role}}, nil
		}
	}
	return nil, ErrUnknownKey
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

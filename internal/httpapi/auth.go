package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
)

// principal is the authenticated caller as established by the auth middleware.
type principal struct {
	Subject string
	Email   string
	Roles   []string
}

func (p principal) hasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type ctxKey string

const (
	ctxKeyPrincipal ctxKey = "principal"
	ctxKeyAccount   ctxKey = "account"
)

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(principal)
	return p, ok
}

func accountFrom(ctx context.Context) (ledger.Account, bool) {
	a, ok := ctx.Value(ctxKeyAccount).(ledger.Account)
	return a, ok
}

type jwtClaims struct {
	Issuer    string   `json:"iss,omitempty"`
	Subject   string   `json:"sub,omitempty"`
	Audience  any      `json:"aud,omitempty"` // string or []string
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
}

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[len("Bearer "):]), true
}

func base64URLDecode(s string) ([]byte, error) {
	// JWT uses base64url without padding
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(s)
}

func verifyHS256(token, secret string) (jwtClaims, error) {
	var empty jwtClaims
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return empty, errors.New("invalid token format")
	}
	headerB, err := base64URLDecode(parts[0])
	if err != nil {
		return empty, errors.New("bad header b64")
	}
	payloadB, err := base64URLDecode(parts[1])
	if err != nil {
		return empty, errors.New("bad payload b64")
	}
	sigB, err := base64URLDecode(parts[2])
	if err != nil {
		return empty, errors.New("bad signature b64")
	}

	// Expect alg HS256
	var hdr struct{ Alg, Typ string }
	if err := json.Unmarshal(headerB, &hdr); err != nil {
		return empty, errors.New("bad header json")
	}
	if !strings.EqualFold(hdr.Alg, "HS256") {
		return empty, errors.New("unsupported alg")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parts[0]))
	mac.Write([]byte{'.'})
	mac.Write([]byte(parts[1]))
	sum := mac.Sum(nil)
	if !hmac.Equal(sigB, sum) {
		return empty, errors.New("invalid signature")
	}

	var claims jwtClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return empty, errors.New("bad claims json")
	}
	return claims, nil
}

func audContains(aud any, expected string) bool {
	if expected == "" {
		return true
	}
	switch v := aud.(type) {
	case string:
		return strings.EqualFold(v, expected)
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && strings.EqualFold(s, expected) {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if strings.EqualFold(s, expected) {
				return true
			}
		}
	}
	return false
}

// authenticate establishes the caller principal. With a configured HS256
// secret it enforces Authorization: Bearer JWT carrying sub, email and roles
// claims; without one it falls back to the X-Subject / X-Email / X-Roles
// headers for local development and tests.
func (s *Server) authenticate() func(http.Handler) http.Handler {
	secret := strings.TrimSpace(s.cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p principal
			if secret == "" {
				p = principal{
					Subject: strings.TrimSpace(r.Header.Get("X-Subject")),
					Email:   strings.TrimSpace(r.Header.Get("X-Email")),
					Roles:   splitRoles(r.Header.Get("X-Roles")),
				}
			} else {
				tok, ok := parseBearerToken(r)
				if !ok {
					unauthorized(w)
					return
				}
				claims, err := verifyHS256(tok, secret)
				if err != nil {
					unauthorized(w)
					return
				}
				now := time.Now().Unix()
				if claims.NotBefore != 0 && now < claims.NotBefore {
					unauthorized(w)
					return
				}
				if claims.ExpiresAt != 0 && now >= claims.ExpiresAt {
					unauthorized(w)
					return
				}
				if s.cfg.JWTIssuer != "" && !strings.EqualFold(claims.Issuer, s.cfg.JWTIssuer) {
					unauthorized(w)
					return
				}
				if s.cfg.JWTAudience != "" && !audContains(claims.Audience, s.cfg.JWTAudience) {
					unauthorized(w)
					return
				}
				p = principal{Subject: claims.Subject, Email: claims.Email, Roles: claims.Roles}
			}
			if p.Subject == "" {
				unauthorized(w)
				return
			}
			if len(p.Roles) == 0 {
				p.Roles = []string{"user"}
			}
			ctx := context.WithValue(r.Context(), ctxKeyPrincipal, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// withAccount resolves the caller's account and stores it in the context.
// A first request by a user-role principal provisions the account; anyone
// else without a row is refused, indistinguishably from a missing resource.
func (s *Server) withAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			var (
				a   ledger.Account
				err error
			)
			if p.hasRole("user") {
				a, err = s.accountSvc.EnsureForSubject(r.Context(), p.Subject, p.Email)
			} else {
				a, err = s.accountSvc.ResolveSubject(r.Context(), p.Subject)
			}
			if errors.Is(err, errs.ErrNotFound) {
				forbidden(w)
				return
			}
			if err != nil {
				s.log.Error("resolve account", "subject", p.Subject, "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyAccount, a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin gates the administration routes on the admin role.
func (s *Server) requireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok || !p.hasRole("admin") {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func splitRoles(raw string) []string {
	out := make([]string, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

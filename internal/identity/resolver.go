package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	headerAuthorization = "Authorization"
	headerPhoneSession  = "X-Phone-Session"
	headerGuestToken    = "X-Guest-Token"
	queryUserID         = "user_id"
)

// PhoneSessions resolves a server-issued phone-session token to a user id.
// Returns "" (no error) for unknown tokens.
type PhoneSessions interface {
	Lookup(ctx context.Context, token string) (string, error)
}

// Resolver maps an incoming request to at most one Identity. Channel
// precedence, strongest first: session token, phone-session token, user_id
// query parameter, guest token. A present-but-invalid token on a strong
// channel rejects the request instead of falling through to a weaker one.
type Resolver struct {
	secret []byte
	phone  PhoneSessions
}

func NewResolver(sessionSecret []byte, phone PhoneSessions) *Resolver {
	return &Resolver{secret: sessionSecret, phone: phone}
}

func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	if raw := bearerToken(req.Header.Get(headerAuthorization)); raw != "" {
		userID, err := r.verifySession(raw)
		if err != nil {
			return Identity{}, ErrIdentityRequired
		}
		return Identity{Kind: KindSession, UserID: userID}, nil
	}

	if tok := strings.TrimSpace(req.Header.Get(headerPhoneSession)); tok != "" {
		userID, err := r.phone.Lookup(req.Context(), tok)
		if err != nil {
			return Identity{}, fmt.Errorf("phone session lookup: %w", err)
		}
		if userID == "" {
			return Identity{}, ErrIdentityRequired
		}
		return Identity{Kind: KindPhone, UserID: userID}, nil
	}

	if uid := strings.TrimSpace(req.URL.Query().Get(queryUserID)); uid != "" {
		return Identity{Kind: KindQuery, UserID: uid}, nil
	}

	if tok := strings.TrimSpace(req.Header.Get(headerGuestToken)); tok != "" {
		return Identity{Kind: KindGuest, GuestToken: tok}, nil
	}

	return Identity{}, ErrIdentityRequired
}

func (r *Resolver) verifySession(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return claims.Subject, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

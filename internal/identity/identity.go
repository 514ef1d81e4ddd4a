package identity

import "errors"

// ErrIdentityRequired means the request resolved to no actor at all, or the
// channel it resolved through is not allowed for the attempted operation.
var ErrIdentityRequired = errors.New("identity required")

type Kind string

const (
	// KindSession is a user id taken from a server-verified session token.
	KindSession Kind = "SESSION_USER"
	// KindPhone is a user id resolved from a server-issued phone-session token.
	KindPhone Kind = "PHONE_USER"
	// KindQuery is a bare user_id query parameter. Client-asserted, so it is
	// honoured for reads only.
	KindQuery Kind = "QUERY_USER"
	// KindGuest is an anonymous shopper identified by an opaque client token.
	KindGuest Kind = "GUEST"
)

// Identity is the single resolved actor a request operates as. Exactly one of
// UserID/GuestToken is set.
type Identity struct {
	Kind       Kind
	UserID     string
	GuestToken string
}

// Owner is the ownership key orders are scoped by.
type Owner struct {
	UserID     string
	GuestToken string
}

func (id Identity) Owner() Owner {
	return Owner{UserID: id.UserID, GuestToken: id.GuestToken}
}

// Key is the single string that names this owner: the user id, or the guest
// token for anonymous carts. Used for cache scoping and event partitioning.
func (o Owner) Key() string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.GuestToken
}

// WriteCapable reports whether this identity came through a channel trusted
// for mutations. A bare user_id parameter never is.
func (id Identity) WriteCapable() bool {
	return id.Kind != KindQuery
}

func ForUser(userID string) Identity {
	return Identity{Kind: KindSession, UserID: userID}
}

func ForGuest(token string) Identity {
	return Identity{Kind: KindGuest, GuestToken: token}
}

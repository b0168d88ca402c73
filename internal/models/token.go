package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Pair of tokens returned to the user on login and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Principal is the identity resolved from a valid access token.
// It lives in the request context and is discarded at request end.
type Principal struct {
	UserID   int64
	Username string
}

package auth

import "time"

// Strategy issues and verifies auth tokens carrying user id and role.
type Strategy interface {
	IssueToken(userID int64, role string) (string, error)
	ParseToken(token string) (userID int64, role string, err error)
	Name() string
}

type Options struct {
	TTL time.Duration
}

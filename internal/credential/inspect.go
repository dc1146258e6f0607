package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the status display shows about a token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect reads JWT claims without verifying the signature. Display only:
// an opaque or malformed token is still a valid credential to send.
func Inspect(token string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return nil, err
	}
	c := &Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

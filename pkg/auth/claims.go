package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// AccessTokenPayload is what a caller supplies when minting a token.
type AccessTokenPayload struct {
	UserID string
	Role   enums.MemberRole
	JTI    string
}

// AccessTokenClaims is the typed JWT accepted by the API. UserID is opaque to
// this service; it only identifies the caller that owns a reservation. Tokens
// that carry the user only in "sub" are accepted.
type AccessTokenClaims struct {
	UserID string           `json:"user_id"`
	Role   enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

var errNoUser = errors.New("token carries no user id")

// Validate runs after the registered-claim checks in jwt.Parser.
func (c *AccessTokenClaims) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		c.UserID = strings.TrimSpace(c.Subject)
	}
	if c.UserID == "" {
		return errNoUser
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid member role %q", c.Role)
	}
	return nil
}

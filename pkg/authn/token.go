package authn

import (
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// TokenClaims decodes the access token of a success payload without
// verifying its signature. Verification happens on the server; this is
// for displaying subject and expiry in the embedding UI.
func TokenClaims(m *msg.Message) (jwt.Token, error) {
	if m == nil || m.Token == "" {
		return nil, errors.New("payload carries no token")
	}
	token, err := jwt.ParseInsecure([]byte(m.Token))
	if err != nil {
		return nil, fmt.Errorf("unable to parse token: %w", err)
	}
	return token, nil
}

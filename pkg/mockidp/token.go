package mockidp

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/segmentio/ksuid"
)

func tokenExpiry() time.Time {
	return time.Now().Add(time.Hour)
}

func (s *Server) issueToken(conv *conversation) (string, error) {
	conv.mu.Lock()
	subject := conv.user
	conv.mu.Unlock()

	accessJwt := jwt.New()
	accessJwt.Set(jwt.IssuerKey, s.cfg.Issuer)
	accessJwt.Set(jwt.SubjectKey, subject)
	accessJwt.Set(jwt.ExpirationKey, tokenExpiry().Unix())
	accessJwt.Set(jwt.JwtIDKey, ksuid.New().String())

	tokenBytes, err := jwt.Sign(accessJwt, jwt.WithKey(jwa.ES256, s.sigKey))
	if err != nil {
		return "", fmt.Errorf("unable to sign access token: %w", err)
	}
	return string(tokenBytes), nil
}

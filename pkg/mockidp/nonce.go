package mockidp

import (
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
)

// nonceService issues the one-time thread ids of verifier challenges.
type nonceService struct {
	svc nonceutil.NonceService
}

func newNonceService() (*nonceService, error) {
	svc := nonceutil.NewNonceService()
	if err := svc.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize nonce service: %w", err)
	}
	return &nonceService{svc: svc}, nil
}

func (n *nonceService) issue() (string, error) {
	nonce, _, err := n.svc.Get()
	if err != nil {
		return "", err
	}
	return nonce, nil
}

// redeem consumes the nonce; a second redemption of the same value
// returns false.
func (n *nonceService) redeem(nonce string) bool {
	return n.svc.Redeem(nonce)
}

package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relaygate/gateway/contracts"
)

// Claims is the set of JWT claims the gateway understands: the standard
// subject/expiry pair plus the roles list and optional convenience copies
// of email/name/accountId.
type Claims struct {
	Roles     []string `json:"roles,omitempty"`
	Email     string   `json:"email,omitempty"`
	Name      string   `json:"name,omitempty"`
	AccountID string   `json:"accountId,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-SHA256 bearer tokens against a single shared
// secret. It is stateless after construction and safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier from the configured shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}

// Validate reports whether token carries a valid HMAC-SHA256 signature for
// the configured secret and has not expired. Any parse or verification
// failure, including expiry, yields false.
func (v *Verifier) Validate(token string) bool {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, v.keyFunc)
	return err == nil
}

// Authenticate extracts the AuthPrincipal from token. It must only be
// called after Validate has returned true; a malformed subject claim is
// reported as an error rather than panicking.
func (v *Verifier) Authenticate(token string) (*contracts.AuthPrincipal, error) {
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, v.keyFunc); err != nil {
		return nil, err
	}

	accountID, err := claims.GetSubject()
	if err != nil || accountID == "" {
		return nil, errors.New("auth: token missing subject claim")
	}

	return &contracts.AuthPrincipal{
		AccountID: accountID,
		Roles:     claims.Roles,
		Email:     claims.Email,
		Name:      claims.Name,
	}, nil
}

package server

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is the "iss" claim stamped into every bearer token this
// service issues.
const tokenIssuer = "gramforge-serve"

// validateToken checks that tok is a well-formed, unexpired bearer token
// signed with secret.
func validateToken(tok string, secret []byte) error {
	_, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithLeeway(time.Minute))

	return err
}

// generateToken issues a new bearer token signed with secret, valid for one
// hour from now.
func generateToken(secret []byte) (string, error) {
	claims := &jwt.MapClaims{
		"iss": tokenIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
		"sub": "gramforge-client",
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	tokStr, err := tok.SignedString(secret)
	if err != nil {
		return "", err
	}
	return tokStr, nil
}

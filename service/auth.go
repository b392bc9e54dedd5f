package service

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthenticateToken verifies an already-issued session token and returns the
// user id it was minted for. Tokens are issued by the external auth service;
// this side only checks the signature and expiry and trusts the subject.
func (s *Service) AuthenticateToken(tokenString string) (string, error) {
	if len(tokenString) == 0 {
		return "", errors.New("token not provided")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	userId, err := claims.GetSubject()
	if err != nil || userId == "" {
		return "", errors.New("missing subject claim")
	}

	return userId, nil
}

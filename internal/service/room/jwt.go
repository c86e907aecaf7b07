package room

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	MemberID string `json:"member_id"`
	RoomID   string `json:"room_id"`
	jwt.RegisteredClaims
}

func (s service) generateJWT(memberID, roomID string) (string, error) {
	now := s.now()
	claims := Claims{
		MemberID: memberID,
		RoomID:   roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

func (s service) parseJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAuthToken, err)
	}

	if !token.Valid || claims.MemberID == "" || claims.RoomID == "" {
		return nil, ErrInvalidAuthToken
	}

	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const issuer = "partnerpay"

type Role string

const (
	RolePartner  Role = "partner"
	RoleOperator Role = "operator"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

type JWTServiceInterface interface {
	GenerateJWT(partnerID string, role Role, expirationTime time.Time) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type Claims struct {
	PartnerID string `json:"partner_id,omitempty"`
	Role      Role   `json:"role"`
	jwt.StandardClaims
}

type JWTService struct {
	secret []byte
}

func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// GenerateJWT signs a token. Operator tokens may leave partnerID empty.
func (s *JWTService) GenerateJWT(partnerID string, role Role, expirationTime time.Time) (string, error) {
	claims := Claims{
		PartnerID: partnerID,
		Role:      role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Issuer != issuer {
		return nil, ErrInvalidClaims
	}
	switch claims.Role {
	case RolePartner:
		if claims.PartnerID == "" {
			return nil, ErrInvalidClaims
		}
	case RoleOperator:
	default:
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

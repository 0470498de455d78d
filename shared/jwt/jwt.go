package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openteam-dev/openteam-go/shared/domain"
	internal_errors "github.com/openteam-dev/openteam-go/shared/errors"
)

// JwtService issues and decodes store session tokens. The client only
// ever decodes (to read its own identity and expiry); the fake store in
// internal/storetest also issues.
type JwtService interface {
	NewToken(user domain.User) (string, error)
	DecodeUser(jwtStr string) (*domain.User, error)
}

type Jwt struct {
	secretKey string
	ttl       time.Duration
}

func New(secretKey string, ttl time.Duration) JwtService {
	return &Jwt{secretKey, ttl}
}

func (j *Jwt) NewToken(user domain.User) (string, error) {
	claims := jwt.MapClaims{}
	claims["uid"] = user.Id
	claims["name"] = user.Name
	claims["avatar"] = user.AvatarUrl
	claims["exp"] = time.Now().Add(j.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", errors.New("Can't create token")
	}
	return tokenString, nil
}

func (j *Jwt) DecodeUser(jwtStr string) (*domain.User, error) {
	token, err := jwt.Parse(jwtStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &internal_errors.ErrorWithStatusCode{Message: fmt.Sprintf("Unexpected signing method: %v", token.Header["alg"]), StatusCode: http.StatusUnauthorized}
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid token signature", StatusCode: http.StatusUnauthorized}
	}
	if !token.Valid {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid access token", StatusCode: http.StatusUnauthorized}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid token claims", StatusCode: http.StatusUnauthorized}
	}

	user := &domain.User{}
	if uid, ok := claims["uid"].(string); ok {
		user.Id = uid
	}
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	}
	if avatar, ok := claims["avatar"].(string); ok {
		user.AvatarUrl = avatar
	}
	if user.Id == "" {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid access token", StatusCode: http.StatusUnauthorized}
	}
	return user, nil
}

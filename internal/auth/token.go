package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token выпускает JWT сессии на сутки
func (s *Service) Token(uid string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uid,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	return token.SignedString(s.secret)
}

// VerifyToken проверяет подпись и срок токена и возвращает идентификатор пользователя
func (s *Service) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("пустой токен")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("неожиданный метод подписи")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("недействительный токен")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("недействительные claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("токен без идентификатора пользователя")
	}
	return userID, nil
}

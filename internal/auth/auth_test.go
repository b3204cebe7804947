package auth

import (
	"context"
	"io"
	"testing"

	"github.com/ButyrinIA/socialfeed/internal/storage/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newService() *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(memory.New(), "test-secret", log)
}

func TestRegister(t *testing.T) {
	service := newService()
	ctx := context.Background()

	identity, err := service.Register(ctx, "ada@x.com", "secret1")
	assert.NoError(t, err, "Ошибка при регистрации")
	assert.NotEmpty(t, identity.UID, "Ожидался непустой идентификатор")
}

func TestRegister_Taxonomy(t *testing.T) {
	service := newService()
	ctx := context.Background()

	_, err := service.Register(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail, "Ожидалась ошибка неверного email")

	_, err = service.Register(ctx, "ada@x.com", "")
	assert.ErrorIs(t, err, ErrMissingPassword, "Ожидалась ошибка отсутствия пароля")

	_, err = service.Register(ctx, "ada@x.com", "secret1")
	assert.NoError(t, err)
	_, err = service.Register(ctx, "ada@x.com", "another")
	assert.ErrorIs(t, err, ErrEmailInUse, "Ожидалась ошибка занятого email")
}

func TestAuthenticate(t *testing.T) {
	service := newService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "ada@x.com", "secret1")
	assert.NoError(t, err)
	assert.NoError(t, service.UpdateDisplayName(ctx, registered.UID, "Ada"))

	identity, err := service.Authenticate(ctx, "ada@x.com", "secret1")
	assert.NoError(t, err, "Ошибка при входе")
	assert.Equal(t, registered.UID, identity.UID)
	assert.Equal(t, "Ada", identity.DisplayName, "Отображаемое имя должно вернуться при входе")
}

func TestAuthenticate_Taxonomy(t *testing.T) {
	service := newService()
	ctx := context.Background()

	_, err := service.Register(ctx, "ada@x.com", "secret1")
	assert.NoError(t, err)

	_, err = service.Authenticate(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, ErrUserNotFound, "Ожидалась ошибка неизвестной учетной записи")

	_, err = service.Authenticate(ctx, "ada@x.com", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword, "Ожидалась ошибка неверного пароля")

	_, err = service.Authenticate(ctx, "ada@x.com", "")
	assert.ErrorIs(t, err, ErrMissingPassword, "Ожидалась ошибка отсутствия пароля")
}

func TestToken(t *testing.T) {
	service := newService()

	token, err := service.Token("user1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	assert.True(t, parsedToken.Valid)

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, "user1", claims["user_id"])
}

func TestVerifyToken(t *testing.T) {
	service := newService()

	token, err := service.Token("user1")
	assert.NoError(t, err)

	userID, err := service.VerifyToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "user1", userID)
}

func TestVerifyToken_Invalid(t *testing.T) {
	service := newService()

	_, err := service.VerifyToken("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "пустой токен")

	_, err = service.VerifyToken("invalid-token")
	assert.Error(t, err)

	other := NewService(memory.New(), "wrong-key", logrus.New())
	wrongKeyToken, err := other.Token("user1")
	assert.NoError(t, err)
	_, err = service.VerifyToken(wrongKeyToken)
	assert.Error(t, err)
}

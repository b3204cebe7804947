package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Фиксированная таксономия ошибок сервиса аутентификации
var (
	ErrUserNotFound      = errors.New("auth: user not found")
	ErrWrongPassword     = errors.New("auth: wrong password")
	ErrEmailInUse        = errors.New("auth: email already in use")
	ErrInvalidCredential = errors.New("auth: invalid credential")
	ErrInvalidEmail      = errors.New("auth: invalid email")
	ErrMissingPassword   = errors.New("auth: missing password")
)

// Service - управляемый сервис аутентификации: регистрация, вход,
// обновление отображаемого имени и токены сессий
type Service struct {
	store  storage.Storage
	secret []byte
	log    *logrus.Logger
}

func NewService(store storage.Storage, secret string, log *logrus.Logger) *Service {
	return &Service{store: store, secret: []byte(secret), log: log}
}

// Register создает учетную запись и возвращает новую идентичность
func (s *Service) Register(ctx context.Context, email, password string) (*models.Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrEmailInUse) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"uid": account.UID}).Info("Учетная запись создана")
	return &models.Identity{UID: account.UID}, nil
}

// Authenticate проверяет учетные данные и возвращает идентичность
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrWrongPassword
		}
		return nil, ErrInvalidCredential
	}

	return &models.Identity{UID: account.UID, DisplayName: account.DisplayName}, nil
}

// UpdateDisplayName задает отображаемое имя учетной записи
func (s *Service) UpdateDisplayName(ctx context.Context, uid, name string) error {
	return s.store.UpdateAccountName(ctx, uid, name)
}

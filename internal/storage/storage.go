package storage

import (
	"context"
	"errors"

	"github.com/ButyrinIA/socialfeed/internal/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailInUse      = errors.New("email already in use")
	ErrAccountNotFound = errors.New("account not found")
)

// Storage - контракт внешнего хранилища: документы постов, профили и учетные записи.
// Подписка отдает полные срезы коллекции (снимки), а не отдельные изменения.
type Storage interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	// ListPosts возвращает все посты, упорядоченные по createdAt по убыванию
	ListPosts(ctx context.Context) ([]models.Post, error)
	UpdatePostContent(ctx context.Context, id, content string) error
	DeletePost(ctx context.Context, id string) error

	// AddLike добавляет пользователя в множество лайков и увеличивает счетчик
	// одним атомарным обновлением; повторное добавление - no-op без изменения счетчика
	AddLike(ctx context.Context, postID, userID string) error
	// RemoveLike - зеркальная операция для AddLike
	RemoveLike(ctx context.Context, postID, userID string) error

	AddComment(ctx context.Context, postID string, comment *models.Comment) error
	RemoveComment(ctx context.Context, postID, commentID string) error

	// Subscribe открывает живую подписку на коллекцию постов. Канал получает
	// полный упорядоченный список после каждого изменения и закрывается при
	// отмене контекста.
	Subscribe(ctx context.Context) (<-chan []models.Post, error)

	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	GetProfiles(ctx context.Context, uids []string) (map[string]*models.Profile, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateAccountName(ctx context.Context, uid, name string) error

	Close() error
}

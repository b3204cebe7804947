package posts

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxPostLen    = 500
	maxCommentLen = 200
)

var (
	ErrAuthRequired   = errors.New("authentication required")
	ErrNotOwner       = errors.New("not the author")
	ErrEmptyContent   = errors.New("post content is empty")
	ErrContentTooLong = errors.New("post content exceeds 500 characters")
	ErrEmptyComment   = errors.New("comment text is empty")
	ErrCommentTooLong = errors.New("comment exceeds 200 characters")
)

// Service - прямые сквозные мутации постов и комментариев: без оптимистичных
// локальных изменений, результат виден через следующий снимок ленты
type Service struct {
	store storage.Storage
	log   *logrus.Logger
}

func NewService(store storage.Storage, log *logrus.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) Create(ctx context.Context, author *models.Identity, content string) (*models.Post, error) {
	if author == nil {
		return nil, ErrAuthRequired
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxPostLen {
		return nil, ErrContentTooLong
	}

	name := author.DisplayName
	if name == "" {
		name = "Anonymous"
	}

	now := time.Now()
	post := &models.Post{
		ID:         uuid.New().String(),
		UID:        author.UID,
		AuthorName: name,
		Content:    content,
		Likes:      []string{},
		Comments:   []models.Comment{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"post": post.ID, "uid": author.UID}).Info("Пост создан")
	return post, nil
}

func (s *Service) Update(ctx context.Context, author *models.Identity, postID, content string) error {
	if author == nil {
		return ErrAuthRequired
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxPostLen {
		return ErrContentTooLong
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UID != author.UID {
		return ErrNotOwner
	}

	return s.store.UpdatePostContent(ctx, postID, content)
}

func (s *Service) Delete(ctx context.Context, author *models.Identity, postID string) error {
	if author == nil {
		return ErrAuthRequired
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UID != author.UID {
		return ErrNotOwner
	}

	return s.store.DeletePost(ctx, postID)
}

// AddComment проверяет границу длины локально, до какой-либо записи
func (s *Service) AddComment(ctx context.Context, author *models.Identity, postID, text string) (*models.Comment, error) {
	if author == nil {
		return nil, ErrAuthRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, ErrCommentTooLong
	}

	name := author.DisplayName
	if name == "" {
		name = "Anonymous"
	}

	comment := &models.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    author.UID,
		UserName:  name,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.store.AddComment(ctx, postID, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment возвращает ошибку not-found, если комментарий уже удален
// другой сессией
func (s *Service) DeleteComment(ctx context.Context, author *models.Identity, postID, commentID string) error {
	if author == nil {
		return ErrAuthRequired
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	for _, c := range post.Comments {
		if c.ID == commentID {
			if c.UserID != author.UID {
				return ErrNotOwner
			}
			return s.store.RemoveComment(ctx, postID, commentID)
		}
	}
	return storage.ErrCommentNotFound
}

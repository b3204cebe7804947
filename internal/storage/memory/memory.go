package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
)

// MemoryStorage - хранилище в памяти для тестов и локального запуска
type MemoryStorage struct {
	posts    map[string]*models.Post
	profiles map[string]*models.Profile
	accounts map[string]*models.Account
	subs     map[int]chan []models.Post
	nextSub  int
	mu       sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		posts:    make(map[string]*models.Post),
		profiles: make(map[string]*models.Profile),
		accounts: make(map[string]*models.Account),
		subs:     make(map[int]chan []models.Post),
	}
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Срезы копируются, чтобы пост не делил память с вызывающей стороной
	clone := clonePost(post)
	s.posts[post.ID] = &clone
	s.notifyLocked()
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, storage.ErrPostNotFound
	}

	clone := clonePost(post)
	return &clone, nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked(), nil
}

func (s *MemoryStorage) UpdatePostContent(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[id]
	if !exists {
		return storage.ErrPostNotFound
	}

	post.Content = content
	post.UpdatedAt = time.Now()
	s.notifyLocked()
	return nil
}

func (s *MemoryStorage) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[id]; !exists {
		return storage.ErrPostNotFound
	}

	delete(s.posts, id)
	s.notifyLocked()
	return nil
}

func (s *MemoryStorage) AddLike(ctx context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[postID]
	if !exists {
		return storage.ErrPostNotFound
	}

	// Повторный лайк не меняет ни множество, ни счетчик
	if post.LikedBy(userID) {
		return nil
	}

	post.Likes = append(post.Likes, userID)
	post.LikesCount = len(post.Likes)
	post.UpdatedAt = time.Now()
	s.notifyLocked()
	return nil
}

func (s *MemoryStorage) RemoveLike(ctx context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[postID]
	if !exists {
		return storage.ErrPostNotFound
	}

	for i, id := range post.Likes {
		if id == userID {
			post.Likes = append(post.Likes[:i], post.Likes[i+1:]...)
			post.LikesCount = len(post.Likes)
			post.UpdatedAt = time.Now()
			s.notifyLocked()
			return nil
		}
	}
	return nil
}

func (s *MemoryStorage) AddComment(ctx context.Context, postID string, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[postID]
	if !exists {
		return storage.ErrPostNotFound
	}

	post.Comments = append(post.Comments, *comment)
	post.CommentsCount = len(post.Comments)
	post.UpdatedAt = time.Now()
	s.notifyLocked()
	return nil
}

func (s *MemoryStorage) RemoveComment(ctx context.Context, postID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, exists := s.posts[postID]
	if !exists {
		return storage.ErrPostNotFound
	}

	for i, c := range post.Comments {
		if c.ID == commentID {
			post.Comments = append(post.Comments[:i], post.Comments[i+1:]...)
			post.CommentsCount = len(post.Comments)
			post.UpdatedAt = time.Now()
			s.notifyLocked()
			return nil
		}
	}
	return storage.ErrCommentNotFound
}

func (s *MemoryStorage) Subscribe(ctx context.Context) (<-chan []models.Post, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan []models.Post, 1)
	s.subs[id] = ch
	// Начальный снимок, как при первой загрузке коллекции
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	// Очистка подписки после отмены контекста
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if ch, exists := s.subs[id]; exists {
			close(ch)
			delete(s.subs, id)
		}
		s.mu.Unlock()
	}()

	return ch, nil
}

func (s *MemoryStorage) CreateProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *profile
	s.profiles[profile.UID] = &clone
	return nil
}

func (s *MemoryStorage) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[uid]
	if !exists {
		return nil, storage.ErrProfileNotFound
	}

	clone := *profile
	return &clone, nil
}

func (s *MemoryStorage) GetProfiles(ctx context.Context, uids []string) (map[string]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*models.Profile, len(uids))
	for _, uid := range uids {
		if profile, exists := s.profiles[uid]; exists {
			clone := *profile
			result[uid] = &clone
		}
	}
	return result, nil
}

func (s *MemoryStorage) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Email]; exists {
		return storage.ErrEmailInUse
	}

	clone := *account
	s.accounts[account.Email] = &clone
	return nil
}

func (s *MemoryStorage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[email]
	if !exists {
		return nil, storage.ErrAccountNotFound
	}

	clone := *account
	return &clone, nil
}

func (s *MemoryStorage) UpdateAccountName(ctx context.Context, uid, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.UID == uid {
			account.DisplayName = name
			return nil
		}
	}
	return storage.ErrAccountNotFound
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.posts = make(map[string]*models.Post)
	s.profiles = make(map[string]*models.Profile)
	s.accounts = make(map[string]*models.Account)
	return nil
}

// snapshotLocked собирает полный упорядоченный список постов; вызывается под блокировкой
func (s *MemoryStorage) snapshotLocked() []models.Post {
	posts := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, clonePost(post))
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

// notifyLocked рассылает свежий снимок всем подписчикам; медленный подписчик
// получает только последний снимок, промежуточные вытесняются
func (s *MemoryStorage) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func clonePost(post *models.Post) models.Post {
	clone := *post
	clone.Likes = append([]string(nil), post.Likes...)
	clone.Comments = append([]models.Comment(nil), post.Comments...)
	return clone
}

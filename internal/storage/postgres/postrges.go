package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	pool *pgxpool.Pool
	dsn  string
}

func New(dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	_, err = pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			uid TEXT NOT NULL,
			author_name TEXT NOT NULL,
			content TEXT NOT NULL,
			likes TEXT[] NOT NULL DEFAULT '{}',
			likes_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE TABLE IF NOT EXISTS profiles (
			uid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS accounts (
			uid TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash BYTEA NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE OR REPLACE FUNCTION notify_posts_changed() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('posts_changed', '');
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS posts_changed ON posts;
		CREATE TRIGGER posts_changed
			AFTER INSERT OR UPDATE OR DELETE ON posts
			FOR EACH STATEMENT EXECUTE FUNCTION notify_posts_changed();

		DROP TRIGGER IF EXISTS comments_changed ON comments;
		CREATE TRIGGER comments_changed
			AFTER INSERT OR UPDATE OR DELETE ON comments
			FOR EACH STATEMENT EXECUTE FUNCTION notify_posts_changed();
	`)

	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool, dsn: dsn}, nil
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, uid, author_name, content, likes, likes_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.UID, post.AuthorName, post.Content, post.Likes, len(post.Likes), post.CreatedAt, post.UpdatedAt)
	return err
}

func (s *PostgresStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	err := s.pool.QueryRow(ctx, `
		SELECT id, uid, author_name, content, likes, likes_count, created_at, updated_at
		FROM posts
		WHERE id=$1`, id).Scan(&p.ID, &p.UID, &p.AuthorName, &p.Content, &p.Likes, &p.LikesCount, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadComments(ctx, map[string]*models.Post{p.ID: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) ListPosts(ctx context.Context) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, uid, author_name, content, likes, likes_count, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	byID := make(map[string]*models.Post)
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UID, &p.AuthorName, &p.Content, &p.Likes, &p.LikesCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		byID[posts[i].ID] = &posts[i]
	}
	if err := s.loadComments(ctx, byID); err != nil {
		return nil, err
	}
	return posts, nil
}

// loadComments подгружает комментарии постов в порядке создания
func (s *PostgresStorage) loadComments(ctx context.Context, posts map[string]*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(posts))
	for id := range posts {
		ids = append(ids, id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, post_id, user_id, user_name, text, created_at
		FROM comments
		WHERE post_id = ANY($1)
		ORDER BY created_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt); err != nil {
			return err
		}
		if post, exists := posts[c.PostID]; exists {
			post.Comments = append(post.Comments, c)
			post.CommentsCount = len(post.Comments)
		}
	}
	return rows.Err()
}

func (s *PostgresStorage) UpdatePostContent(ctx context.Context, id, content string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET content=$2, updated_at=now() WHERE id=$1`, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

func (s *PostgresStorage) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

// AddLike выполняет добавление в множество и инкремент счетчика одним
// атомарным UPDATE; счетчик меняется только вместе с множеством
func (s *PostgresStorage) AddLike(ctx context.Context, postID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET
			likes = CASE WHEN $2 = ANY(likes) THEN likes ELSE array_append(likes, $2) END,
			likes_count = CASE WHEN $2 = ANY(likes) THEN likes_count ELSE likes_count + 1 END,
			updated_at = now()
		WHERE id=$1`, postID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

func (s *PostgresStorage) RemoveLike(ctx context.Context, postID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET
			likes = array_remove(likes, $2),
			likes_count = CASE WHEN $2 = ANY(likes) THEN likes_count - 1 ELSE likes_count END,
			updated_at = now()
		WHERE id=$1`, postID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

func (s *PostgresStorage) AddComment(ctx context.Context, postID string, comment *models.Comment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE posts SET updated_at=now() WHERE id=$1`, postID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO comments (id, post_id, user_id, user_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		comment.ID, postID, comment.UserID, comment.UserName, comment.Text, comment.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStorage) RemoveComment(ctx context.Context, postID, commentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id=$1)`, postID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrPostNotFound
	}

	tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id=$2 AND post_id=$1`, postID, commentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCommentNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE posts SET updated_at=now() WHERE id=$1`, postID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Subscribe держит выделенное соединение под LISTEN и перечитывает коллекцию
// целиком после каждого уведомления
func (s *PostgresStorage) Subscribe(ctx context.Context) (<-chan []models.Post, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `LISTEN posts_changed`); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	ch := make(chan []models.Post, 1)
	go func() {
		defer close(ch)
		defer conn.Close(context.Background())

		posts, err := s.ListPosts(ctx)
		if err != nil {
			return
		}
		send(ch, posts)

		for {
			if _, err := conn.WaitForNotification(ctx); err != nil {
				return
			}
			posts, err := s.ListPosts(ctx)
			if err != nil {
				return
			}
			send(ch, posts)
		}
	}()

	return ch, nil
}

// send доставляет снимок, вытесняя непрочитанный предыдущий
func send(ch chan []models.Post, posts []models.Post) {
	select {
	case ch <- posts:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- posts:
		default:
		}
	}
}

func (s *PostgresStorage) CreateProfile(ctx context.Context, profile *models.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (uid, name, email, created_at)
		VALUES ($1, $2, $3, $4)`,
		profile.UID, profile.Name, profile.Email, profile.CreatedAt)
	return err
}

func (s *PostgresStorage) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT uid, name, email, created_at FROM profiles WHERE uid=$1`, uid).
		Scan(&p.UID, &p.Name, &p.Email, &p.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) GetProfiles(ctx context.Context, uids []string) (map[string]*models.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT uid, name, email, created_at FROM profiles WHERE uid = ANY($1)`, uids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*models.Profile, len(uids))
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UID, &p.Name, &p.Email, &p.CreatedAt); err != nil {
			return nil, err
		}
		result[p.UID] = &p
	}
	return result, rows.Err()
}

func (s *PostgresStorage) CreateAccount(ctx context.Context, account *models.Account) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE email=$1)`, account.Email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return storage.ErrEmailInUse
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (uid, email, password_hash, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.UID, account.Email, account.PasswordHash, account.DisplayName, account.CreatedAt)
	return err
}

func (s *PostgresStorage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx, `
		SELECT uid, email, password_hash, display_name, created_at
		FROM accounts WHERE email=$1`, email).
		Scan(&a.UID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStorage) UpdateAccountName(ctx context.Context, uid, name string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET display_name=$2 WHERE uid=$1`, uid, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

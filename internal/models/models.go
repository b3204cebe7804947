package models

import "time"

// Identity - ссылка на аутентифицированного пользователя
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
}

// Account - учетная запись в сервисе аутентификации
type Account struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile - профиль пользователя, создается один раз при регистрации
type Profile struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Post struct {
	ID            string    `json:"id"`
	UID           string    `json:"uid"`
	AuthorName    string    `json:"authorName"`
	Content       string    `json:"content"`
	Likes         []string  `json:"likes"`
	LikesCount    int       `json:"likesCount"`
	Comments      []Comment `json:"comments"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikedBy проверяет наличие пользователя в множестве лайков
func (p *Post) LikedBy(uid string) bool {
	for _, id := range p.Likes {
		if id == uid {
			return true
		}
	}
	return false
}

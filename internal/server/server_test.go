package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ButyrinIA/socialfeed/internal/config"
	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage/memory"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestServer() (*Server, *memory.MemoryStorage) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Server.Port = "8080"
	cfg.Auth.JWTSecret = "test-secret"

	store := memory.New()
	return New(cfg, store, log), store
}

func doJSON(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func signUp(t *testing.T, s *Server, name, email string) (uid, token string) {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/signup", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "secret1",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, "Ошибка при регистрации: %s", rec.Body.String())

	var resp tokenResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.UID)
	assert.NotEmpty(t, resp.Token)
	return resp.UID, resp.Token
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["error"]
}

func TestSignUpAndLogin(t *testing.T) {
	s, store := newTestServer()
	uid, _ := signUp(t, s, "Ada", "ada@x.com")

	// Регистрация записывает профиль и отображаемое имя
	profile, err := store.GetProfile(context.Background(), uid)
	assert.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)

	t.Run("повторный email", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/signup", "", map[string]string{
			"name": "Ada", "email": "ada@x.com", "password": "secret1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "This email is already in use", errorMessage(t, rec))
	})

	t.Run("вход", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "", map[string]string{
			"email": "ada@x.com", "password": "secret1",
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp tokenResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, uid, resp.UID)
	})

	t.Run("неверный пароль", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "", map[string]string{
			"email": "ada@x.com", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect password", errorMessage(t, rec))
	})

	t.Run("неизвестная учетная запись", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "", map[string]string{
			"email": "nobody@x.com", "password": "secret1",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "No account found with this email", errorMessage(t, rec))
	})
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer()

	rec := doJSON(t, s, http.MethodPost, "/posts", "", map[string]string{"content": "Содержимое"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "Без токена запись запрещена")

	rec = doJSON(t, s, http.MethodPost, "/posts", "garbage", map[string]string{"content": "Содержимое"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "Мусорный токен отклоняется")
}

func TestPostLifecycle(t *testing.T) {
	s, _ := newTestServer()
	_, token := signUp(t, s, "Ada", "ada@x.com")
	_, otherToken := signUp(t, s, "Боб", "bob@x.com")

	rec := doJSON(t, s, http.MethodPost, "/posts", token, map[string]string{"content": "Первый пост"})
	assert.Equal(t, http.StatusCreated, rec.Code, "Ошибка при создании поста: %s", rec.Body.String())

	var post models.Post
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "Ada", post.AuthorName)

	t.Run("список", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/posts", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var list []models.Post
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1)
		assert.Equal(t, post.ID, list[0].ID)
	})

	t.Run("границы содержимого", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/posts", token, map[string]string{"content": strings.Repeat("я", 501)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("правка чужого поста", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPatch, "/posts/"+post.ID, otherToken, map[string]string{"content": "Чужое"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = doJSON(t, s, http.MethodPatch, "/posts/"+post.ID, token, map[string]string{"content": "Новое"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	t.Run("удаление чужого поста", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete, "/posts/"+post.ID, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = doJSON(t, s, http.MethodDelete, "/posts/"+post.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/posts/"+post.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "Повторное удаление должно вернуть not-found")
}

func TestToggleLike(t *testing.T) {
	s, store := newTestServer()
	uid, token := signUp(t, s, "Ada", "ada@x.com")

	rec := doJSON(t, s, http.MethodPost, "/posts", token, map[string]string{"content": "Содержимое"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	var post models.Post
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))

	toggle := func() map[string]bool {
		rec := doJSON(t, s, http.MethodPost, "/posts/"+post.ID+"/like", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	assert.True(t, toggle()["liked"], "Первое переключение ставит лайк")
	stored, err := store.GetPost(context.Background(), post.ID)
	assert.NoError(t, err)
	assert.True(t, stored.LikedBy(uid))
	assert.Equal(t, 1, stored.LikesCount)

	assert.False(t, toggle()["liked"], "Второе переключение снимает лайк")
	stored, err = store.GetPost(context.Background(), post.ID)
	assert.NoError(t, err)
	assert.False(t, stored.LikedBy(uid))
	assert.Equal(t, 0, stored.LikesCount)

	t.Run("несуществующий пост", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/posts/missing/like", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestComments(t *testing.T) {
	s, _ := newTestServer()
	_, token := signUp(t, s, "Ada", "ada@x.com")
	_, otherToken := signUp(t, s, "Боб", "bob@x.com")

	rec := doJSON(t, s, http.MethodPost, "/posts", token, map[string]string{"content": "Содержимое"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	var post models.Post
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))

	rec = doJSON(t, s, http.MethodPost, "/posts/"+post.ID+"/comments", otherToken, map[string]string{"text": "Первый!"})
	assert.Equal(t, http.StatusCreated, rec.Code, "Ошибка при добавлении комментария: %s", rec.Body.String())

	var comment models.Comment
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comment))
	assert.Equal(t, "Боб", comment.UserName)

	t.Run("граница длины", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/posts/"+post.ID+"/comments", token,
			map[string]string{"text": strings.Repeat("я", 201)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	commentPath := fmt.Sprintf("/posts/%s/comments/%s", post.ID, comment.ID)

	t.Run("чужой комментарий", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete, commentPath, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = doJSON(t, s, http.MethodDelete, commentPath, otherToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, commentPath, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "Повторное удаление должно вернуть not-found")
}

func TestFeedStream(t *testing.T) {
	s, _ := newTestServer()
	_, token := signUp(t, s, "Ada", "ada@x.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, s.Start(ctx), "Ошибка при запуске проектора")

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err, "Ошибка при подключении к потоку")
	defer conn.Close()

	readSnapshot := func() streamMessage {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg streamMessage
		assert.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// Начальный снимок пустой ленты
	msg := readSnapshot()
	assert.Equal(t, "snapshot", msg.Type)

	rec := doJSON(t, s, http.MethodPost, "/posts", token, map[string]string{"content": "Содержимое"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Снимок после создания содержит пост целиком
	found := false
	for i := 0; i < 5 && !found; i++ {
		msg = readSnapshot()
		assert.Equal(t, "snapshot", msg.Type)
		posts, ok := msg.Posts.([]interface{})
		found = ok && len(posts) == 1
	}
	assert.True(t, found, "Ожидался снимок с созданным постом")
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/socialfeed/internal/auth"
	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/posts"
	"github.com/ButyrinIA/socialfeed/internal/session"
	"github.com/ButyrinIA/socialfeed/internal/storage"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// handleSignUp создает учетную запись, профиль и отображаемое имя.
// Профиль и имя - отдельные записи после создания учетной записи; их сбой
// оставляет запись без полного профиля (отката нет).
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, statusFor(err), session.ErrorMessage(err))
		return
	}

	profile := &models.Profile{
		UID:       identity.UID,
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateProfile(r.Context(), profile); err != nil {
		s.log.WithError(err).Warn("Учетная запись создана, но профиль не записан")
		writeError(w, http.StatusInternalServerError, session.ErrorMessage(err))
		return
	}
	if err := s.auth.UpdateDisplayName(r.Context(), identity.UID, req.Name); err != nil {
		s.log.WithError(err).Warn("Профиль записан, но отображаемое имя не обновлено")
		writeError(w, http.StatusInternalServerError, session.ErrorMessage(err))
		return
	}

	token, err := s.auth.Token(identity.UID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{UID: identity.UID, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, statusFor(err), session.ErrorMessage(err))
		return
	}

	token, err := s.auth.Token(identity.UID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{UID: identity.UID, Token: token})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListPosts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := s.posts.Create(r.Context(), identityFrom(r.Context()), req.Content)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	postsCreated.Inc()
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.posts.Update(r.Context(), identityFrom(r.Context()), r.PathValue("id"), req.Content); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Delete(r.Context(), identityFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleLike переключает членство зрителя в множестве лайков поста
func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	post, err := s.store.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	liked := post.LikedBy(identity.UID)
	if liked {
		err = s.store.RemoveLike(r.Context(), post.ID, identity.UID)
	} else {
		err = s.store.AddLike(r.Context(), post.ID, identity.UID)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	likesToggled.Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"liked": !liked})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := s.posts.AddComment(r.Context(), identityFrom(r.Context()), r.PathValue("id"), req.Text)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	commentsAdded.Inc()
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.posts.DeleteComment(r.Context(), identityFrom(r.Context()), r.PathValue("id"), r.PathValue("commentId"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, posts.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, posts.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrPostNotFound),
		errors.Is(err, storage.ErrCommentNotFound),
		errors.Is(err, storage.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrWrongPassword),
		errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrMissingPassword),
		errors.Is(err, posts.ErrEmptyContent),
		errors.Is(err, posts.ErrContentTooLong),
		errors.Is(err, posts.ErrEmptyComment),
		errors.Is(err, posts.ErrCommentTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

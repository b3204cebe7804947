package server

import (
	"context"
	"net/http"

	"github.com/ButyrinIA/socialfeed/internal/auth"
	"github.com/ButyrinIA/socialfeed/internal/config"
	"github.com/ButyrinIA/socialfeed/internal/feed"
	"github.com/ButyrinIA/socialfeed/internal/posts"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg       *config.Config
	store     storage.Storage
	auth      *auth.Service
	posts     *posts.Service
	projector *feed.Projector
	log       *logrus.Logger
	handler   http.Handler
	upgrader  websocket.Upgrader
}

func New(cfg *config.Config, store storage.Storage, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		auth:      auth.NewService(store, cfg.Auth.JWTSecret, log),
		posts:     posts.NewService(store, log),
		projector: feed.NewProjector(store, log),
		log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /signup", s.handleSignUp)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /posts", s.handleListPosts)
	mux.HandleFunc("POST /posts", s.requireAuth(s.handleCreatePost))
	mux.HandleFunc("PATCH /posts/{id}", s.requireAuth(s.handleUpdatePost))
	mux.HandleFunc("DELETE /posts/{id}", s.requireAuth(s.handleDeletePost))
	mux.HandleFunc("POST /posts/{id}/like", s.requireAuth(s.handleToggleLike))
	mux.HandleFunc("POST /posts/{id}/comments", s.requireAuth(s.handleAddComment))
	mux.HandleFunc("DELETE /posts/{id}/comments/{commentId}", s.requireAuth(s.handleDeleteComment))
	mux.HandleFunc("GET /ws", s.handleFeedStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.handler = mux

	return s
}

// Handler отдает корневой обработчик; используется в тестах
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start открывает подписку проектора ленты; вызывается до обслуживания запросов
func (s *Server) Start(ctx context.Context) error {
	return s.projector.Run(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: s.handler,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	s.log.WithField("port", s.cfg.Server.Port).Info("Запуск сервера")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

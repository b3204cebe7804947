package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/socialfeed/internal/auth"
	"github.com/ButyrinIA/socialfeed/internal/config"
	"github.com/ButyrinIA/socialfeed/internal/feed"
	"github.com/ButyrinIA/socialfeed/internal/likes"
	"github.com/ButyrinIA/socialfeed/internal/posts"
	"github.com/ButyrinIA/socialfeed/internal/session"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/ButyrinIA/socialfeed/internal/storage/memory"
	"github.com/ButyrinIA/socialfeed/internal/storage/postgres"
	"github.com/sirupsen/logrus"
)

// Демонстрационный клиент: вход через держатель сессии, живая лента через
// проектор, оптимистичный лайк через применитель.
func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "memory", "тип хранилища: memory или postgres")
	name := flag.String("name", "Ada", "отображаемое имя")
	email := flag.String("email", "ada@x.com", "email учетной записи")
	password := flag.String("password", "secret1", "пароль учетной записи")
	content := flag.String("post", "Привет из демонстрационного клиента", "содержимое поста")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	var store storage.Storage
	switch *storageType {
	case "postgres":
		store, err = postgres.New(cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("Не удалось инициализировать PostgreSQL: %v", err)
		}
	case "memory":
		store = memory.New()
	default:
		log.Fatalf("Неизвестный тип хранилища: %s", *storageType)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authService := auth.NewService(store, cfg.Auth.JWTSecret, log)
	holder := session.NewHolder(authService, store, log)
	defer holder.Close()

	states := holder.Watch(ctx)

	if err := holder.SignUp(ctx, *name, *email, *password); err != nil {
		if !errors.Is(err, auth.ErrEmailInUse) {
			log.Fatalf("Не удалось зарегистрироваться: %v", err)
		}
		if err := holder.SignIn(ctx, *email, *password); err != nil {
			log.Fatalf("Не удалось войти: %v", err)
		}
	}

	// Идентичность приходит только через поток состояния
	for holder.Current().User == nil {
		select {
		case <-states:
		case <-ctx.Done():
			return
		}
	}
	viewer := holder.Current().User
	log.WithFields(logrus.Fields{"uid": viewer.UID, "name": viewer.DisplayName}).Info("Вход выполнен")

	projector := feed.NewProjector(store, log)
	if err := projector.Run(ctx); err != nil {
		log.Fatalf("Не удалось открыть подписку на ленту: %v", err)
	}
	snaps := projector.Watch(ctx)
	applier := likes.NewApplier(store, holder, log)

	postService := posts.NewService(store, log)
	post, err := postService.Create(ctx, viewer, *content)
	if err != nil {
		log.Fatalf("Не удалось создать пост: %v", err)
	}
	if err := applier.Toggle(ctx, post.ID); err != nil {
		log.WithError(err).Warn("Не удалось переключить лайк")
	}

	for snapshot := range snaps {
		if snapshot.Err != nil {
			log.WithError(snapshot.Err).Error("Лента в состоянии ошибки")
			return
		}
		applier.Reconcile(snapshot.Posts)
		for _, p := range snapshot.Posts {
			state, _ := applier.View(p.ID, viewer.UID)
			log.WithFields(logrus.Fields{
				"post":     p.ID,
				"author":   p.AuthorName,
				"likes":    state.Count,
				"liked":    state.Liked,
				"comments": p.CommentsCount,
			}).Info(p.Content)
		}
	}
}

package likes

import (
	"context"
	"errors"
	"sync"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/session"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrAuthRequired - попытка лайка без входа; запись не выполняется
var ErrAuthRequired = errors.New("authentication required")

// State - локальное отображаемое состояние пары (пост, зритель)
type State struct {
	Liked bool
	Count int
}

// Applier выполняет оптимистичный переключатель лайка: локальное состояние
// меняется до подтверждения записи и откатывается при ее сбое. Повторный
// вызов, пока запись в полете, молча отбрасывается.
type Applier struct {
	store   storage.Storage
	session *session.Holder
	log     *logrus.Logger

	mu       sync.Mutex
	inflight map[string]bool
	local    map[string]State
}

func NewApplier(store storage.Storage, holder *session.Holder, log *logrus.Logger) *Applier {
	return &Applier{
		store:    store,
		session:  holder,
		log:      log,
		inflight: make(map[string]bool),
		local:    make(map[string]State),
	}
}

// Toggle переключает лайк текущего зрителя на посте
func (a *Applier) Toggle(ctx context.Context, postID string) error {
	viewer := a.session.Current().User
	if viewer == nil {
		return ErrAuthRequired
	}
	key := stateKey(postID, viewer.UID)

	a.mu.Lock()
	if a.inflight[key] {
		a.mu.Unlock()
		return nil
	}
	a.inflight[key] = true

	// Предварительное применение: флаг и счетчик меняются до записи
	prev := a.local[key]
	next := State{Liked: !prev.Liked}
	if next.Liked {
		next.Count = prev.Count + 1
	} else {
		next.Count = prev.Count - 1
	}
	a.local[key] = next
	a.mu.Unlock()

	var err error
	if next.Liked {
		err = a.store.AddLike(ctx, postID, viewer.UID)
	} else {
		err = a.store.RemoveLike(ctx, postID, viewer.UID)
	}

	a.mu.Lock()
	delete(a.inflight, key)
	if err != nil {
		// Откат к состоянию до переключения
		a.local[key] = prev
	}
	a.mu.Unlock()

	if err != nil {
		a.log.WithError(err).WithField("post", postID).Warn("Не удалось обновить лайк")
		return err
	}
	return nil
}

// View возвращает локальное состояние пары (пост, зритель)
func (a *Applier) View(postID, uid string) (State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, exists := a.local[stateKey(postID, uid)]
	return state, exists
}

// Reconcile вносит авторитетный снимок для пар без записи в полете.
// Счетчик берется из размера множества, а не из отдельного счетчика.
func (a *Applier) Reconcile(posts []models.Post) {
	viewer := a.session.Current().User
	if viewer == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range posts {
		key := stateKey(posts[i].ID, viewer.UID)
		if a.inflight[key] {
			continue
		}
		a.local[key] = State{
			Liked: posts[i].LikedBy(viewer.UID),
			Count: len(posts[i].Likes),
		}
	}
}

func stateKey(postID, uid string) string {
	return postID + "|" + uid
}

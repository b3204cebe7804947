package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ButyrinIA/socialfeed/internal/auth"
	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/sirupsen/logrus"
)

// Session - текущее состояние аутентификации клиента
type Session struct {
	User    *models.Identity
	Loading bool
	Err     string
}

// Holder хранит состояние сессии процесса. Запросы SignUp/SignIn/SignOut только
// инициируют переход; авторитетное обновление идентичности приходит через
// внутренний поток состояния, как у внешнего сервиса аутентификации.
type Holder struct {
	auth  *auth.Service
	store storage.Storage
	log   *logrus.Logger

	mu      sync.RWMutex
	user    *models.Identity
	loading bool
	errMsg  string

	stateCh  chan *models.Identity
	watchers map[int]chan Session
	nextID   int
	done     chan struct{}
	closed   sync.Once
}

func NewHolder(authService *auth.Service, store storage.Storage, log *logrus.Logger) *Holder {
	h := &Holder{
		auth:     authService,
		store:    store,
		log:      log,
		loading:  true,
		stateCh:  make(chan *models.Identity, 1),
		watchers: make(map[int]chan Session),
		done:     make(chan struct{}),
	}
	// Первая эмиссия потока определяет начальное состояние: аноним
	h.stateCh <- nil
	go h.run()
	return h
}

// run - единственная точка, где меняется идентичность
func (h *Holder) run() {
	for {
		select {
		case id := <-h.stateCh:
			h.mu.Lock()
			h.user = id
			h.loading = false
			h.mu.Unlock()
			h.notify()
		case <-h.done:
			return
		}
	}
}

// SignUp регистрирует учетную запись, записывает профиль и задает отображаемое имя.
// Профиль и имя пишутся отдельными вызовами после создания учетной записи; при
// их сбое учетная запись уже существует и остается без отката.
func (h *Holder) SignUp(ctx context.Context, name, email, password string) error {
	h.begin()

	id, err := h.auth.Register(ctx, email, password)
	if err != nil {
		h.fail(err)
		return err
	}
	id.DisplayName = name
	h.emit(id)

	profile := &models.Profile{
		UID:       id.UID,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateProfile(ctx, profile); err != nil {
		h.log.WithError(err).Warn("Учетная запись создана, но профиль не записан")
		h.fail(err)
		return err
	}
	if err := h.auth.UpdateDisplayName(ctx, id.UID, name); err != nil {
		h.log.WithError(err).Warn("Профиль записан, но отображаемое имя не обновлено")
		h.fail(err)
		return err
	}
	return nil
}

func (h *Holder) SignIn(ctx context.Context, email, password string) error {
	h.begin()

	id, err := h.auth.Authenticate(ctx, email, password)
	if err != nil {
		h.fail(err)
		return err
	}
	h.emit(id)
	return nil
}

func (h *Holder) SignOut(ctx context.Context) error {
	h.begin()
	h.emit(nil)
	return nil
}

// Current возвращает снимок состояния сессии
func (h *Holder) Current() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Session{User: h.user, Loading: h.loading, Err: h.errMsg}
}

// Watch отдает поток изменений состояния; медленный потребитель видит
// только последнее состояние
func (h *Holder) Watch(ctx context.Context) <-chan Session {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan Session, 1)
	h.watchers[id] = ch
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		if ch, exists := h.watchers[id]; exists {
			close(ch)
			delete(h.watchers, id)
		}
		h.mu.Unlock()
	}()

	return ch
}

func (h *Holder) Close() {
	h.closed.Do(func() {
		close(h.done)
		h.mu.Lock()
		for id, ch := range h.watchers {
			close(ch)
			delete(h.watchers, id)
		}
		h.mu.Unlock()
	})
}

func (h *Holder) begin() {
	h.mu.Lock()
	h.loading = true
	h.errMsg = ""
	h.mu.Unlock()
	h.notify()
}

func (h *Holder) fail(err error) {
	h.mu.Lock()
	h.loading = false
	h.errMsg = ErrorMessage(err)
	h.mu.Unlock()
	h.notify()
}

func (h *Holder) emit(id *models.Identity) {
	select {
	case h.stateCh <- id:
	case <-h.done:
	}
}

func (h *Holder) notify() {
	state := h.Current()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.watchers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}

// ErrorMessage переводит коды сервиса аутентификации в фиксированные
// пользовательские сообщения
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return "No account found with this email"
	case errors.Is(err, auth.ErrWrongPassword):
		return "Incorrect password"
	case errors.Is(err, auth.ErrEmailInUse):
		return "This email is already in use"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "Invalid credentials provided"
	case errors.Is(err, auth.ErrInvalidEmail):
		return "Invalid email address"
	case errors.Is(err, auth.ErrMissingPassword):
		return "Password is required"
	default:
		return "An error occurred"
	}
}

package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/sirupsen/logrus"
)

// ErrSubscriptionClosed сигнализирует обрыв подписки не по инициативе клиента
var ErrSubscriptionClosed = errors.New("feed subscription closed")

// Snapshot - полный список постов либо состояние ошибки, никогда не частичный патч
type Snapshot struct {
	Posts []models.Post
	Err   error
}

// Projector подписывается на коллекцию постов и публикует каждый снимок
// целиком, заменяя предыдущий список
type Projector struct {
	store  storage.Storage
	loader *dataloader.Loader[string, *models.Profile]
	log    *logrus.Logger

	mu     sync.RWMutex
	subs   map[int]chan Snapshot
	nextID int
	last   *Snapshot
}

func NewProjector(store storage.Storage, log *logrus.Logger) *Projector {
	return &Projector{
		store:  store,
		loader: newProfileLoader(store),
		log:    log,
		subs:   make(map[int]chan Snapshot),
	}
}

// newProfileLoader группирует загрузку профилей авторов в один запрос на снимок
func newProfileLoader(store storage.Storage) *dataloader.Loader[string, *models.Profile] {
	return dataloader.NewBatchedLoader(
		func(ctx context.Context, uids []string) []*dataloader.Result[*models.Profile] {
			results := make([]*dataloader.Result[*models.Profile], len(uids))
			profiles, err := store.GetProfiles(ctx, uids)
			for i, uid := range uids {
				if err != nil {
					results[i] = &dataloader.Result[*models.Profile]{Error: err}
					continue
				}
				results[i] = &dataloader.Result[*models.Profile]{Data: profiles[uid]}
			}
			return results
		},
	)
}

// Run открывает подписку и транслирует снимки до отмены контекста.
// Обрыв подписки публикуется как состояние ошибки.
func (p *Projector) Run(ctx context.Context) error {
	snaps, err := p.store.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case posts, ok := <-snaps:
				if !ok {
					if ctx.Err() == nil {
						p.log.Warn("Подписка на ленту оборвалась")
						p.publish(Snapshot{Err: ErrSubscriptionClosed})
					}
					return
				}
				if ctx.Err() != nil {
					return
				}
				p.decorate(ctx, posts)
				p.publish(Snapshot{Posts: posts})
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// decorate освежает отображаемые имена авторов из профилей; денормализованное
// имя в документе поста может устареть
func (p *Projector) decorate(ctx context.Context, posts []models.Post) {
	if len(posts) == 0 {
		return
	}

	seen := make(map[string]bool, len(posts))
	uids := make([]string, 0, len(posts))
	for i := range posts {
		if !seen[posts[i].UID] {
			seen[posts[i].UID] = true
			uids = append(uids, posts[i].UID)
		}
	}

	profiles, errs := p.loader.LoadMany(ctx, uids)()
	for _, err := range errs {
		if err != nil {
			p.log.WithError(err).Warn("Не удалось загрузить профили авторов")
			return
		}
	}

	byUID := make(map[string]*models.Profile, len(profiles))
	for i, uid := range uids {
		if profiles[i] != nil {
			byUID[uid] = profiles[i]
		}
	}
	for i := range posts {
		if profile, exists := byUID[posts[i].UID]; exists && profile.Name != "" {
			posts[i].AuthorName = profile.Name
		}
	}
}

// Watch отдает поток снимков; медленный потребитель видит только последний.
// Новый наблюдатель сразу получает текущее состояние ленты, не дожидаясь
// следующей мутации.
func (p *Projector) Watch(ctx context.Context) <-chan Snapshot {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	ch := make(chan Snapshot, 1)
	p.subs[id] = ch
	if p.last != nil {
		ch <- *p.last
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		if ch, exists := p.subs[id]; exists {
			close(ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	}()

	return ch
}

func (p *Projector) publish(snapshot Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &snapshot
	for _, ch := range p.subs {
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

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"account-service/pkg/queue"
	"account-service/services/account/internal/entity"
	"account-service/services/account/internal/repo/persistent"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*entity.User
	failErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entity.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return persistent.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, persistent.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetPublicByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Password = ""
	return u, nil
}

func (r *fakeUserRepo) FindByIdentifier(_ context.Context, username, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, persistent.ErrNotFound
}

func (r *fakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) EmailTakenByOther(_ context.Context, email, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && u.ID != userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) UpdateFields(_ context.Context, id string, update entity.UserUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return persistent.ErrNotFound
	}
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Password != nil {
		u.Password = *update.Password
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	if update.CoverImageURL != nil {
		u.CoverImageURL = *update.CoverImageURL
	}
	return nil
}

// fakeSessionRepo mirrors the conditional update of the gorm store.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
	writes   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]entity.Session)}
}

func (r *fakeSessionRepo) Replace(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := *session
	next.Generation = r.sessions[session.UserID].Generation + 1
	r.sessions[session.UserID] = next
	r.writes++
	return nil
}

func (r *fakeSessionRepo) Get(_ context.Context, userID string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, persistent.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSessionRepo) CompareAndSwap(_ context.Context, expectedHash string, next *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[next.UserID]
	if !ok || current.RefreshTokenHash != expectedHash {
		return persistent.ErrStaleSession
	}
	updated := *next
	updated.Generation = current.Generation + 1
	r.sessions[next.UserID] = updated
	r.writes++
	return nil
}

func (r *fakeSessionRepo) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	r.writes++
	return nil
}

func (r *fakeSessionRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeMedia struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	failPaths map[string]bool
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{failPaths: make(map[string]bool)}
}

func (m *fakeMedia) UploadLocalFile(_ context.Context, localPath, key, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPaths[localPath] {
		return "", errors.New("bucket unavailable")
	}
	url := fmt.Sprintf("http://media.test/bucket/%s", key)
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *fakeMedia) DeleteByURL(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	return nil
}

func (m *fakeMedia) deletedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.AccountEvent
}

func (p *fakePublisher) PublishAccountEvent(_ context.Context, event queue.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

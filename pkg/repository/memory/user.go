package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[types.UserID]*model.User
}

func newUserRepository() *userRepository {
	return &userRepository{
		users: make(map[types.UserID]*model.User),
	}
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}

	copied := *user
	return &copied, nil
}

func (r *userRepository) GetByExtensionTokenHash(ctx context.Context, hash string) (*model.User, error) {
	if hash == "" {
		return nil, goerr.Wrap(ErrNotFound, "user not found")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.ExtensionTokenHash == hash {
			copied := *user
			return &copied, nil
		}
	}

	return nil, goerr.Wrap(ErrNotFound, "user not found")
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *userRepository) Update(ctx context.Context, id types.UserID, update *model.UserUpdate) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}

	update.Apply(user)
	return nil
}

func (r *userRepository) ListPollable(ctx context.Context, polledBefore time.Time, maxErrorCount, limit int) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.User
	for _, user := range r.users {
		if len(result) >= limit {
			break
		}
		if !user.SharingEnabled {
			continue
		}
		if user.PollErrorCount >= maxErrorCount {
			continue
		}
		if !user.LastPolledAt.IsZero() && !user.LastPolledAt.Before(polledBefore) {
			continue
		}

		copied := *user
		result = append(result, &copied)
	}

	return result, nil
}

func (r *userRepository) DeleteByWorkspace(ctx context.Context, id types.WorkspaceID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, user := range r.users {
		if user.WorkspaceID == id {
			delete(r.users, userID)
		}
	}
	return nil
}

package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/model/auth"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	User() UserRepository
	Workspace() WorkspaceRepository

	// Session methods
	PutToken(ctx context.Context, token *auth.Token) error
	GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error)
	DeleteToken(ctx context.Context, tokenID auth.TokenID) error

	// DeleteTokensByWorkspace removes all sessions of an uninstalled
	// workspace so they die with the user rows
	DeleteTokensByWorkspace(ctx context.Context, id types.WorkspaceID) error

	Close() error
}

// UserRepository persists per-user state. Update applies only the named
// fields so the poller and the extension endpoint never clobber each
// other's unrelated writes.
type UserRepository interface {
	Get(ctx context.Context, id types.UserID) (*model.User, error)
	GetByExtensionTokenHash(ctx context.Context, hash string) (*model.User, error)
	Put(ctx context.Context, user *model.User) error
	Update(ctx context.Context, id types.UserID, update *model.UserUpdate) error

	// ListPollable returns up to limit users eligible for a poll tick:
	// sharing enabled, error count below maxErrorCount, and last polled
	// before the cutoff (or never).
	ListPollable(ctx context.Context, polledBefore time.Time, maxErrorCount, limit int) ([]*model.User, error)

	// DeleteByWorkspace removes all users of an uninstalled workspace
	DeleteByWorkspace(ctx context.Context, id types.WorkspaceID) error
}

// WorkspaceRepository persists per-installation state
type WorkspaceRepository interface {
	Get(ctx context.Context, id types.WorkspaceID) (*model.Workspace, error)
	Put(ctx context.Context, workspace *model.Workspace) error
	Delete(ctx context.Context, id types.WorkspaceID) error
}

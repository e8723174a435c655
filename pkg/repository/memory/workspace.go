package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

type workspaceRepository struct {
	mu         sync.RWMutex
	workspaces map[types.WorkspaceID]*model.Workspace
}

func newWorkspaceRepository() *workspaceRepository {
	return &workspaceRepository{
		workspaces: make(map[types.WorkspaceID]*model.Workspace),
	}
}

func (r *workspaceRepository) Get(ctx context.Context, id types.WorkspaceID) (*model.Workspace, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid workspace ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
	}

	copied := *ws
	return &copied, nil
}

func (r *workspaceRepository) Put(ctx context.Context, workspace *model.Workspace) error {
	if err := workspace.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *workspace
	r.workspaces[workspace.ID] = &copied
	return nil
}

func (r *workspaceRepository) Delete(ctx context.Context, id types.WorkspaceID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workspaces[id]; !ok {
		return goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
	}

	delete(r.workspaces, id)
	return nil
}

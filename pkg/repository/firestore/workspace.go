package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type workspaceRepository struct {
	client *firestore.Client
}

func newWorkspaceRepository(client *firestore.Client) *workspaceRepository {
	return &workspaceRepository{client: client}
}

func (r *workspaceRepository) Get(ctx context.Context, id types.WorkspaceID) (*model.Workspace, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid workspace ID")
	}

	doc, err := r.client.Collection(workspacesCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get workspace", goerr.V("id", id))
	}

	var ws model.Workspace
	if err := doc.DataTo(&ws); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal workspace", goerr.V("id", id))
	}

	return &ws, nil
}

func (r *workspaceRepository) Put(ctx context.Context, workspace *model.Workspace) error {
	if err := workspace.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace")
	}

	docRef := r.client.Collection(workspacesCollection).Doc(workspace.ID.String())
	if _, err := docRef.Set(ctx, workspace); err != nil {
		return goerr.Wrap(err, "failed to put workspace", goerr.V("id", workspace.ID))
	}

	return nil
}

func (r *workspaceRepository) Delete(ctx context.Context, id types.WorkspaceID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace ID")
	}

	docRef := r.client.Collection(workspacesCollection).Doc(id.String())

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get workspace", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete workspace", goerr.V("id", id))
	}

	return nil
}

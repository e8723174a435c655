package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = goerr.New("not found")

const (
	usersCollection      = "users"
	workspacesCollection = "workspaces"
	tokensCollection     = "tokens"
)

// Firestore is the production repository backend
type Firestore struct {
	client     *firestore.Client
	users      *userRepository
	workspaces *workspaceRepository
}

var _ interfaces.Repository = &Firestore{}

func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	return &Firestore{
		client:     client,
		users:      newUserRepository(client),
		workspaces: newWorkspaceRepository(client),
	}, nil
}

func (r *Firestore) User() interfaces.UserRepository {
	return r.users
}

func (r *Firestore) Workspace() interfaces.WorkspaceRepository {
	return r.workspaces
}

func (r *Firestore) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

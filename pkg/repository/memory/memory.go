package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = goerr.New("not found")

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-memory repository backend used for development and tests
type Memory struct {
	users      *userRepository
	workspaces *workspaceRepository
	tokens     *tokenStore
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		users:      newUserRepository(),
		workspaces: newWorkspaceRepository(),
		tokens:     newTokenStore(),
	}
}

func (m *Memory) User() interfaces.UserRepository {
	return m.users
}

func (m *Memory) Workspace() interfaces.WorkspaceRepository {
	return m.workspaces
}

func (m *Memory) Close() error {
	return nil
}

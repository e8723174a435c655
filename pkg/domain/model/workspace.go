package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

// Workspace holds the per-installation state: the encrypted bot token used
// for Slack API calls that are not scoped to a single user (App Home
// publishing, token modals).
type Workspace struct {
	ID             types.WorkspaceID `firestore:"id" json:"id"`
	Name           string            `firestore:"name" json:"name"`
	BotAccessToken string            `firestore:"bot_access_token" json:"-"`
	BotUserID      string            `firestore:"bot_user_id" json:"bot_user_id"`
	InstalledAt    time.Time         `firestore:"installed_at" json:"installed_at"`
}

func (x *Workspace) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace")
	}
	if x.BotAccessToken == "" {
		return goerr.New("workspace must have a bot access token", goerr.V("id", x.ID))
	}
	return nil
}

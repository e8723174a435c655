package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/repository/firestore"
	"github.com/secmon-lab/vibes/pkg/repository/memory"
	slacksvc "github.com/secmon-lab/vibes/pkg/service/slack"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
	"github.com/slack-go/slack"
)

const commandHelp = "Usage: `/vibes connect|pause|resume|status|disconnect|token`"

func isNotFound(err error) bool {
	return errors.Is(err, firestore.ErrNotFound) || errors.Is(err, memory.ErrNotFound)
}

// HandleAppHomeOpened republishes the App Home tab for the user
func (uc *UseCases) HandleAppHomeOpened(ctx context.Context, workspaceID types.WorkspaceID, userID types.UserID) error {
	ws, err := uc.repo.Workspace().Get(ctx, workspaceID)
	if err != nil {
		return goerr.Wrap(err, "failed to look up workspace", goerr.V("workspace", workspaceID))
	}

	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		if !isNotFound(err) {
			return goerr.Wrap(err, "failed to look up user", goerr.V("user", userID))
		}
		// Workspace members who never installed get the default view
		user = &model.User{ID: userID, WorkspaceID: workspaceID}
	}

	connectURL := ""
	if user.SlackAccessToken != "" && !user.SpotifyConnected() {
		connectURL, err = uc.SpotifyConnectURL(ctx, userID)
		if err != nil {
			logging.From(ctx).Warn("failed to build connect URL", "error", err.Error())
			connectURL = ""
		}
	}

	return uc.slack.PublishAppHome(ctx, ws, user, connectURL)
}

// HandleSlashCommand dispatches a /vibes subcommand and returns the
// ephemeral response text
func (uc *UseCases) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) (string, error) {
	userID := types.UserID(cmd.UserID)
	sub := strings.ToLower(strings.TrimSpace(cmd.Text))

	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil && !isNotFound(err) {
		return "", goerr.Wrap(err, "failed to look up user", goerr.V("user", userID))
	}
	if user == nil {
		if sub == "" || sub == "help" {
			return commandHelp, nil
		}
		return fmt.Sprintf("Vibes is not set up for you yet. Install it first: %s/auth/slack", uc.baseURL), nil
	}

	switch sub {
	case "connect":
		url, err := uc.SpotifyConnectURL(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Connect your Spotify account: %s", url), nil

	case "pause":
		if err := uc.SetSharing(ctx, userID, false); err != nil {
			return "", err
		}
		return "Sharing paused. Your status will not be touched.", nil

	case "resume":
		if err := uc.SetSharing(ctx, userID, true); err != nil {
			return "", err
		}
		return "Sharing resumed. :headphones:", nil

	case "status":
		return describeStatus(user), nil

	case "disconnect":
		if err := uc.DisconnectSpotify(ctx, userID); err != nil {
			return "", err
		}
		return "Spotify disconnected and sharing stopped.", nil

	case "token":
		token, err := uc.IssueExtensionToken(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Your extension token: `%s`\nIt is shown only once; requesting a new one revokes it.", token), nil

	default:
		return commandHelp, nil
	}
}

func describeStatus(user *model.User) string {
	switch {
	case !user.SpotifyConnected() && user.ExtensionTokenHash == "":
		return "Nothing connected yet. Try `/vibes connect`."
	case !user.SharingEnabled:
		return "Sharing is paused. `/vibes resume` to turn it back on."
	case user.IsCurrentlyPlaying && user.LastTrackName != "":
		return fmt.Sprintf(":headphones: Now playing: *%s* by %s", user.LastTrackName, user.LastArtistName)
	default:
		return "Sharing is on, nothing playing right now."
	}
}

// HandleInteraction processes App Home button clicks
func (uc *UseCases) HandleInteraction(ctx context.Context, callback *slack.InteractionCallback) error {
	workspaceID := types.WorkspaceID(callback.Team.ID)
	userID := types.UserID(callback.User.ID)

	for _, action := range callback.ActionCallback.BlockActions {
		switch action.ActionID {
		case slacksvc.ActionPauseSharing:
			if err := uc.SetSharing(ctx, userID, false); err != nil {
				return err
			}

		case slacksvc.ActionResumeSharing:
			if err := uc.SetSharing(ctx, userID, true); err != nil {
				return err
			}

		case slacksvc.ActionGetExtensionToken:
			token, err := uc.IssueExtensionToken(ctx, userID)
			if err != nil {
				return err
			}

			ws, err := uc.repo.Workspace().Get(ctx, workspaceID)
			if err != nil {
				return goerr.Wrap(err, "failed to look up workspace", goerr.V("workspace", workspaceID))
			}
			if err := uc.slack.OpenTokenModal(ctx, ws, callback.TriggerID, token); err != nil {
				return err
			}
			continue

		default:
			logging.From(ctx).Warn("unknown interaction action", "actionID", action.ActionID)
			continue
		}

		// Sharing toggles refresh the App Home so the buttons flip
		if err := uc.HandleAppHomeOpened(ctx, workspaceID, userID); err != nil {
			logging.From(ctx).Warn("failed to refresh app home", "error", err.Error())
		}
	}

	return nil
}

package usecase

import (
	"context"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/model/auth"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
	"github.com/slack-go/slack"
)

const (
	// slackBotScopes are granted to the workspace bot
	slackBotScopes = "commands,users:read"

	// slackUserScopes let the relay write the installing user's status
	slackUserScopes = "users.profile:write,users.profile:read"
)

// SlackAuthorizeURL builds the OAuth v2 install URL with a CSRF state
func (uc *UseCases) SlackAuthorizeURL() (string, error) {
	state, err := uc.crypto.CreateSignedState("install", crypto.DefaultStateTTL)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create install state")
	}

	params := url.Values{}
	params.Set("client_id", uc.slackApp.ClientID)
	params.Set("scope", slackBotScopes)
	params.Set("user_scope", slackUserScopes)
	params.Set("redirect_uri", uc.slackApp.RedirectURL)
	params.Set("state", state)

	return "https://slack.com/oauth/v2/authorize?" + params.Encode(), nil
}

// VerifyInstallState checks the CSRF state from the install redirect
func (uc *UseCases) VerifyInstallState(state string) bool {
	payload, ok := uc.crypto.VerifySignedState(state)
	return ok && payload == "install"
}

// HandleSlackCallback exchanges the install code, persists the workspace and
// the installing user with encrypted tokens, and opens a dashboard session.
func (uc *UseCases) HandleSlackCallback(ctx context.Context, code string) (*auth.Token, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, uc.httpClient,
		uc.slackApp.ClientID, uc.slackApp.ClientSecret, code, uc.slackApp.RedirectURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange install code")
	}

	if resp.Team.ID == "" || resp.AuthedUser.ID == "" {
		return nil, goerr.New("install response missing team or user")
	}
	if resp.AuthedUser.AccessToken == "" {
		return nil, goerr.New("install response missing user token; user scopes not granted")
	}

	workspaceID := types.WorkspaceID(resp.Team.ID)
	userID := types.UserID(resp.AuthedUser.ID)

	encBotToken, err := uc.crypto.Encrypt(resp.AccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encrypt bot token")
	}
	encUserToken, err := uc.crypto.Encrypt(resp.AuthedUser.AccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encrypt user token")
	}

	ws := &model.Workspace{
		ID:             workspaceID,
		Name:           resp.Team.Name,
		BotAccessToken: encBotToken,
		BotUserID:      resp.BotUserID,
		InstalledAt:    time.Now(),
	}
	if err := uc.repo.Workspace().Put(ctx, ws); err != nil {
		return nil, goerr.Wrap(err, "failed to store workspace", goerr.V("workspace", workspaceID))
	}

	if err := uc.upsertInstallingUser(ctx, userID, workspaceID, encUserToken); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("slack app installed",
		"workspace", workspaceID, "user", userID)

	return uc.CreateSession(ctx, userID, workspaceID)
}

// upsertInstallingUser refreshes the stored user token on reinstall without
// disturbing the Spotify grant or the playback snapshot
func (uc *UseCases) upsertInstallingUser(ctx context.Context, userID types.UserID, workspaceID types.WorkspaceID, encUserToken string) error {
	_, err := uc.repo.User().Get(ctx, userID)
	switch {
	case err == nil:
		return uc.repo.User().Update(ctx, userID, &model.UserUpdate{
			SlackAccessToken: &encUserToken,
		})

	case isNotFound(err):
		user := &model.User{
			ID:               userID,
			WorkspaceID:      workspaceID,
			SlackAccessToken: encUserToken,
			InstalledAt:      time.Now(),
		}
		if err := uc.repo.User().Put(ctx, user); err != nil {
			return goerr.Wrap(err, "failed to store user", goerr.V("user", userID))
		}
		return nil

	default:
		return goerr.Wrap(err, "failed to look up user", goerr.V("user", userID))
	}
}

// UninstallWorkspace cascades the removal of a workspace, all its users and
// their dashboard sessions
func (uc *UseCases) UninstallWorkspace(ctx context.Context, workspaceID types.WorkspaceID) error {
	if err := uc.repo.DeleteTokensByWorkspace(ctx, workspaceID); err != nil {
		return goerr.Wrap(err, "failed to delete workspace sessions", goerr.V("workspace", workspaceID))
	}
	if err := uc.repo.User().DeleteByWorkspace(ctx, workspaceID); err != nil {
		return goerr.Wrap(err, "failed to delete workspace users", goerr.V("workspace", workspaceID))
	}
	if err := uc.repo.Workspace().Delete(ctx, workspaceID); err != nil {
		return goerr.Wrap(err, "failed to delete workspace", goerr.V("workspace", workspaceID))
	}

	logging.From(ctx).Info("workspace uninstalled", "workspace", workspaceID)
	return nil
}

package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/secmon-lab/vibes/pkg/utils/errutil"
)

// GetUser returns the stored user record
func (uc *UseCases) GetUser(ctx context.Context, userID types.UserID) (*model.User, error) {
	return uc.repo.User().Get(ctx, userID)
}

// SetSharing toggles status sharing. Turning sharing off also clears any
// status the relay wrote, so nothing lingers.
func (uc *UseCases) SetSharing(ctx context.Context, userID types.UserID, enabled bool) error {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to look up user", goerr.V("user", userID))
	}

	update := &model.UserUpdate{SharingEnabled: &enabled}
	if !enabled {
		update.IsCurrentlyPlaying = new(bool)
		update.LastTrackID = new(string)
		update.LastTrackName = new(string)
		update.LastArtistName = new(string)
		update.LastSource = new(types.TrackSource)
	}

	if err := uc.repo.User().Update(ctx, userID, update); err != nil {
		return goerr.Wrap(err, "failed to update sharing", goerr.V("user", userID))
	}

	if !enabled && uc.slack != nil {
		if err := uc.slack.ClearUserStatus(ctx, user); err != nil {
			errutil.Handle(ctx, err, "failed to clear status on pause")
		}
	}

	return nil
}

// DisconnectSpotify drops the stored grant, disables sharing and clears any
// lingering status
func (uc *UseCases) DisconnectSpotify(ctx context.Context, userID types.UserID) error {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to look up user", goerr.V("user", userID))
	}

	update := &model.UserUpdate{
		SpotifyAccessToken:  new(string),
		SpotifyRefreshToken: new(string),
		SharingEnabled:      new(bool),
		IsCurrentlyPlaying:  new(bool),
		LastTrackID:         new(string),
		LastTrackName:       new(string),
		LastArtistName:      new(string),
		LastSource:          new(types.TrackSource),
	}
	if err := uc.repo.User().Update(ctx, userID, update); err != nil {
		return goerr.Wrap(err, "failed to disconnect spotify", goerr.V("user", userID))
	}

	if uc.slack != nil {
		if err := uc.slack.ClearUserStatus(ctx, user); err != nil {
			errutil.Handle(ctx, err, "failed to clear status on disconnect")
		}
	}

	return nil
}

// IssueExtensionToken mints a new extension bearer token. Only its hash is
// stored; the previous token stops working immediately.
func (uc *UseCases) IssueExtensionToken(ctx context.Context, userID types.UserID) (string, error) {
	if _, err := uc.repo.User().Get(ctx, userID); err != nil {
		return "", goerr.Wrap(err, "failed to look up user", goerr.V("user", userID))
	}

	plaintext := "vibes_" + uuid.NewString()
	hash := crypto.HashToken(plaintext)

	if err := uc.repo.User().Update(ctx, userID, &model.UserUpdate{
		ExtensionTokenHash: &hash,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to store extension token hash", goerr.V("user", userID))
	}

	return plaintext, nil
}

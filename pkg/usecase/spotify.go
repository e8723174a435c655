package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
)

// SpotifyConnectURL builds the authorize URL for the user. The signed state
// binds the callback to the user who initiated the flow.
func (uc *UseCases) SpotifyConnectURL(ctx context.Context, userID types.UserID) (string, error) {
	if uc.spotify == nil {
		return "", goerr.New("spotify service is not configured")
	}

	state, err := uc.crypto.CreateSignedState(userID.String(), crypto.DefaultStateTTL)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create connect state")
	}

	return uc.spotify.AuthCodeURL(state), nil
}

// VerifyConnectState checks the signed state and returns the user it names
func (uc *UseCases) VerifyConnectState(state string) (types.UserID, error) {
	payload, ok := uc.crypto.VerifySignedState(state)
	if !ok {
		return "", goerr.New("invalid or expired connect state")
	}
	return types.UserID(payload), nil
}

// HandleSpotifyCallback completes the connect flow: the signed state names
// the user, the code becomes an encrypted token pair, and sharing turns on.
func (uc *UseCases) HandleSpotifyCallback(ctx context.Context, state, code string) error {
	userID, err := uc.VerifyConnectState(state)
	if err != nil {
		return err
	}

	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to look up connecting user", goerr.V("user", userID))
	}

	token, err := uc.spotify.Exchange(ctx, code)
	if err != nil {
		return goerr.Wrap(err, "failed to exchange spotify code", goerr.V("user", userID))
	}

	encAccess, err := uc.crypto.Encrypt(token.AccessToken)
	if err != nil {
		return goerr.Wrap(err, "failed to encrypt spotify access token")
	}
	encRefresh, err := uc.crypto.Encrypt(token.RefreshToken)
	if err != nil {
		return goerr.Wrap(err, "failed to encrypt spotify refresh token")
	}

	enabled := true
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	if err := uc.repo.User().Update(ctx, user.ID, &model.UserUpdate{
		SpotifyAccessToken:  &encAccess,
		SpotifyRefreshToken: &encRefresh,
		SpotifyExpiresAt:    &expiresAt,
		SharingEnabled:      &enabled,
	}); err != nil {
		return goerr.Wrap(err, "failed to persist spotify grant", goerr.V("user", userID))
	}

	logging.From(ctx).Info("spotify connected", "user", userID)
	return nil
}

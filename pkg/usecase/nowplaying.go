package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
)

// NowPlayingInput is a validated playback report from the browser extension
type NowPlayingInput struct {
	Source    types.TrackSource
	Title     string
	Artist    string
	Album     string
	URL       string
	IsPlaying bool
}

// AuthenticateExtension resolves a bearer token to its user. Unknown and
// missing tokens are indistinguishable to the caller.
func (uc *UseCases) AuthenticateExtension(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, goerr.New("missing extension token")
	}
	return uc.repo.User().GetByExtensionTokenHash(ctx, crypto.HashToken(token))
}

// ApplyNowPlaying reconciles an extension push into the user's Slack status.
// Sharing off is a silent no-op. A failed Slack push is logged and dropped;
// the snapshot then still describes the last state that actually reached
// Slack.
func (uc *UseCases) ApplyNowPlaying(ctx context.Context, user *model.User, input *NowPlayingInput) error {
	if !user.SharingEnabled {
		return nil
	}

	var track *model.Track
	if input.IsPlaying && input.Title != "" {
		track = &model.Track{
			ID:      fmt.Sprintf("%s:%s:%s", input.Source, input.Title, input.Artist),
			Name:    input.Title,
			Artists: []string{input.Artist},
			Album:   input.Album,
			URL:     input.URL,
		}
	}

	trackID := ""
	if track != nil {
		trackID = track.ID
	}

	if trackID != user.LastTrackID || input.IsPlaying != user.IsCurrentlyPlaying {
		if err := uc.slack.SetUserStatus(ctx, user, track, input.IsPlaying); err != nil {
			logging.From(ctx).Warn("extension status push failed",
				"user", user.ID, "error", err.Error())
			return nil
		}
	}

	update := model.SnapshotUpdate(input.Source, track, input.IsPlaying, time.Now())
	if err := uc.repo.User().Update(ctx, user.ID, update); err != nil {
		return goerr.Wrap(err, "failed to persist extension snapshot", goerr.V("user", user.ID))
	}

	return nil
}

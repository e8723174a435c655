package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
)

const (
	// statusEmoji marks a music status as ours, so foreign statuses are
	// never overwritten by a clear.
	statusEmoji = ":headphones:"

	// statusMaxRunes is Slack's custom status text limit
	statusMaxRunes = 100

	// statusExpireDuration lets a stale status expire on its own if the
	// relay dies mid-playback
	statusExpireDuration = 10 * time.Minute
)

func (c *client) SetUserStatus(ctx context.Context, user *model.User, track *model.Track, isPlaying bool) error {
	api, err := c.userAPI(user)
	if err != nil {
		return err
	}

	var text, emoji string
	var expiration int64
	if isPlaying && track != nil {
		text = truncateStatus(fmt.Sprintf("%s - %s", track.Name, track.ArtistNames()))
		emoji = statusEmoji
		expiration = time.Now().Add(statusExpireDuration).Unix()
	}

	if err := api.SetUserCustomStatusContext(ctx, text, emoji, expiration); err != nil {
		return goerr.Wrap(err, "failed to set user status",
			goerr.V("user", user.ID), goerr.V("playing", isPlaying))
	}

	return nil
}

func (c *client) ClearUserStatus(ctx context.Context, user *model.User) error {
	return c.SetUserStatus(ctx, user, nil, false)
}

// truncateStatus shortens the status text to Slack's limit, rune safe
func truncateStatus(s string) string {
	runes := []rune(s)
	if len(runes) <= statusMaxRunes {
		return s
	}
	return string(runes[:statusMaxRunes-1]) + "…"
}

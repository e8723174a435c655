package slack

import (
	"context"

	"github.com/secmon-lab/vibes/pkg/domain/model"
)

// Service provides the Slack API surface used by the poller, the extension
// endpoint and the App Home handlers. All tokens are stored encrypted and
// decrypted just-in-time per call.
type Service interface {
	// SetUserStatus writes the user's custom status. When isPlaying is
	// true the track is rendered as "{title} - {artists}"; otherwise the
	// status is explicitly cleared.
	SetUserStatus(ctx context.Context, user *model.User, track *model.Track, isPlaying bool) error

	// ClearUserStatus removes the user's custom status
	ClearUserStatus(ctx context.Context, user *model.User) error

	// PublishAppHome renders the App Home tab for the user. connectURL is
	// the Spotify authorize URL to offer, empty when already connected.
	PublishAppHome(ctx context.Context, ws *model.Workspace, user *model.User, connectURL string) error

	// OpenTokenModal shows a freshly issued extension token. The token is
	// displayed exactly once and never stored in plaintext.
	OpenTokenModal(ctx context.Context, ws *model.Workspace, triggerID, token string) error
}

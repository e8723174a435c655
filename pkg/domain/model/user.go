package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

// User holds all per-user state: the encrypted Slack user token used for
// status writes, the encrypted Spotify token pair, the extension token hash,
// and the last successfully pushed playback snapshot.
//
// LastTrackID / IsCurrentlyPlaying reflect the last snapshot that was pushed
// to Slack, not merely the last observed playback. They are the idempotence
// key for the poller's change detection.
type User struct {
	ID          types.UserID      `firestore:"id" json:"id"`
	WorkspaceID types.WorkspaceID `firestore:"workspace_id" json:"workspace_id"`

	// Encrypted at rest. Empty means not connected.
	SlackAccessToken    string    `firestore:"slack_access_token" json:"-"`
	SpotifyAccessToken  string    `firestore:"spotify_access_token" json:"-"`
	SpotifyRefreshToken string    `firestore:"spotify_refresh_token" json:"-"`
	SpotifyExpiresAt    time.Time `firestore:"spotify_expires_at" json:"spotify_expires_at"`

	// SHA-256 hex digest of the extension bearer token. The plaintext is
	// never stored; issuing a new token invalidates the previous one.
	ExtensionTokenHash string `firestore:"extension_token_hash" json:"-"`

	SharingEnabled     bool              `firestore:"sharing_enabled" json:"sharing_enabled"`
	LastSource         types.TrackSource `firestore:"last_source" json:"last_source"`
	LastTrackID        string            `firestore:"last_track_id" json:"last_track_id"`
	LastTrackName      string            `firestore:"last_track_name" json:"last_track_name"`
	LastArtistName     string            `firestore:"last_artist_name" json:"last_artist_name"`
	IsCurrentlyPlaying bool              `firestore:"is_currently_playing" json:"is_currently_playing"`
	LastPolledAt       time.Time         `firestore:"last_polled_at" json:"last_polled_at"`
	PollErrorCount     int               `firestore:"poll_error_count" json:"poll_error_count"`

	InstalledAt time.Time `firestore:"installed_at" json:"installed_at"`
}

func (x *User) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}
	if err := x.WorkspaceID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user", goerr.V("id", x.ID))
	}
	if x.SlackAccessToken == "" {
		return goerr.New("user must have a Slack access token", goerr.V("id", x.ID))
	}
	if x.PollErrorCount < 0 {
		return goerr.New("poll error count must not be negative", goerr.V("id", x.ID))
	}
	return nil
}

// SpotifyConnected reports whether the user has linked a Spotify account
func (x *User) SpotifyConnected() bool {
	return x.SpotifyAccessToken != ""
}

// UserUpdate describes a partial update to a user record. Nil fields are
// left untouched; a pointer to the zero value clears the field. Concurrent
// updates to disjoint fields never conflict.
type UserUpdate struct {
	SlackAccessToken    *string
	SpotifyAccessToken  *string
	SpotifyRefreshToken *string
	SpotifyExpiresAt    *time.Time
	ExtensionTokenHash  *string
	SharingEnabled      *bool
	LastSource          *types.TrackSource
	LastTrackID         *string
	LastTrackName       *string
	LastArtistName      *string
	IsCurrentlyPlaying  *bool
	LastPolledAt        *time.Time
	PollErrorCount      *int
}

// Apply mutates u in place according to the update
func (x *UserUpdate) Apply(u *User) {
	if x.SlackAccessToken != nil {
		u.SlackAccessToken = *x.SlackAccessToken
	}
	if x.SpotifyAccessToken != nil {
		u.SpotifyAccessToken = *x.SpotifyAccessToken
	}
	if x.SpotifyRefreshToken != nil {
		u.SpotifyRefreshToken = *x.SpotifyRefreshToken
	}
	if x.SpotifyExpiresAt != nil {
		u.SpotifyExpiresAt = *x.SpotifyExpiresAt
	}
	if x.ExtensionTokenHash != nil {
		u.ExtensionTokenHash = *x.ExtensionTokenHash
	}
	if x.SharingEnabled != nil {
		u.SharingEnabled = *x.SharingEnabled
	}
	if x.LastSource != nil {
		u.LastSource = *x.LastSource
	}
	if x.LastTrackID != nil {
		u.LastTrackID = *x.LastTrackID
	}
	if x.LastTrackName != nil {
		u.LastTrackName = *x.LastTrackName
	}
	if x.LastArtistName != nil {
		u.LastArtistName = *x.LastArtistName
	}
	if x.IsCurrentlyPlaying != nil {
		u.IsCurrentlyPlaying = *x.IsCurrentlyPlaying
	}
	if x.LastPolledAt != nil {
		u.LastPolledAt = *x.LastPolledAt
	}
	if x.PollErrorCount != nil {
		u.PollErrorCount = *x.PollErrorCount
	}
}

// SnapshotUpdate builds the partial update both writers (poller tick and
// extension push) persist after reconciling playback state. A successful
// reconciliation always resets the error counter.
func SnapshotUpdate(source types.TrackSource, track *Track, isPlaying bool, polledAt time.Time) *UserUpdate {
	upd := &UserUpdate{
		LastSource:         new(types.TrackSource),
		LastTrackID:        new(string),
		LastTrackName:      new(string),
		LastArtistName:     new(string),
		IsCurrentlyPlaying: &isPlaying,
		LastPolledAt:       &polledAt,
		PollErrorCount:     new(int),
	}
	if isPlaying {
		*upd.LastSource = source
	}
	if track != nil {
		*upd.LastTrackID = track.ID
		*upd.LastTrackName = track.Name
		*upd.LastArtistName = track.PrimaryArtist()
	}
	return upd
}

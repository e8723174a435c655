package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// UserID is the Slack user ID that keys all per-user state
type UserID string

func (x UserID) Validate() error {
	if x == "" {
		return goerr.New("user ID cannot be empty")
	}
	return nil
}

func (x UserID) String() string {
	return string(x)
}

// WorkspaceID is the Slack team ID
type WorkspaceID string

func (x WorkspaceID) Validate() error {
	if x == "" {
		return goerr.New("workspace ID cannot be empty")
	}
	return nil
}

func (x WorkspaceID) String() string {
	return string(x)
}

// TrackSource identifies which integration produced a playback snapshot
type TrackSource string

const (
	SourceNone         TrackSource = ""
	SourceSpotify      TrackSource = "spotify"
	SourceYouTubeMusic TrackSource = "youtube-music"
)

func (x TrackSource) String() string {
	return string(x)
}

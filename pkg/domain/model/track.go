package model

import "strings"

// Track is the provider-agnostic view of a playing track. Spotify playback
// and extension pushes both normalize into this shape before reconciliation.
type Track struct {
	ID      string
	Name    string
	Artists []string
	Album   string
	URL     string
}

// PrimaryArtist returns the first artist, or empty when unknown
func (x *Track) PrimaryArtist() string {
	if len(x.Artists) == 0 {
		return ""
	}
	return x.Artists[0]
}

// ArtistNames joins all artists for status text
func (x *Track) ArtistNames() string {
	return strings.Join(x.Artists, ", ")
}

// PlaybackState is the result of observing a user's live playback
type PlaybackState struct {
	IsPlaying bool
	Track     *Track
}

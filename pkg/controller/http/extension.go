package http

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/secmon-lab/vibes/pkg/utils/errutil"
)

const (
	extensionTokenHeader = "X-Extension-Token"

	maxTitleLen  = 500
	maxArtistLen = 500
	maxURLLen    = 2000

	// latestExtensionVersion is served to extensions checking for updates
	latestExtensionVersion = "1.2.0"
)

// nowPlayingRequest uses pointer fields so missing and mistyped values are
// told apart from zero values during validation
type nowPlayingRequest struct {
	IsPlaying *bool    `json:"isPlaying"`
	Timestamp *float64 `json:"timestamp"`
	Track     *struct {
		Source string `json:"source"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
		Album  string `json:"album"`
		URL    string `json:"url"`
	} `json:"track"`
}

func (x *nowPlayingRequest) validate() error {
	if x.IsPlaying == nil {
		return goerr.New("isPlaying must be a boolean")
	}
	if x.Timestamp == nil {
		return goerr.New("timestamp must be a number")
	}

	if x.Track != nil {
		if x.Track.Source != string(types.SourceSpotify) && x.Track.Source != string(types.SourceYouTubeMusic) {
			return goerr.New("unknown track source", goerr.V("source", x.Track.Source))
		}
		if x.Track.Title == "" {
			return goerr.New("track title is required")
		}
		if x.Track.Artist == "" {
			return goerr.New("track artist is required")
		}
		if utf8.RuneCountInString(x.Track.Title) > maxTitleLen {
			return goerr.New("track title too long", goerr.V("len", utf8.RuneCountInString(x.Track.Title)))
		}
		if utf8.RuneCountInString(x.Track.Artist) > maxArtistLen {
			return goerr.New("track artist too long", goerr.V("len", utf8.RuneCountInString(x.Track.Artist)))
		}
		if utf8.RuneCountInString(x.Track.URL) > maxURLLen {
			return goerr.New("track url too long", goerr.V("len", utf8.RuneCountInString(x.Track.URL)))
		}
	}

	if *x.IsPlaying && x.Track == nil {
		return goerr.New("playing report requires a track")
	}

	return nil
}

// nowPlayingHandler ingests playback reports from the browser extension
func nowPlayingHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := uc.AuthenticateExtension(ctx, r.Header.Get(extensionTokenHeader))
		if err != nil {
			// Unknown and missing tokens look the same to the caller
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Sharing off short-circuits before the payload is even parsed
		if !user.SharingEnabled {
			writeJSON(ctx, w, http.StatusOK, map[string]bool{"ok": true})
			return
		}

		var req nowPlayingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
			return
		}
		if err := req.validate(); err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		input := &usecase.NowPlayingInput{IsPlaying: *req.IsPlaying}
		if req.Track != nil {
			input.Source = types.TrackSource(req.Track.Source)
			input.Title = req.Track.Title
			input.Artist = req.Track.Artist
			input.Album = req.Track.Album
			input.URL = req.Track.URL
		}

		if err := uc.ApplyNowPlaying(ctx, user, input); err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// extensionStatusHandler lets the extension verify its token and see the
// sharing state
func extensionStatusHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := uc.AuthenticateExtension(ctx, r.Header.Get(extensionTokenHeader))
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]any{
			"connected":       true,
			"sharing_enabled": user.SharingEnabled,
		})
	}
}

func extensionVersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{
			"latest": latestExtensionVersion,
		})
	}
}

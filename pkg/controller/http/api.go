package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model/auth"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/secmon-lab/vibes/pkg/utils/errutil"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
)

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(ctx).Error("failed to encode response", "error", err)
	}
}

// userStatusResponse exposes only booleans and display strings; tokens and
// hashes never leave the server
type userStatusResponse struct {
	UserID           string `json:"user_id"`
	WorkspaceID      string `json:"workspace_id"`
	SpotifyConnected bool   `json:"spotify_connected"`
	ExtensionLinked  bool   `json:"extension_linked"`
	SharingEnabled   bool   `json:"sharing_enabled"`
	IsPlaying        bool   `json:"is_playing"`
	TrackName        string `json:"track_name,omitempty"`
	ArtistName       string `json:"artist_name,omitempty"`
	Source           string `json:"source,omitempty"`
}

func userStatusHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := auth.TokenFromContext(ctx)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("no session in context"), http.StatusUnauthorized)
			return
		}

		user, err := uc.GetUser(ctx, token.Sub)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
			return
		}

		writeJSON(ctx, w, http.StatusOK, userStatusResponse{
			UserID:           user.ID.String(),
			WorkspaceID:      user.WorkspaceID.String(),
			SpotifyConnected: user.SpotifyConnected(),
			ExtensionLinked:  user.ExtensionTokenHash != "",
			SharingEnabled:   user.SharingEnabled,
			IsPlaying:        user.IsCurrentlyPlaying,
			TrackName:        user.LastTrackName,
			ArtistName:       user.LastArtistName,
			Source:           user.LastSource.String(),
		})
	}
}

func userSharingHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := auth.TokenFromContext(ctx)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("no session in context"), http.StatusUnauthorized)
			return
		}

		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			errutil.HandleHTTP(ctx, w, goerr.New("enabled must be a boolean"), http.StatusBadRequest)
			return
		}

		if err := uc.SetSharing(ctx, token.Sub, *req.Enabled); err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]bool{"sharing_enabled": *req.Enabled})
	}
}

func userDisconnectHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := auth.TokenFromContext(ctx)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("no session in context"), http.StatusUnauthorized)
			return
		}

		if err := uc.DisconnectSpotify(ctx, token.Sub); err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
	}
}

// extensionTokenHandler issues a fresh extension token for the dashboard.
// The response is the only place the plaintext ever appears.
func extensionTokenHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := auth.TokenFromContext(ctx)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("no session in context"), http.StatusUnauthorized)
			return
		}

		plaintext, err := uc.IssueExtensionToken(ctx, token.Sub)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]string{"token": plaintext})
	}
}

func spotifyConnectURLHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := auth.TokenFromContext(ctx)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("no session in context"), http.StatusUnauthorized)
			return
		}

		url, err := uc.SpotifyConnectURL(ctx, token.Sub)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]string{"url": url})
	}
}

package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

type currentlyPlayingResponse struct {
	IsPlaying bool `json:"is_playing"`
	Item      *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name string `json:"name"`
		} `json:"album"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
	} `json:"item"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *client) GetPlayback(ctx context.Context, user *model.User) (*model.PlaybackState, error) {
	if !user.SpotifyConnected() {
		return nil, nil
	}

	accessToken, err := c.crypto.Decrypt(user.SpotifyAccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decrypt spotify access token", goerr.V("user", user.ID))
	}

	// Proactive refresh before the stored expiry hits mid-request
	if !user.SpotifyExpiresAt.IsZero() && time.Now().After(user.SpotifyExpiresAt) {
		accessToken, err = c.refresh(ctx, user)
		if err != nil {
			return nil, err
		}
	}

	state, status, err := c.fetchPlayback(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	// A stale token gets exactly one refresh and one retry
	if status == http.StatusUnauthorized {
		accessToken, err = c.refresh(ctx, user)
		if err != nil {
			return nil, err
		}

		state, status, err = c.fetchPlayback(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, goerr.Wrap(ErrPlaybackUnavailable, "token rejected after refresh", goerr.V("user", user.ID))
		}
	}

	return state, nil
}

// fetchPlayback performs one currently-playing request. A 401 is reported
// via the status return so the caller can decide to refresh.
func (c *client) fetchPlayback(ctx context.Context, accessToken string) (*model.PlaybackState, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, goerr.Wrap(err, "rate limiter interrupted")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/me/player/currently-playing", nil)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to build playback request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to request playback")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, goerr.New("unexpected playback response",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(body)))
	}

	var playing currentlyPlayingResponse
	if err := json.NewDecoder(resp.Body).Decode(&playing); err != nil {
		return nil, resp.StatusCode, goerr.Wrap(err, "failed to decode playback response")
	}

	if playing.Item == nil {
		return nil, resp.StatusCode, nil
	}

	artists := make([]string, 0, len(playing.Item.Artists))
	for _, a := range playing.Item.Artists {
		artists = append(artists, a.Name)
	}

	track := &model.Track{
		ID:      TrackID(playing.Item.Name, artists),
		Name:    playing.Item.Name,
		Artists: artists,
		Album:   playing.Item.Album.Name,
		URL:     playing.Item.ExternalURLs.Spotify,
	}

	return &model.PlaybackState{
		IsPlaying: playing.IsPlaying,
		Track:     track,
	}, resp.StatusCode, nil
}

// TrackID derives the identity used for change detection
func TrackID(title string, artists []string) string {
	primary := ""
	if len(artists) > 0 {
		primary = artists[0]
	}
	return fmt.Sprintf("%s:%s:%s", types.SourceSpotify, title, primary)
}

// refresh trades the stored refresh token for a new access token and
// persists the re-encrypted pair. Spotify only rotates the refresh token
// sometimes; the old one is kept unless a new one comes back.
func (c *client) refresh(ctx context.Context, user *model.User) (string, error) {
	if user.SpotifyRefreshToken == "" {
		return "", goerr.Wrap(ErrPlaybackUnavailable, "no refresh token", goerr.V("user", user.ID))
	}

	refreshToken, err := c.crypto.Decrypt(user.SpotifyRefreshToken)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decrypt spotify refresh token", goerr.V("user", user.ID))
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.oauth.ClientID, c.oauth.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(ErrPlaybackUnavailable, "refresh request failed", goerr.V("user", user.ID))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", goerr.Wrap(ErrPlaybackUnavailable, "refresh rejected",
			goerr.V("user", user.ID), goerr.V("status", resp.StatusCode), goerr.V("body", string(body)))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", goerr.Wrap(ErrPlaybackUnavailable, "failed to decode refresh response", goerr.V("user", user.ID))
	}
	if token.AccessToken == "" {
		return "", goerr.Wrap(ErrPlaybackUnavailable, "refresh returned no access token", goerr.V("user", user.ID))
	}

	encAccess, err := c.crypto.Encrypt(token.AccessToken)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encrypt refreshed access token")
	}

	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	update := &model.UserUpdate{
		SpotifyAccessToken: &encAccess,
		SpotifyExpiresAt:   &expiresAt,
	}

	user.SpotifyAccessToken = encAccess
	user.SpotifyExpiresAt = expiresAt

	if token.RefreshToken != "" {
		encRefresh, err := c.crypto.Encrypt(token.RefreshToken)
		if err != nil {
			return "", goerr.Wrap(err, "failed to encrypt rotated refresh token")
		}
		update.SpotifyRefreshToken = &encRefresh
		user.SpotifyRefreshToken = encRefresh
	}

	if err := c.users.Update(ctx, user.ID, update); err != nil {
		return "", goerr.Wrap(err, "failed to persist refreshed tokens", goerr.V("user", user.ID))
	}

	return token.AccessToken, nil
}

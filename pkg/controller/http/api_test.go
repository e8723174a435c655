package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

func (e *serverEnv) login(t *testing.T, userID types.UserID) []*http.Cookie {
	t.Helper()
	token, err := e.uc.CreateSession(context.Background(), userID, "T0001")
	gt.NoError(t, err).Required()
	return []*http.Cookie{
		{Name: "token_id", Value: token.ID.String()},
		{Name: "token_secret", Value: token.Secret.String()},
	}
}

func (e *serverEnv) apiRequest(method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func TestUserStatusEndpoint(t *testing.T) {
	t.Run("no session is unauthorized", func(t *testing.T) {
		env := newServerEnv(t)

		rec := env.apiRequest(http.MethodGet, "/api/user/status", "", nil)
		gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("session sees own state without secrets", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{
			ID:                  "U1",
			SharingEnabled:      true,
			SpotifyAccessToken:  "enc:access",
			SpotifyRefreshToken: "enc:refresh",
			ExtensionTokenHash:  "somehash",
			IsCurrentlyPlaying:  true,
			LastTrackName:       "Some Song",
			LastArtistName:      "Some Artist",
			LastSource:          types.SourceSpotify,
		})
		cookies := env.login(t, "U1")

		rec := env.apiRequest(http.MethodGet, "/api/user/status", "", cookies)
		gt.Number(t, rec.Code).Equal(http.StatusOK)

		var resp map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp["user_id"]).Equal(any("U1"))
		gt.Value(t, resp["spotify_connected"]).Equal(any(true))
		gt.Value(t, resp["extension_linked"]).Equal(any(true))
		gt.Value(t, resp["track_name"]).Equal(any("Some Song"))

		// Token material must never appear in the response
		gt.Bool(t, strings.Contains(rec.Body.String(), "enc:")).False()
		gt.Bool(t, strings.Contains(rec.Body.String(), "somehash")).False()
	})
}

func TestUserSharingEndpoint(t *testing.T) {
	env := newServerEnv(t)
	env.putUser(t, &model.User{ID: "U1", SharingEnabled: true})
	cookies := env.login(t, "U1")

	t.Run("missing enabled field is rejected", func(t *testing.T) {
		rec := env.apiRequest(http.MethodPost, "/api/user/sharing", `{}`, cookies)
		gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("disabling sharing persists and clears status", func(t *testing.T) {
		rec := env.apiRequest(http.MethodPost, "/api/user/sharing", `{"enabled": false}`, cookies)
		gt.Number(t, rec.Code).Equal(http.StatusOK)

		user, err := env.repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Bool(t, user.SharingEnabled).False()
		gt.Number(t, env.slack.statusCount()).Equal(1)
	})
}

func TestExtensionTokenEndpoint(t *testing.T) {
	env := newServerEnv(t)
	env.putUser(t, &model.User{ID: "U1"})
	cookies := env.login(t, "U1")

	rec := env.apiRequest(http.MethodPost, "/api/user/extension-token", "", cookies)
	gt.Number(t, rec.Code).Equal(http.StatusOK)

	var resp map[string]string
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Bool(t, strings.HasPrefix(resp["token"], "vibes_")).True()

	// Only the hash lands in the repository
	user, err := env.repo.User().Get(context.Background(), "U1")
	gt.NoError(t, err).Required()
	gt.Value(t, user.ExtensionTokenHash).NotEqual("")
	gt.Value(t, user.ExtensionTokenHash).NotEqual(resp["token"])
}

func TestLogoutEndpoint(t *testing.T) {
	env := newServerEnv(t)
	env.putUser(t, &model.User{ID: "U1"})
	cookies := env.login(t, "U1")

	rec := env.apiRequest(http.MethodPost, "/api/auth/logout", "", cookies)
	gt.Number(t, rec.Code).Equal(http.StatusOK)

	// The session is gone afterwards
	rec = env.apiRequest(http.MethodGet, "/api/user/status", "", cookies)
	gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
}

func TestSpotifyStartEndpoint(t *testing.T) {
	t.Run("anonymous request is unauthorized", func(t *testing.T) {
		env := newServerEnv(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/spotify/start", nil)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)

		gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("forged state is unauthorized", func(t *testing.T) {
		env := newServerEnv(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/spotify/start?state=forged.deadbeef", nil)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)

		gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
	})
}

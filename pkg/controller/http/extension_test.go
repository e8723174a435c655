package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	controller "github.com/secmon-lab/vibes/pkg/controller/http"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/repository/memory"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/secmon-lab/vibes/pkg/usecase"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000000"

type fakeSlack struct {
	mu       sync.Mutex
	statuses []string
	homes    []types.UserID
	modals   []string
}

func (f *fakeSlack) SetUserStatus(ctx context.Context, user *model.User, track *model.Track, isPlaying bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	text := ""
	if track != nil && isPlaying {
		text = track.Name
	}
	f.statuses = append(f.statuses, text)
	return nil
}

func (f *fakeSlack) ClearUserStatus(ctx context.Context, user *model.User) error {
	return f.SetUserStatus(ctx, user, nil, false)
}

func (f *fakeSlack) PublishAppHome(ctx context.Context, ws *model.Workspace, user *model.User, connectURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homes = append(f.homes, user.ID)
	return nil
}

func (f *fakeSlack) OpenTokenModal(ctx context.Context, ws *model.Workspace, triggerID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modals = append(f.modals, token)
	return nil
}

func (f *fakeSlack) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statuses)
}

type serverEnv struct {
	repo   *memory.Memory
	uc     *usecase.UseCases
	slack  *fakeSlack
	server *controller.Server
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	cryptoSvc, err := crypto.New(testKey, "state-secret")
	gt.NoError(t, err).Required()

	repo := memory.New()
	slackSvc := &fakeSlack{}

	uc := usecase.New(repo, cryptoSvc,
		usecase.WithSlackService(slackSvc),
		usecase.WithBaseURL("https://vibes.example.com"))

	rl := controller.NewRateLimiter(1000, time.Minute)
	server := controller.New(uc,
		controller.WithSlackSigningSecret("signing-secret"),
		controller.WithRateLimiter(rl))
	t.Cleanup(server.Close)

	return &serverEnv{repo: repo, uc: uc, slack: slackSvc, server: server}
}

func (e *serverEnv) putUser(t *testing.T, user *model.User) *model.User {
	t.Helper()
	if user.WorkspaceID == "" {
		user.WorkspaceID = "T0001"
	}
	if user.SlackAccessToken == "" {
		user.SlackAccessToken = "enc:slack"
	}
	gt.NoError(t, e.repo.User().Put(context.Background(), user)).Required()
	return user
}

func (e *serverEnv) issueToken(t *testing.T, userID types.UserID) string {
	t.Helper()
	token, err := e.uc.IssueExtensionToken(context.Background(), userID)
	gt.NoError(t, err).Required()
	return token
}

func postNowPlaying(env *serverEnv, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/extension/now-playing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Extension-Token", token)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

const playingBody = `{
	"isPlaying": true,
	"timestamp": 1700000000.5,
	"track": {
		"source": "youtube-music",
		"title": "Video Song",
		"artist": "Some Artist",
		"album": "Some Album",
		"url": "https://music.youtube.com/watch?v=x"
	}
}`

func TestNowPlayingEndpoint(t *testing.T) {
	t.Run("missing token is unauthorized", func(t *testing.T) {
		env := newServerEnv(t)

		rec := postNowPlaying(env, "", playingBody)
		gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("unknown token is unauthorized", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{ID: "U1", SharingEnabled: true})
		env.issueToken(t, "U1")

		rec := postNowPlaying(env, "vibes_wrong-token", playingBody)
		gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("sharing off short-circuits with ok", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{ID: "U1", SharingEnabled: false})
		token := env.issueToken(t, "U1")

		rec := postNowPlaying(env, token, playingBody)
		gt.Number(t, rec.Code).Equal(http.StatusOK)
		gt.Number(t, env.slack.statusCount()).Equal(0)
	})

	t.Run("valid report updates status and snapshot", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{ID: "U1", SharingEnabled: true})
		token := env.issueToken(t, "U1")

		rec := postNowPlaying(env, token, playingBody)
		gt.Number(t, rec.Code).Equal(http.StatusOK)

		var resp map[string]bool
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Bool(t, resp["ok"]).True()

		gt.Number(t, env.slack.statusCount()).Equal(1)

		user, err := env.repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.LastTrackID).Equal("youtube-music:Video Song:Some Artist")
		gt.Value(t, user.LastSource).Equal(types.SourceYouTubeMusic)
		gt.Bool(t, user.IsCurrentlyPlaying).True()
	})

	t.Run("validation failures are 400 with no side effects", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{ID: "U1", SharingEnabled: true})
		token := env.issueToken(t, "U1")

		longTitle := strings.Repeat("a", 501)
		cases := map[string]string{
			"missing isPlaying":    `{"timestamp": 1}`,
			"boolean as string":    `{"isPlaying": "yes", "timestamp": 1}`,
			"missing timestamp":    `{"isPlaying": false}`,
			"playing without track": `{"isPlaying": true, "timestamp": 1}`,
			"missing title":        `{"isPlaying": true, "timestamp": 1, "track": {"source": "spotify", "artist": "A"}}`,
			"unknown source":       `{"isPlaying": true, "timestamp": 1, "track": {"source": "tape-deck", "title": "T", "artist": "A"}}`,
			"oversize title":       `{"isPlaying": true, "timestamp": 1, "track": {"source": "spotify", "title": "` + longTitle + `", "artist": "A"}}`,
			"not json":             `not json at all`,
		}

		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				rec := postNowPlaying(env, token, body)
				gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
			})
		}

		gt.Number(t, env.slack.statusCount()).Equal(0)

		user, err := env.repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.LastTrackID).Equal("")
	})

	t.Run("length limits count runes, not bytes", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{ID: "U1", SharingEnabled: true})
		token := env.issueToken(t, "U1")

		// 200 runes but 600 bytes; well within the 500-character limit
		wideTitle := strings.Repeat("あ", 200)
		body := `{"isPlaying": true, "timestamp": 1, "track": {"source": "youtube-music", "title": "` + wideTitle + `", "artist": "A"}}`
		rec := postNowPlaying(env, token, body)
		gt.Number(t, rec.Code).Equal(http.StatusOK)

		tooWide := strings.Repeat("あ", 501)
		body = `{"isPlaying": true, "timestamp": 1, "track": {"source": "youtube-music", "title": "` + tooWide + `", "artist": "A"}}`
		rec = postNowPlaying(env, token, body)
		gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("stopped playback needs no track", func(t *testing.T) {
		env := newServerEnv(t)
		env.putUser(t, &model.User{
			ID:                 "U1",
			SharingEnabled:     true,
			LastTrackID:        "youtube-music:Video Song:Some Artist",
			IsCurrentlyPlaying: true,
		})
		token := env.issueToken(t, "U1")

		rec := postNowPlaying(env, token, `{"isPlaying": false, "timestamp": 1700000000}`)
		gt.Number(t, rec.Code).Equal(http.StatusOK)
		gt.Number(t, env.slack.statusCount()).Equal(1)
	})
}

func TestExtensionStatusEndpoint(t *testing.T) {
	env := newServerEnv(t)
	env.putUser(t, &model.User{ID: "U1", SharingEnabled: true})
	token := env.issueToken(t, "U1")

	t.Run("valid token sees sharing state", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/extension/status", nil)
		req.Header.Set("X-Extension-Token", token)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)

		gt.Number(t, rec.Code).Equal(http.StatusOK)

		var resp map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp["connected"]).Equal(any(true))
		gt.Value(t, resp["sharing_enabled"]).Equal(any(true))
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/extension/status", nil)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)

		gt.Number(t, rec.Code).Equal(http.StatusUnauthorized)
	})
}

func TestExtensionVersionEndpoint(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/extension/version", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	gt.Number(t, rec.Code).Equal(http.StatusOK)

	var resp map[string]string
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Value(t, resp["latest"]).NotEqual("")
}

func TestHealthEndpoint(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	gt.Number(t, rec.Code).Equal(http.StatusOK)
}

package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/repository/memory"
	"github.com/secmon-lab/vibes/pkg/service/worker"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  []types.UserID
	states map[types.UserID]*model.PlaybackState
	errs   map[types.UserID]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		states: make(map[types.UserID]*model.PlaybackState),
		errs:   make(map[types.UserID]error),
	}
}

func (f *fakeSource) GetPlayback(ctx context.Context, user *model.User) (*model.PlaybackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, user.ID)
	if err := f.errs[user.ID]; err != nil {
		return nil, err
	}
	return f.states[user.ID], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type statusCall struct {
	userID    types.UserID
	trackID   string
	isPlaying bool
}

type fakeStatus struct {
	mu     sync.Mutex
	calls  []statusCall
	clears []types.UserID
	err    error
}

func (f *fakeStatus) SetUserStatus(ctx context.Context, user *model.User, track *model.Track, isPlaying bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	call := statusCall{userID: user.ID, isPlaying: isPlaying}
	if track != nil {
		call.trackID = track.ID
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeStatus) ClearUserStatus(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears = append(f.clears, user.ID)
	return nil
}

func (f *fakeStatus) setCalls() []statusCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusCall(nil), f.calls...)
}

func (f *fakeStatus) clearCalls() []types.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.UserID(nil), f.clears...)
}

func putUser(t *testing.T, repo *memory.Memory, user *model.User) {
	t.Helper()
	user.WorkspaceID = "T0001"
	user.SlackAccessToken = "enc:slack"
	if user.SpotifyAccessToken == "" {
		user.SpotifyAccessToken = "enc:spotify"
	}
	gt.NoError(t, repo.User().Put(context.Background(), user)).Required()
}

func TestPollerTick(t *testing.T) {
	t.Run("new track pushes status and persists snapshot", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{ID: "U1", SharingEnabled: true})
		source.states["U1"] = &model.PlaybackState{
			IsPlaying: true,
			Track: &model.Track{
				ID:      "spotify:Breathe:Pink Floyd",
				Name:    "Breathe",
				Artists: []string{"Pink Floyd"},
			},
		}

		gt.NoError(t, poller.Tick(context.Background())).Required()

		calls := status.setCalls()
		gt.Number(t, len(calls)).Equal(1)
		gt.Value(t, calls[0].trackID).Equal("spotify:Breathe:Pink Floyd")
		gt.Bool(t, calls[0].isPlaying).True()

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.LastTrackID).Equal("spotify:Breathe:Pink Floyd")
		gt.Value(t, user.LastTrackName).Equal("Breathe")
		gt.Value(t, user.LastSource).Equal(types.SourceSpotify)
		gt.Bool(t, user.IsCurrentlyPlaying).True()
		gt.Bool(t, user.LastPolledAt.IsZero()).False()
		gt.Number(t, user.PollErrorCount).Equal(0)
	})

	t.Run("unchanged state skips the push but touches the snapshot", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:                 "U1",
			SharingEnabled:     true,
			LastSource:         types.SourceSpotify,
			LastTrackID:        "spotify:Breathe:Pink Floyd",
			IsCurrentlyPlaying: true,
			LastPolledAt:       time.Now().Add(-time.Minute),
		})
		source.states["U1"] = &model.PlaybackState{
			IsPlaying: true,
			Track:     &model.Track{ID: "spotify:Breathe:Pink Floyd", Name: "Breathe"},
		}

		gt.NoError(t, poller.Tick(context.Background())).Required()

		gt.Number(t, len(status.setCalls())).Equal(0)

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Bool(t, time.Since(user.LastPolledAt) < 10*time.Second).True()
	})

	t.Run("stopped playback clears the status once", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:                 "U1",
			SharingEnabled:     true,
			LastSource:         types.SourceSpotify,
			LastTrackID:        "spotify:Breathe:Pink Floyd",
			IsCurrentlyPlaying: true,
			LastPolledAt:       time.Now().Add(-time.Minute),
		})
		// No playback at all

		gt.NoError(t, poller.Tick(context.Background())).Required()

		calls := status.setCalls()
		gt.Number(t, len(calls)).Equal(1)
		gt.Bool(t, calls[0].isPlaying).False()
		gt.Value(t, calls[0].trackID).Equal("")

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.LastTrackID).Equal("")
		gt.Value(t, user.LastSource).Equal(types.SourceNone)
		gt.Bool(t, user.IsCurrentlyPlaying).False()
	})

	t.Run("poll failure increments the error counter", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{ID: "U1", SharingEnabled: true})
		source.errs["U1"] = goerr.New("spotify down")

		gt.NoError(t, poller.Tick(context.Background())).Required()

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Number(t, user.PollErrorCount).Equal(1)
		gt.Number(t, len(status.clearCalls())).Equal(0)
	})

	t.Run("crossing the error ceiling parks the user and clears status", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:             "U1",
			SharingEnabled: true,
			PollErrorCount: worker.DefaultMaxErrorCount - 1,
			LastPolledAt:   time.Now().Add(-time.Minute),
		})
		source.errs["U1"] = goerr.New("spotify down")

		gt.NoError(t, poller.Tick(context.Background())).Required()

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Number(t, user.PollErrorCount).Equal(worker.DefaultMaxErrorCount)
		gt.Number(t, len(status.clearCalls())).Equal(1)

		// Parked users leave the batch entirely
		gt.NoError(t, poller.Tick(context.Background())).Required()
		gt.Number(t, len(status.clearCalls())).Equal(1)
	})

	t.Run("successful poll recovers a failing user", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:             "U1",
			SharingEnabled: true,
			PollErrorCount: 3,
			LastPolledAt:   time.Now().Add(-time.Minute),
		})

		gt.NoError(t, poller.Tick(context.Background())).Required()

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Number(t, user.PollErrorCount).Equal(0)
	})

	t.Run("fresh extension push suppresses spotify polling", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:                 "U1",
			SharingEnabled:     true,
			LastSource:         types.SourceYouTubeMusic,
			LastTrackID:        "youtube-music:Video:Artist",
			IsCurrentlyPlaying: true,
			LastPolledAt:       time.Now().Add(-time.Minute),
		})

		gt.NoError(t, poller.Tick(context.Background())).Required()

		gt.Number(t, source.callCount()).Equal(0)
		gt.Number(t, len(status.setCalls())).Equal(0)
	})

	t.Run("extension-only user is never polled or cleared", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		// No Spotify grant; the snapshot is a stale extension push
		user := &model.User{
			ID:                 "U1",
			WorkspaceID:        "T0001",
			SlackAccessToken:   "enc:slack",
			SharingEnabled:     true,
			LastSource:         types.SourceYouTubeMusic,
			LastTrackID:        "youtube-music:Video:Artist",
			IsCurrentlyPlaying: true,
			LastPolledAt:       time.Now().Add(-3 * time.Minute),
		}
		gt.NoError(t, repo.User().Put(context.Background(), user)).Required()

		gt.NoError(t, poller.Tick(context.Background())).Required()

		gt.Number(t, source.callCount()).Equal(0)
		gt.Number(t, len(status.setCalls())).Equal(0)
		gt.Number(t, len(status.clearCalls())).Equal(0)

		got, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.LastTrackID).Equal("youtube-music:Video:Artist")
		gt.Bool(t, got.IsCurrentlyPlaying).True()
	})

	t.Run("stale extension push falls back to spotify", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:                 "U1",
			SharingEnabled:     true,
			LastSource:         types.SourceYouTubeMusic,
			LastTrackID:        "youtube-music:Video:Artist",
			IsCurrentlyPlaying: true,
			LastPolledAt:       time.Now().Add(-3 * time.Minute),
		})
		source.states["U1"] = &model.PlaybackState{
			IsPlaying: true,
			Track:     &model.Track{ID: "spotify:Time:Pink Floyd", Name: "Time"},
		}

		gt.NoError(t, poller.Tick(context.Background())).Required()

		gt.Number(t, source.callCount()).Equal(1)
		calls := status.setCalls()
		gt.Number(t, len(calls)).Equal(1)
		gt.Value(t, calls[0].trackID).Equal("spotify:Time:Pink Floyd")
	})

	t.Run("failed push is not recorded as the snapshot", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{err: goerr.New("slack down")}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{ID: "U1", SharingEnabled: true})
		source.states["U1"] = &model.PlaybackState{
			IsPlaying: true,
			Track:     &model.Track{ID: "spotify:Breathe:Pink Floyd", Name: "Breathe"},
		}

		gt.NoError(t, poller.Tick(context.Background())).Required()

		user, err := repo.User().Get(context.Background(), "U1")
		gt.NoError(t, err).Required()
		gt.Value(t, user.LastTrackID).Equal("")
		gt.Number(t, user.PollErrorCount).Equal(1)
	})

	t.Run("cooldown keeps recently polled users out of the batch", func(t *testing.T) {
		repo := memory.New()
		source := newFakeSource()
		status := &fakeStatus{}
		poller := worker.NewPoller(repo, source, status)

		putUser(t, repo, &model.User{
			ID:             "U1",
			SharingEnabled: true,
			LastPolledAt:   time.Now().Add(-5 * time.Second),
		})

		gt.NoError(t, poller.Tick(context.Background())).Required()
		gt.Number(t, source.callCount()).Equal(0)
	})
}

func TestPollerLifecycle(t *testing.T) {
	repo := memory.New()
	source := newFakeSource()
	status := &fakeStatus{}

	poller := worker.NewPoller(repo, source, status,
		worker.WithInterval(10*time.Millisecond),
		worker.WithCooldown(time.Millisecond),
		worker.WithBatchSize(5))

	putUser(t, repo, &model.User{ID: "U1", SharingEnabled: true})
	source.states["U1"] = &model.PlaybackState{
		IsPlaying: true,
		Track:     &model.Track{ID: "spotify:Breathe:Pink Floyd", Name: "Breathe"},
	}

	ctx := context.Background()
	gt.NoError(t, poller.Start(ctx)).Required()

	deadline := time.After(2 * time.Second)
	for source.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("poller never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	poller.Stop()
}

package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/utils/errutil"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPollInterval is the global tick period
	DefaultPollInterval = 15 * time.Second

	// DefaultBatchSize caps users handled per tick
	DefaultBatchSize = 10

	// DefaultPollCooldown is the minimum gap between polls of one user
	DefaultPollCooldown = 30 * time.Second

	// DefaultMaxErrorCount parks a user after this many consecutive
	// failures until a successful reconciliation resets the counter
	DefaultMaxErrorCount = 5

	// extensionFreshness is how long an extension push supersedes
	// Spotify polling for the same user
	extensionFreshness = 120 * time.Second
)

// PlaybackSource reads a user's current playback
type PlaybackSource interface {
	GetPlayback(ctx context.Context, user *model.User) (*model.PlaybackState, error)
}

// StatusWriter pushes playback state to the user's Slack status
type StatusWriter interface {
	SetUserStatus(ctx context.Context, user *model.User, track *model.Track, isPlaying bool) error
	ClearUserStatus(ctx context.Context, user *model.User) error
}

// Poller periodically reconciles Spotify playback into Slack statuses.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type Poller struct {
	repo   interfaces.Repository
	source PlaybackSource
	status StatusWriter

	interval  time.Duration
	cooldown  time.Duration
	batchSize int
	maxErrors int

	stopCh chan struct{}
	doneCh chan struct{}
}

// Option is a functional option for poller configuration
type Option func(*Poller)

// WithInterval overrides the tick period
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithCooldown overrides the per-user poll gap
func WithCooldown(d time.Duration) Option {
	return func(p *Poller) {
		p.cooldown = d
	}
}

// WithBatchSize overrides the per-tick user cap
func WithBatchSize(n int) Option {
	return func(p *Poller) {
		p.batchSize = n
	}
}

// NewPoller creates the playback poller
func NewPoller(repo interfaces.Repository, source PlaybackSource, status StatusWriter, opts ...Option) *Poller {
	p := &Poller{
		repo:      repo,
		source:    source,
		status:    status,
		interval:  DefaultPollInterval,
		cooldown:  DefaultPollCooldown,
		batchSize: DefaultBatchSize,
		maxErrors: DefaultMaxErrorCount,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start begins the background poll loop. Does not block server startup.
func (p *Poller) Start(ctx context.Context) error {
	logging.Default().Info("playback poller starting",
		"interval", p.interval.String(),
		"batchSize", p.batchSize)

	go p.run(ctx)

	return nil
}

// Stop signals the poller to stop and waits for completion
func (p *Poller) Stop() {
	logging.Default().Info("playback poller stopping")
	close(p.stopCh)
	<-p.doneCh
	logging.Default().Info("playback poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				logging.Default().Error("poll tick failed (will retry next interval)",
					"error", err.Error())
			}

		case <-p.stopCh:
			logging.Default().Info("playback poller received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("playback poller context cancelled")
			return
		}
	}
}

// Tick performs one reconciliation pass over the eligible users. Per-user
// failures are counted on the user and never abort the pass.
func (p *Poller) Tick(ctx context.Context) error {
	cutoff := time.Now().Add(-p.cooldown)

	users, err := p.repo.User().ListPollable(ctx, cutoff, p.maxErrors, p.batchSize)
	if err != nil {
		return goerr.Wrap(err, "failed to list pollable users")
	}
	if len(users) == 0 {
		return nil
	}

	var eg errgroup.Group
	for _, user := range users {
		eg.Go(func() error {
			p.pollUser(ctx, user)
			return nil
		})
	}

	return eg.Wait()
}

func (p *Poller) pollUser(ctx context.Context, user *model.User) {
	logger := logging.Default().With("user", user.ID)

	// A fresh extension push owns the status; polling Spotify would
	// fight it. No write here, so the user re-enters the batch once
	// the push goes stale.
	if user.LastSource == types.SourceYouTubeMusic &&
		!user.LastPolledAt.IsZero() &&
		time.Since(user.LastPolledAt) < extensionFreshness {
		return
	}

	// Extension-only users have nothing to poll; their status belongs to
	// the extension pushes alone, even between pushes
	if !user.SpotifyConnected() {
		return
	}

	state, err := p.source.GetPlayback(ctx, user)
	if err != nil {
		logger.Warn("playback poll failed", "error", err.Error())
		p.recordFailure(ctx, user)
		return
	}

	var track *model.Track
	var isPlaying bool
	if state != nil {
		track = state.Track
		isPlaying = state.IsPlaying
	}

	trackID := ""
	if track != nil {
		trackID = track.ID
	}

	// Push to Slack only when the observed state differs from the last
	// successfully pushed snapshot
	if trackID != user.LastTrackID || isPlaying != user.IsCurrentlyPlaying {
		if err := p.status.SetUserStatus(ctx, user, track, isPlaying); err != nil {
			logger.Warn("status push failed", "error", err.Error())
			p.recordFailure(ctx, user)
			return
		}
	}

	update := model.SnapshotUpdate(types.SourceSpotify, track, isPlaying, time.Now())
	if err := p.repo.User().Update(ctx, user.ID, update); err != nil {
		errutil.Handle(ctx, err, "failed to persist playback snapshot")
	}
}

// recordFailure bumps the consecutive error counter. Crossing the ceiling
// parks the user and clears any lingering status once, best effort.
func (p *Poller) recordFailure(ctx context.Context, user *model.User) {
	now := time.Now()
	count := user.PollErrorCount + 1

	update := &model.UserUpdate{
		PollErrorCount: &count,
		LastPolledAt:   &now,
	}
	if err := p.repo.User().Update(ctx, user.ID, update); err != nil {
		errutil.Handle(ctx, err, "failed to record poll failure")
		return
	}

	if count == p.maxErrors {
		logging.Default().Warn("user parked after repeated poll failures",
			"user", user.ID, "errors", count)
		if err := p.status.ClearUserStatus(ctx, user); err != nil {
			errutil.Handle(ctx, err, "failed to clear status for parked user")
		}
	}
}

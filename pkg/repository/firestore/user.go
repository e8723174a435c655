package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userRepository struct {
	client *firestore.Client
}

func newUserRepository(client *firestore.Client) *userRepository {
	return &userRepository{client: client}
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID")
	}

	doc, err := r.client.Collection(usersCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	var user model.User
	if err := doc.DataTo(&user); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("id", id))
	}

	return &user, nil
}

func (r *userRepository) GetByExtensionTokenHash(ctx context.Context, hash string) (*model.User, error) {
	if hash == "" {
		return nil, goerr.Wrap(ErrNotFound, "user not found")
	}

	iter := r.client.Collection(usersCollection).
		Where("extension_token_hash", "==", hash).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query user by extension token")
	}

	var user model.User
	if err := doc.DataTo(&user); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user")
	}

	return &user, nil
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	docRef := r.client.Collection(usersCollection).Doc(user.ID.String())
	if _, err := docRef.Set(ctx, user); err != nil {
		return goerr.Wrap(err, "failed to put user", goerr.V("id", user.ID))
	}

	return nil
}

func (r *userRepository) Update(ctx context.Context, id types.UserID, update *model.UserUpdate) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID")
	}

	updates := buildUserUpdates(update)
	if len(updates) == 0 {
		return nil
	}

	docRef := r.client.Collection(usersCollection).Doc(id.String())
	if _, err := docRef.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update user", goerr.V("id", id))
	}

	return nil
}

// buildUserUpdates translates a partial update into firestore field paths.
// Only named fields are written, so concurrent updates to disjoint fields
// never conflict.
func buildUserUpdates(update *model.UserUpdate) []firestore.Update {
	var updates []firestore.Update

	add := func(path string, value any) {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	if update.SlackAccessToken != nil {
		add("slack_access_token", *update.SlackAccessToken)
	}
	if update.SpotifyAccessToken != nil {
		add("spotify_access_token", *update.SpotifyAccessToken)
	}
	if update.SpotifyRefreshToken != nil {
		add("spotify_refresh_token", *update.SpotifyRefreshToken)
	}
	if update.SpotifyExpiresAt != nil {
		add("spotify_expires_at", *update.SpotifyExpiresAt)
	}
	if update.ExtensionTokenHash != nil {
		add("extension_token_hash", *update.ExtensionTokenHash)
	}
	if update.SharingEnabled != nil {
		add("sharing_enabled", *update.SharingEnabled)
	}
	if update.LastSource != nil {
		add("last_source", update.LastSource.String())
	}
	if update.LastTrackID != nil {
		add("last_track_id", *update.LastTrackID)
	}
	if update.LastTrackName != nil {
		add("last_track_name", *update.LastTrackName)
	}
	if update.LastArtistName != nil {
		add("last_artist_name", *update.LastArtistName)
	}
	if update.IsCurrentlyPlaying != nil {
		add("is_currently_playing", *update.IsCurrentlyPlaying)
	}
	if update.LastPolledAt != nil {
		add("last_polled_at", *update.LastPolledAt)
	}
	if update.PollErrorCount != nil {
		add("poll_error_count", *update.PollErrorCount)
	}

	return updates
}

func (r *userRepository) ListPollable(ctx context.Context, polledBefore time.Time, maxErrorCount, limit int) ([]*model.User, error) {
	// The lastPolledAt freshness filter is applied client side: Firestore
	// cannot express "< cutoff OR missing" in a single query, and the
	// candidate set (sharing enabled, below the error ceiling) stays small.
	iter := r.client.Collection(usersCollection).
		Where("sharing_enabled", "==", true).
		Where("poll_error_count", "<", maxErrorCount).
		Documents(ctx)
	defer iter.Stop()

	var result []*model.User
	for len(result) < limit {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate pollable users")
		}

		var user model.User
		if err := doc.DataTo(&user); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal user")
		}

		if !user.LastPolledAt.IsZero() && !user.LastPolledAt.Before(polledBefore) {
			continue
		}

		result = append(result, &user)
	}

	return result, nil
}

func (r *userRepository) DeleteByWorkspace(ctx context.Context, id types.WorkspaceID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid workspace ID")
	}

	iter := r.client.Collection(usersCollection).
		Where("workspace_id", "==", id.String()).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate workspace users", goerr.V("workspace", id))
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete user", goerr.V("workspace", id))
		}
	}

	return nil
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/secmon-lab/vibes/pkg/domain/interfaces"
	"github.com/secmon-lab/vibes/pkg/domain/model/auth"
)

func runAuthRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Run("PutToken and GetToken", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		token := auth.NewToken("U123", "T123")

		if err := repo.PutToken(ctx, token); err != nil {
			t.Fatalf("PutToken failed: %v", err)
		}

		retrieved, err := repo.GetToken(ctx, token.ID)
		if err != nil {
			t.Fatalf("GetToken failed: %v", err)
		}

		if retrieved.ID != token.ID {
			t.Errorf("ID mismatch: got %v, want %v", retrieved.ID, token.ID)
		}
		if retrieved.Secret != token.Secret {
			t.Errorf("Secret mismatch: got %v, want %v", retrieved.Secret, token.Secret)
		}
		if retrieved.Sub != token.Sub {
			t.Errorf("Sub mismatch: got %v, want %v", retrieved.Sub, token.Sub)
		}
		if retrieved.Workspace != token.Workspace {
			t.Errorf("Workspace mismatch: got %v, want %v", retrieved.Workspace, token.Workspace)
		}

		// Compare timestamps with tolerance for Firestore precision
		if diff := retrieved.ExpiresAt.Sub(token.ExpiresAt); diff > time.Second || diff < -time.Second {
			t.Errorf("ExpiresAt mismatch: got %v, want %v, diff %v", retrieved.ExpiresAt, token.ExpiresAt, diff)
		}
	})

	t.Run("GetToken not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetToken(ctx, auth.NewTokenID())
		if err == nil {
			t.Fatal("Expected error for non-existent token, got nil")
		}
		if !isNotFound(err) {
			t.Errorf("Expected NotFound error, got: %v", err)
		}
	})

	t.Run("DeleteToken", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		token := auth.NewToken("U456", "T456")

		if err := repo.PutToken(ctx, token); err != nil {
			t.Fatalf("PutToken failed: %v", err)
		}
		if err := repo.DeleteToken(ctx, token.ID); err != nil {
			t.Fatalf("DeleteToken failed: %v", err)
		}

		_, err := repo.GetToken(ctx, token.ID)
		if err == nil {
			t.Fatal("Expected error after deletion, got nil")
		}
		if !isNotFound(err) {
			t.Errorf("Expected NotFound error after deletion, got: %v", err)
		}
	})

	t.Run("DeleteToken not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		err := repo.DeleteToken(ctx, auth.NewTokenID())
		if err == nil {
			t.Fatal("Expected error for deleting non-existent token, got nil")
		}
		if !isNotFound(err) {
			t.Errorf("Expected NotFound error, got: %v", err)
		}
	})

	t.Run("DeleteTokensByWorkspace removes only that workspace's sessions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		doomed1 := auth.NewToken("U1", "T777")
		doomed2 := auth.NewToken("U2", "T777")
		survivor := auth.NewToken("U3", "T888")
		for _, token := range []*auth.Token{doomed1, doomed2, survivor} {
			if err := repo.PutToken(ctx, token); err != nil {
				t.Fatalf("PutToken failed: %v", err)
			}
		}

		if err := repo.DeleteTokensByWorkspace(ctx, "T777"); err != nil {
			t.Fatalf("DeleteTokensByWorkspace failed: %v", err)
		}

		for _, tokenID := range []auth.TokenID{doomed1.ID, doomed2.ID} {
			if _, err := repo.GetToken(ctx, tokenID); !isNotFound(err) {
				t.Errorf("Expected NotFound for deleted session, got: %v", err)
			}
		}

		if _, err := repo.GetToken(ctx, survivor.ID); err != nil {
			t.Errorf("Session of another workspace must survive: %v", err)
		}
	})

	t.Run("Token validation on Put", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		invalidToken := &auth.Token{
			ID:        auth.NewTokenID(),
			Secret:    auth.NewTokenSecret(),
			Sub:       "", // Invalid: empty
			Workspace: "T123",
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		}

		if err := repo.PutToken(ctx, invalidToken); err == nil {
			t.Fatal("Expected validation error for invalid token, got nil")
		}
	})
}

func TestMemoryAuthRepository(t *testing.T) {
	runAuthRepositoryTest(t, newMemoryRepo)
}

func TestFirestoreAuthRepository(t *testing.T) {
	runAuthRepositoryTest(t, newFirestoreRepo)
}

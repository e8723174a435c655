package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model/auth"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

// CreateSession issues a new dashboard session for the Slack user
func (uc *UseCases) CreateSession(ctx context.Context, userID types.UserID, workspaceID types.WorkspaceID) (*auth.Token, error) {
	token := auth.NewToken(userID, workspaceID)
	if err := uc.repo.PutToken(ctx, token); err != nil {
		return nil, goerr.Wrap(err, "failed to store session token")
	}
	return token, nil
}

// ValidateToken resolves a cookie pair to a live session. Expired sessions
// are deleted on sight.
func (uc *UseCases) ValidateToken(ctx context.Context, tokenID auth.TokenID, secret auth.TokenSecret) (*auth.Token, error) {
	token, err := uc.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session token")
	}

	if !token.VerifySecret(secret) {
		return nil, goerr.New("invalid session secret", goerr.V("tokenID", tokenID))
	}

	if token.IsExpired(time.Now()) {
		_ = uc.repo.DeleteToken(ctx, tokenID)
		return nil, goerr.New("session expired", goerr.V("tokenID", tokenID))
	}

	return token, nil
}

// Logout deletes the session token
func (uc *UseCases) Logout(ctx context.Context, tokenID auth.TokenID) error {
	return uc.repo.DeleteToken(ctx, tokenID)
}

package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/types"
)

// TokenExpireDuration is the dashboard session lifetime
const TokenExpireDuration = 24 * time.Hour

type TokenID string

func NewTokenID() TokenID {
	return TokenID(uuid.NewString())
}

func (x TokenID) Validate() error {
	if x == "" {
		return goerr.New("token ID cannot be empty")
	}
	return nil
}

func (x TokenID) String() string {
	return string(x)
}

type TokenSecret string

func NewTokenSecret() TokenSecret {
	return TokenSecret(uuid.NewString())
}

func (x TokenSecret) Validate() error {
	if x == "" {
		return goerr.New("token secret cannot be empty")
	}
	return nil
}

func (x TokenSecret) String() string {
	return string(x)
}

// Token is a server-side dashboard session. The ID/secret pair travels in
// cookies; the session resolves to the Slack user that installed the app.
type Token struct {
	ID        TokenID           `firestore:"id" json:"id"`
	Secret    TokenSecret       `firestore:"secret" json:"secret" masq:"secret"`
	Sub       types.UserID      `firestore:"sub" json:"sub"`
	Workspace types.WorkspaceID `firestore:"workspace" json:"workspace"`
	ExpiresAt time.Time         `firestore:"expires_at" json:"expires_at"`
	CreatedAt time.Time         `firestore:"created_at" json:"created_at"`
}

// NewToken creates a session for the given Slack user
func NewToken(sub types.UserID, workspace types.WorkspaceID) *Token {
	now := time.Now()
	return &Token{
		ID:        NewTokenID(),
		Secret:    NewTokenSecret(),
		Sub:       sub,
		Workspace: workspace,
		ExpiresAt: now.Add(TokenExpireDuration),
		CreatedAt: now,
	}
}

func (x *Token) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return err
	}
	if err := x.Secret.Validate(); err != nil {
		return err
	}
	if err := x.Sub.Validate(); err != nil {
		return goerr.Wrap(err, "token must have a subject")
	}
	return nil
}

// VerifySecret compares the given secret in constant time
func (x *Token) VerifySecret(secret TokenSecret) bool {
	return subtle.ConstantTimeCompare([]byte(x.Secret), []byte(secret)) == 1
}

// IsExpired reports whether the session has passed its expiry
func (x *Token) IsExpired(now time.Time) bool {
	return now.After(x.ExpiresAt)
}

type ctxTokenKey struct{}

// ContextWithToken embeds the authenticated session into ctx
func ContextWithToken(ctx context.Context, token *Token) context.Context {
	return context.WithValue(ctx, ctxTokenKey{}, token)
}

// TokenFromContext retrieves the authenticated session, if any
func TokenFromContext(ctx context.Context) (*Token, bool) {
	token, ok := ctx.Value(ctxTokenKey{}).(*Token)
	return token, ok
}

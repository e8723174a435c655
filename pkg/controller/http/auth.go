package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model/auth"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/secmon-lab/vibes/pkg/utils/errutil"
)

const (
	cookieTokenID     = "token_id"
	cookieTokenSecret = "token_secret"
)

func setSessionCookies(w http.ResponseWriter, r *http.Request, token *auth.Token) {
	secure := r.TLS != nil
	http.SetCookie(w, &http.Cookie{
		Name:     cookieTokenID,
		Value:    token.ID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.TokenExpireDuration.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     cookieTokenSecret,
		Value:    token.Secret.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.TokenExpireDuration.Seconds()),
	})
}

func clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{cookieTokenID, cookieTokenSecret} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

// slackAuthHandler drives the install flow. Without a code it redirects to
// the Slack authorize page; with one it completes the install and opens a
// dashboard session.
func slackAuthHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		code := r.URL.Query().Get("code")

		if code == "" {
			authURL, err := uc.SlackAuthorizeURL()
			if err != nil {
				errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
			return
		}

		if !uc.VerifyInstallState(r.URL.Query().Get("state")) {
			errutil.HandleHTTP(ctx, w, goerr.New("invalid state parameter"), http.StatusBadRequest)
			return
		}

		token, err := uc.HandleSlackCallback(ctx, code)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		setSessionCookies(w, r, token)
		http.Redirect(w, r, "/dashboard?installed=true", http.StatusTemporaryRedirect)
	}
}

// spotifyStartHandler redirects to the Spotify authorize page. The user is
// identified by a signed state parameter (links from Slack surfaces) or by
// the dashboard session.
func spotifyStartHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := resolveStartUser(r, uc)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusUnauthorized)
			return
		}

		connectURL, err := uc.SpotifyConnectURL(ctx, userID)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, connectURL, http.StatusTemporaryRedirect)
	}
}

func resolveStartUser(r *http.Request, uc *usecase.UseCases) (types.UserID, error) {
	if state := r.URL.Query().Get("state"); state != "" {
		userID, err := uc.VerifyConnectState(state)
		if err != nil {
			return "", err
		}
		return userID, nil
	}

	idCookie, err := r.Cookie(cookieTokenID)
	if err != nil {
		return "", goerr.New("authentication required")
	}
	secretCookie, err := r.Cookie(cookieTokenSecret)
	if err != nil {
		return "", goerr.New("authentication required")
	}

	token, err := uc.ValidateToken(r.Context(),
		auth.TokenID(idCookie.Value), auth.TokenSecret(secretCookie.Value))
	if err != nil {
		return "", goerr.Wrap(err, "invalid session")
	}

	return token.Sub, nil
}

// spotifyCallbackHandler completes the connect flow
func spotifyCallbackHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			errutil.HandleHTTP(ctx, w, goerr.New("spotify authorization denied",
				goerr.V("error", errParam)), http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errutil.HandleHTTP(ctx, w, goerr.New("missing authorization code"), http.StatusBadRequest)
			return
		}

		if err := uc.HandleSpotifyCallback(ctx, r.URL.Query().Get("state"), code); err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		http.Redirect(w, r, "/dashboard?spotify=connected", http.StatusTemporaryRedirect)
	}
}

func logoutHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := auth.TokenFromContext(ctx)
		if ok {
			if err := uc.Logout(ctx, token.ID); err != nil {
				errutil.Handle(ctx, err, "failed to delete session")
			}
		}

		clearSessionCookies(w, r)
		writeJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
	}
}

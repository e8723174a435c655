package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/types"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/secmon-lab/vibes/pkg/utils/async"
	"github.com/secmon-lab/vibes/pkg/utils/errutil"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// slackSignatureSkew bounds clock drift and replay in either direction
const slackSignatureSkew = 5 * time.Minute

// verifySlackSignature verifies the Slack request signature.
// This is a pure function that can be used independently for testing.
func verifySlackSignature(signingSecret, timestamp, signature string, body []byte) error {
	if timestamp == "" {
		return goerr.New("missing timestamp")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp")
	}

	now := time.Now().Unix()
	drift := now - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(slackSignatureSkew.Seconds()) {
		return goerr.New("timestamp outside allowed window",
			goerr.V("timestamp", timestamp), goerr.V("now", now))
	}

	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte(baseString))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	// Burn a comparison even on length mismatch so rejection time does
	// not depend on the input shape
	if len(signature) != len(expected) {
		_ = hmac.Equal([]byte(expected), []byte(expected))
		return goerr.New("signature mismatch")
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return goerr.New("signature mismatch")
	}

	return nil
}

// SlackSignatureMiddleware verifies Slack request signatures and restores
// the body for downstream handlers
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")

			if err := verifySlackSignature(signingSecret, timestamp, signature, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewBuffer(body))
			next.ServeHTTP(w, r)
		})
	}
}

// slackEventHandler handles Events API callbacks
func slackEventHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
			return
		}

		event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
			return
		}

		switch event.Type {
		case slackevents.URLVerification:
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(challenge.Challenge))

		case slackevents.CallbackEvent:
			// Respond within Slack's 3 second window; process async
			w.WriteHeader(http.StatusOK)

			workspaceID := types.WorkspaceID(event.TeamID)
			async.Dispatch(ctx, func(ctx context.Context) error {
				return handleCallbackEvent(ctx, uc, workspaceID, &event)
			})

		default:
			logging.From(ctx).Warn("unknown slack event type", "type", event.Type)
			w.WriteHeader(http.StatusOK)
		}
	}
}

func handleCallbackEvent(ctx context.Context, uc *usecase.UseCases, workspaceID types.WorkspaceID, event *slackevents.EventsAPIEvent) error {
	switch inner := event.InnerEvent.Data.(type) {
	case *slackevents.AppHomeOpenedEvent:
		return uc.HandleAppHomeOpened(ctx, workspaceID, types.UserID(inner.User))

	case *slackevents.AppUninstalledEvent:
		return uc.UninstallWorkspace(ctx, workspaceID)

	default:
		logging.From(ctx).Info("ignoring slack event", "type", event.InnerEvent.Type)
		return nil
	}
}

// slackCommandHandler handles the /vibes slash command
func slackCommandHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cmd, err := slack.SlashCommandParse(r)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slash command"), http.StatusBadRequest)
			return
		}

		text, err := uc.HandleSlashCommand(ctx, cmd)
		if err != nil {
			errutil.Handle(ctx, err, "slash command failed")
			text = "Something went wrong. Please try again."
		}

		writeJSON(ctx, w, http.StatusOK, map[string]string{
			"response_type": "ephemeral",
			"text":          text,
		})
	}
}

// slackInteractionHandler handles App Home button clicks
func slackInteractionHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Slack sends interaction payloads as application/x-www-form-urlencoded
		// with a "payload" field containing JSON
		payload := r.FormValue("payload")
		if payload == "" {
			errutil.HandleHTTP(ctx, w, goerr.New("missing interaction payload"), http.StatusBadRequest)
			return
		}

		var callback slack.InteractionCallback
		if err := json.Unmarshal([]byte(payload), &callback); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse interaction payload"), http.StatusBadRequest)
			return
		}

		// Ack immediately; the trigger ID stays valid for the modal
		w.WriteHeader(http.StatusOK)

		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.HandleInteraction(ctx, &callback)
		})
	}
}

package slack

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/slack-go/slack"
)

const (
	// Action IDs referenced by the interaction handler
	ActionPauseSharing      = "pause_sharing"
	ActionResumeSharing     = "resume_sharing"
	ActionGetExtensionToken = "get_extension_token"
)

func (c *client) PublishAppHome(ctx context.Context, ws *model.Workspace, user *model.User, connectURL string) error {
	api, err := c.botAPI(ws)
	if err != nil {
		return err
	}

	view := slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: buildHomeBlocks(user, connectURL)},
	}

	if _, err := api.PublishViewContext(ctx, user.ID.String(), view, ""); err != nil {
		return goerr.Wrap(err, "failed to publish app home", goerr.V("user", user.ID))
	}

	return nil
}

func buildHomeBlocks(user *model.User, connectURL string) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, "Vibes", false, false)),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				"Share what you are listening to as your Slack status.", false, false),
			nil, nil),
		slack.NewDividerBlock(),
	}

	if !user.SpotifyConnected() && connectURL != "" {
		blocks = append(blocks,
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType,
					"*Spotify is not connected yet.*", false, false),
				nil,
				slack.NewAccessory(linkButton("Connect Spotify", connectURL))),
		)
	} else {
		blocks = append(blocks, nowPlayingBlock(user))
	}

	blocks = append(blocks,
		slack.NewDividerBlock(),
		slack.NewActionBlock("vibes_actions", homeActions(user)...),
	)

	return blocks
}

func nowPlayingBlock(user *model.User) slack.Block {
	var text string
	switch {
	case !user.SharingEnabled:
		text = "Sharing is *paused*. Your status is untouched."
	case user.IsCurrentlyPlaying && user.LastTrackName != "":
		text = fmt.Sprintf(":headphones: Now playing: *%s* by %s",
			user.LastTrackName, user.LastArtistName)
	default:
		text = "Nothing playing right now."
	}

	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
		nil, nil)
}

func homeActions(user *model.User) []slack.BlockElement {
	var elements []slack.BlockElement

	if user.SharingEnabled {
		elements = append(elements, slack.NewButtonBlockElement(
			ActionPauseSharing, "pause",
			slack.NewTextBlockObject(slack.PlainTextType, "Pause sharing", false, false)))
	} else {
		btn := slack.NewButtonBlockElement(
			ActionResumeSharing, "resume",
			slack.NewTextBlockObject(slack.PlainTextType, "Resume sharing", false, false))
		btn.Style = slack.StylePrimary
		elements = append(elements, btn)
	}

	elements = append(elements, slack.NewButtonBlockElement(
		ActionGetExtensionToken, "token",
		slack.NewTextBlockObject(slack.PlainTextType, "Get extension token", false, false)))

	return elements
}

func linkButton(label, url string) *slack.ButtonBlockElement {
	btn := slack.NewButtonBlockElement("", "",
		slack.NewTextBlockObject(slack.PlainTextType, label, false, false))
	btn.URL = url
	btn.Style = slack.StylePrimary
	return btn
}

func (c *client) OpenTokenModal(ctx context.Context, ws *model.Workspace, triggerID, token string) error {
	api, err := c.botAPI(ws)
	if err != nil {
		return err
	}

	view := slack.ModalViewRequest{
		Type:  slack.VTModal,
		Title: slack.NewTextBlockObject(slack.PlainTextType, "Extension Token", false, false),
		Close: slack.NewTextBlockObject(slack.PlainTextType, "Done", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType,
					fmt.Sprintf("`%s`", token), false, false),
				nil, nil),
			slack.NewContextBlock("token_note",
				slack.NewTextBlockObject(slack.MarkdownType,
					"Paste this token into the browser extension settings. It is shown only once; requesting a new one revokes it.", false, false)),
		}},
	}

	if _, err := api.OpenViewContext(ctx, triggerID, view); err != nil {
		return goerr.Wrap(err, "failed to open token modal")
	}

	return nil
}

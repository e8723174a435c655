package slack

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vibes/pkg/domain/model"
	"github.com/secmon-lab/vibes/pkg/service/crypto"
	"github.com/slack-go/slack"
)

// client implements Service interface
type client struct {
	crypto     *crypto.Service
	apiURL     string
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithAPIURL overrides the Slack API base URL, used for testing
func WithAPIURL(url string) Option {
	return func(c *client) {
		c.apiURL = url
	}
}

// WithHTTPClient overrides the HTTP client used for Slack API calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// New creates a new Slack service. Tokens are passed per call because each
// user and workspace carries its own credential.
func New(cryptoSvc *crypto.Service, opts ...Option) (Service, error) {
	if cryptoSvc == nil {
		return nil, goerr.New("crypto service is required")
	}

	c := &client{crypto: cryptoSvc}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// api builds a per-token API client
func (c *client) api(token string) *slack.Client {
	var opts []slack.Option
	if c.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(c.apiURL))
	}
	if c.httpClient != nil {
		opts = append(opts, slack.OptionHTTPClient(c.httpClient))
	}
	return slack.New(token, opts...)
}

// userAPI decrypts the user's token and builds an API client for it
func (c *client) userAPI(user *model.User) (*slack.Client, error) {
	token, err := c.crypto.Decrypt(user.SlackAccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decrypt user token", goerr.V("user", user.ID))
	}
	return c.api(token), nil
}

// botAPI decrypts the workspace bot token and builds an API client for it
func (c *client) botAPI(ws *model.Workspace) (*slack.Client, error) {
	token, err := c.crypto.Decrypt(ws.BotAccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decrypt bot token", goerr.V("workspace", ws.ID))
	}
	return c.api(token), nil
}

package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Intents declares the Gateway Intents the relay requires: DMs with their content,
// and guilds for guild and channel events. Channel lookups still go over REST.
const Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuilds

// session abstracts the discordgo.Session methods used by Client.
// *discordgo.Session satisfies this interface.
type session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

var _ session = (*discordgo.Session)(nil)

// Client exposes the platform operations the relay and dispatcher need.
type Client struct {
	session    session
	httpClient *http.Client
	maxBytes   int64
}

// ClientOption defines a function signature for Client's functional options.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used to download attachments.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithMaxAttachmentBytes caps the size of a single downloaded attachment.
func WithMaxAttachmentBytes(n int64) ClientOption {
	return func(client *Client) {
		client.maxBytes = n
	}
}

// NewClient wraps an open discordgo session. Attachments are downloaded with
// the session's own HTTP client unless WithHTTPClient is given.
func NewClient(s *discordgo.Session, options ...ClientOption) *Client {
	c := newClient(s, options...)
	if c.httpClient == nil && s.Client != nil {
		c.httpClient = s.Client
	}
	return c
}

func newClient(s session, options ...ClientOption) *Client {
	c := &Client{
		session:  s,
		maxBytes: 25 << 20,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// SendDirectMessage opens (or reuses) the DM channel with userID and sends msg there.
func (c *Client) SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	channel, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open DM channel with %s: %w", userID, err)
	}
	return c.session.ChannelMessageSendComplex(channel.ID, msg, discordgo.WithContext(ctx))
}

// PostToChannel sends msg to channelID.
func (c *Client) PostToChannel(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	return c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
}

// EditMessage replaces the content and components of an existing message.
func (c *Client) EditMessage(ctx context.Context, edit *discordgo.MessageEdit) error {
	_, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

// RespondInteraction answers a component interaction.
func (c *Client) RespondInteraction(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return c.session.InteractionRespond(i, resp, discordgo.WithContext(ctx))
}

// EditInteractionResponse edits the message produced by an earlier RespondInteraction.
func (c *Client) EditInteractionResponse(ctx context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	_, err := c.session.InteractionResponseEdit(i, edit, discordgo.WithContext(ctx))
	return err
}

// Channel fetches a channel over REST.
func (c *Client) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	return c.session.Channel(channelID, discordgo.WithContext(ctx))
}

// FetchAttachment downloads the bytes behind an attachment URL.
func (c *Client) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrAttachmentTooLarge
	}
	return data, nil
}

// IsForbidden reports whether err is a REST error caused by missing permissions.
func IsForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusForbidden
}

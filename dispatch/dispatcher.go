package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/model"
	"github.com/oklahomer/go-kasumi/logger"
)

const alertTimeout = 30 * time.Second

// Poster is the subset of the platform client the dispatcher writes through.
type Poster interface {
	PostToChannel(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	FetchAttachment(ctx context.Context, url string) ([]byte, error)
}

// Counter hands out sequential submission numbers.
type Counter interface {
	NextSubmissionNumber(ctx context.Context) (int, error)
}

// Config names the channels the dispatcher writes to.
type Config struct {
	AnonymousChannelID   string
	AnonymousChannelName string
	GuildID              string
	ModLogChannelID      string
	// ModAlertChannelID receives alerts when the moderator log cannot be written.
	// When empty, AlertUserIDs are alerted by DM instead.
	ModAlertChannelID string
	AlertUserIDs      []string
}

// Option defines a function signature for Dispatcher's functional options.
type Option func(*Dispatcher)

// WithCounter numbers every published submission.
func WithCounter(counter Counter) Option {
	return func(d *Dispatcher) {
		d.counter = counter
	}
}

// Dispatcher performs the public post and the moderator log of a confirmed submission.
type Dispatcher struct {
	poster  Poster
	config  Config
	counter Counter
}

// New creates a Dispatcher.
func New(poster Poster, config Config, options ...Option) *Dispatcher {
	d := &Dispatcher{
		poster: poster,
		config: config,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// ChannelName returns the display name of the anonymous channel.
func (d *Dispatcher) ChannelName() string {
	if d.config.AnonymousChannelName != "" {
		return d.config.AnonymousChannelName
	}
	return d.config.AnonymousChannelID
}

// Publish posts the submission to the anonymous channel without any author metadata.
// Attachments that cannot be read are skipped and the author is told which ones.
func (d *Dispatcher) Publish(ctx context.Context, sub *model.Submission) (*model.Receipt, error) {
	files := d.collectFiles(ctx, sub)
	if !sub.HasContent() && len(files) == 0 {
		return nil, ErrNothingToPublish
	}

	number := 0
	if d.counter != nil {
		n, err := d.counter.NextSubmissionNumber(ctx)
		if err != nil {
			logger.Warnf("Failed to get submission number for %s: %+v", sub.Handle, err)
		} else {
			number = n
		}
	}

	msg, err := d.poster.PostToChannel(ctx, d.config.AnonymousChannelID, BuildAnonymousMessage(sub, number, files))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	receipt := &model.Receipt{
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		ChannelName: d.ChannelName(),
		MessageID:   msg.ID,
		Number:      number,
	}
	if receipt.GuildID == "" {
		receipt.GuildID = d.config.GuildID
	}
	if receipt.ChannelID == "" {
		receipt.ChannelID = d.config.AnonymousChannelID
	}
	return receipt, nil
}

func (d *Dispatcher) collectFiles(ctx context.Context, sub *model.Submission) []*discordgo.File {
	var files []*discordgo.File
	for _, attachment := range sub.Attachments {
		data := attachment.Data
		if len(data) == 0 {
			var err error
			data, err = d.poster.FetchAttachment(ctx, attachment.URL)
			if err != nil {
				logger.Errorf("Failed to read attachment '%s' from user %s: %+v", attachment.Filename, sub.Author.ID, err)
				d.notifySkippedAttachment(ctx, sub.Author.ID, attachment.Filename)
				continue
			}
		}

		files = append(files, &discordgo.File{
			Name:        attachment.Filename,
			ContentType: attachment.ContentType,
			Reader:      bytes.NewReader(data),
		})
	}
	return files
}

func (d *Dispatcher) notifySkippedAttachment(ctx context.Context, userID, filename string) {
	text := fmt.Sprintf("Sorry, I couldn't process the attachment: %s. It will be skipped.", filename)
	if _, err := d.poster.SendDirectMessage(ctx, userID, &discordgo.MessageSend{Content: text}); err != nil {
		logger.Warnf("Failed to tell user %s about skipped attachment: %+v", userID, err)
	}
}

// Log writes the full record of a published submission to the moderator channel.
// A failed write is retried once; if that fails too, moderators are alerted through
// the fallback path. The published post is never rolled back.
func (d *Dispatcher) Log(ctx context.Context, sub *model.Submission, receipt *model.Receipt) error {
	msg := BuildModLogMessage(sub, receipt)

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		if _, err = d.poster.PostToChannel(ctx, d.config.ModLogChannelID, msg); err == nil {
			return nil
		}
		logger.Warnf("Failed to write mod log for %s (attempt %d/2): %+v", sub.Handle, attempt, err)
	}

	d.alert(ctx, BuildLogFailureAlert(sub, receipt, err))
	return fmt.Errorf("%w: %w", ErrLogFailed, err)
}

// alert does not inherit the deadline of the log attempts.
func (d *Dispatcher) alert(parent context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), alertTimeout)
	defer cancel()

	msg := &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: noMentions(),
	}

	if d.config.ModAlertChannelID != "" {
		_, err := d.poster.PostToChannel(ctx, d.config.ModAlertChannelID, msg)
		if err == nil {
			return
		}
		logger.Errorf("Failed to post alert to channel %s: %+v", d.config.ModAlertChannelID, err)
	}

	delivered := false
	for _, userID := range d.config.AlertUserIDs {
		if _, err := d.poster.SendDirectMessage(ctx, userID, msg); err != nil {
			logger.Errorf("Failed to alert user %s: %+v", userID, err)
			continue
		}
		delivered = true
	}

	if !delivered {
		logger.Errorf("Unlogged anonymous post, no alert path available: %s", text)
	}
}

package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/model"
	"github.com/marbel89/chantbot/platform"
)

const (
	colorAnonymous = 0x3498db // blue
	colorModLog    = 0xe67e22 // orange

	maxFieldValue = 1024
	maxEmbedDesc  = 4096
)

func noMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
}

// BuildAnonymousMessage constructs the public post. It carries no author metadata.
func BuildAnonymousMessage(sub *model.Submission, number int, files []*discordgo.File) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Files:           files,
		AllowedMentions: noMentions(),
	}

	if sub.HasContent() {
		embed := &discordgo.MessageEmbed{
			Description: truncate(sub.Content, maxEmbedDesc),
			Color:       colorAnonymous,
		}
		if number > 0 {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Anonymous submission #%d", number)}
		}
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	} else if number > 0 {
		msg.Content = fmt.Sprintf("-# Anonymous submission #%d", number)
	}

	return msg
}

// BuildModLogMessage constructs the moderator record of a published submission.
func BuildModLogMessage(sub *model.Submission, receipt *model.Receipt) *discordgo.MessageSend {
	title := "Anonymous Post Logged"
	if receipt != nil && receipt.Number > 0 {
		title = fmt.Sprintf("Anonymous Post #%d Logged", receipt.Number)
	}

	content := "*(No text content)*"
	if sub.HasContent() {
		// a DM always fits the description
		content = truncate(sub.Content, maxEmbedDesc)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: content,
		Color:       colorModLog,
		Timestamp:   sub.CreatedAt.Format(time.RFC3339),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    fmt.Sprintf("%s (ID: %s)", authorName(sub.Author), sub.Author.ID),
			IconURL: sub.Author.AvatarURL,
		},
	}

	if len(sub.Attachments) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Original Attachments",
			Value: truncate(attachmentLinks(sub.Attachments), maxFieldValue),
		})
	}

	if receipt != nil && receipt.MessageID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Posted Message",
			Value: fmt.Sprintf("[Jump to Message](%s) in #%s", receipt.JumpURL(), receipt.ChannelName),
		})
	} else {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Posted message link unavailable"}
	}

	return &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: noMentions(),
	}
}

// BuildLogFailureAlert is the plain-text fallback sent when the moderator log could not be written.
func BuildLogFailureAlert(sub *model.Submission, receipt *model.Receipt, cause error) string {
	var b strings.Builder
	b.WriteString("⚠️ An anonymous post was published but could not be written to the moderator log.\n")
	fmt.Fprintf(&b, "Author: %s (ID: %s)\n", authorName(sub.Author), sub.Author.ID)
	fmt.Fprintf(&b, "Sent at: %s\n", sub.CreatedAt.Format(time.RFC3339))
	if receipt != nil {
		fmt.Fprintf(&b, "Posted message: %s\n", receipt.JumpURL())
	}
	if len(sub.Attachments) > 0 {
		fmt.Fprintf(&b, "Attachments: %d\n", len(sub.Attachments))
	}
	if cause != nil {
		fmt.Fprintf(&b, "Error: %v", cause)
	}
	return b.String()
}

// SuccessText is shown to the author once the post is public.
func SuccessText(channelName string) string {
	return fmt.Sprintf("Your message has been posted anonymously to #%s!", channelName)
}

// FailureText maps a Publish error to the text shown to the author.
func FailureText(err error) string {
	switch {
	case errors.Is(err, ErrNothingToPublish):
		return "Your message was empty or attachments could not be processed. Nothing was posted."
	case platform.IsForbidden(err):
		return "Failed to post. Bot permission error in the anonymous channel. Admin notified."
	case errors.Is(err, ErrPublishFailed):
		return "Failed to post. A network error occurred. Please try again."
	default:
		return "Failed to post due to an unexpected error. Admin has been notified."
	}
}

func attachmentLinks(attachments []model.Attachment) string {
	lines := make([]string, 0, len(attachments))
	for i, a := range attachments {
		if a.URL == "" {
			lines = append(lines, fmt.Sprintf("Attachment %d (`%s`)", i+1, a.Filename))
			continue
		}
		lines = append(lines, fmt.Sprintf("[Attachment %d](%s) (`%s`)", i+1, a.URL, a.Filename))
	}
	return strings.Join(lines, "\n")
}

func authorName(a model.Author) string {
	if a.Username != "" {
		return a.Username
	}
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return "unknown"
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

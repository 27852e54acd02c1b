package relay

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/model"
	"github.com/oklahomer/go-kasumi/logger"
)

// OnMessageCreate turns a direct message into a DirectMessageReceived event.
// Guild messages and messages from bots are ignored; banned users are told so
// and never get a session.
func (r *Relay) OnMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != "" {
		return
	}

	if r.blocklist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		banned, err := r.blocklist.IsUserBanned(ctx, m.Author.ID)
		cancel()

		if err != nil {
			logger.Errorf("Error checking if user %s is banned: %+v", m.Author.ID, err)
			r.tell(m.Author.ID, textUnavailable)
			return
		}
		if banned {
			logger.Infof("Ignoring DM from banned user %s", m.Author.ID)
			r.tell(m.Author.ID, textBlocked)
			return
		}
	}

	r.emit(messageToEvent(m))
}

// OnComponent turns a prompt button click into an InteractionResponseReceived event.
func (r *Relay) OnComponent(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	ev := InteractionResponseReceived{Interaction: i.Interaction}
	if user := interactionUser(i.Interaction); user != nil {
		ev.UserID = user.ID
	}

	// a malformed ID leaves Handle empty; the loop acknowledges it like a stale click
	if handle, choice, ok := parseCustomID(i.MessageComponentData().CustomID); ok {
		ev.Handle = handle
		ev.Choice = choice
	}

	r.emit(ev)
}

func messageToEvent(m *discordgo.MessageCreate) DirectMessageReceived {
	attachments := make([]model.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, model.Attachment{
			ID:          a.ID,
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	return DirectMessageReceived{
		Author: model.Author{
			ID:          m.Author.ID,
			Username:    m.Author.Username,
			DisplayName: m.Author.GlobalName,
			AvatarURL:   m.Author.AvatarURL(""),
		},
		Content:     m.Content,
		Attachments: attachments,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		SentAt:      m.Timestamp,
	}
}

// interactionUser returns the clicking user; DMs carry User, guilds carry Member.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.User != nil {
		return i.User
	}
	if i.Member != nil {
		return i.Member.User
	}
	return nil
}

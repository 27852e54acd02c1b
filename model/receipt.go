package model

import "fmt"

// Receipt references the anonymous post once it has been published.
type Receipt struct {
	GuildID     string
	ChannelID   string
	ChannelName string
	MessageID   string
	// Number is the sequential submission number, zero when the counter was unavailable.
	Number int
}

// JumpURL returns the message link of the published post.
func (r *Receipt) JumpURL() string {
	guildID := r.GuildID
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, r.ChannelID, r.MessageID)
}

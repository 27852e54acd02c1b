package command

import (
	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/command/def"
)

// AllCommands contains all of the commands
var AllCommands = []*discordgo.ApplicationCommand{
	def.AnonAdminCommand,
}

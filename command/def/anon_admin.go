package def

import (
	"github.com/bwmarrin/discordgo"
)

var guildOnly = false

var AnonAdminCommand = &discordgo.ApplicationCommand{
	Name:         "anon_admin",
	Description:  "Manage who may submit anonymous posts",
	DMPermission: &guildOnly,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "action",
			Description: "Action to perform",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{
					Name:  "Ban",
					Value: "ban",
				},
				{
					Name:  "Unban",
					Value: "unban",
				},
				{
					Name:  "Check",
					Value: "check",
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "user_id",
			Description: "User ID or mention",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "reason",
			Description: "Reason for the ban",
			Required:    false,
		},
	},
}

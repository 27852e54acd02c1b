package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/handler"
	"github.com/marbel89/chantbot/health"
	"github.com/marbel89/chantbot/relay"
	"github.com/oklahomer/go-kasumi/logger"
)

func registerEventHandlers(s *discordgo.Session, r *relay.Relay, router *handler.Router, healthServer *health.Server) {
	s.AddHandler(onReady)
	s.AddHandler(r.OnMessageCreate)
	s.AddHandler(router.OnInteractionCreate)

	if healthServer != nil {
		s.AddHandler(healthServer.OnConnect)
		s.AddHandler(healthServer.OnDisconnect)
	}
}

func onReady(_ *discordgo.Session, ready *discordgo.Ready) {
	logger.Infof("Logged in as %s (ID: %s)", ready.User.Username, ready.User.ID)
}

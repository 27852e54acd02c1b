package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/command"
	"github.com/marbel89/chantbot/command/def"
	"github.com/marbel89/chantbot/db"
	"github.com/marbel89/chantbot/dispatch"
	"github.com/marbel89/chantbot/handler"
	"github.com/marbel89/chantbot/handler/admin"
	"github.com/marbel89/chantbot/health"
	"github.com/marbel89/chantbot/model"
	"github.com/marbel89/chantbot/platform"
	"github.com/marbel89/chantbot/relay"
	"github.com/oklahomer/go-kasumi/logger"
)

// Start 启动机器人, 阻塞直到收到退出信号
func Start(cfg *model.Config) error {
	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// 使用提供的机器人令牌创建一个新的 Discord 会话
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = platform.Intents

	client := platform.NewClient(dg, platform.WithMaxAttachmentBytes(cfg.MaxAttachmentBytes))

	anonChannel := lookupChannel(client, "anonymous", cfg.AnonymousChannelID)
	lookupChannel(client, "mod log", cfg.ModLogChannelID)

	dispatchConfig := dispatch.Config{
		AnonymousChannelID: cfg.AnonymousChannelID,
		ModLogChannelID:    cfg.ModLogChannelID,
		ModAlertChannelID:  cfg.ModAlertChannelID,
		AlertUserIDs:       cfg.Commands.Auth.Developers,
	}
	if anonChannel != nil {
		dispatchConfig.AnonymousChannelName = anonChannel.Name
		dispatchConfig.GuildID = anonChannel.GuildID
	}
	dispatcher := dispatch.New(client, dispatchConfig, dispatch.WithCounter(store))

	r := relay.New(client, dispatcher,
		relay.WithTimeout(cfg.ConfirmTimeout),
		relay.WithBlocklist(store),
	)

	router := handler.NewRouter()
	router.AddComponentHandler(relay.ComponentPrefix, r.OnComponent)
	router.AddCommandHandler(def.AnonAdminCommand.Name, admin.NewHandler(store, cfg.Commands.Auth).OnCommand)

	var healthServer *health.Server
	if cfg.HealthAddr != "" {
		healthServer = health.NewServer()
		go func() {
			if err := healthServer.ListenAndServe(cfg.HealthAddr); err != nil {
				logger.Errorf("Health service stopped: %+v", err)
			}
		}()
		defer healthServer.Stop()
	}

	registerEventHandlers(dg, r, router, healthServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	relayDone := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(relayDone)
	}()

	if err := dg.Open(); err != nil {
		stop()
		<-relayDone
		return fmt.Errorf("error opening connection: %w", err)
	}

	for _, guildID := range cfg.Commands.AllowedGuilds {
		for _, cmd := range command.AllCommands {
			if _, err := dg.ApplicationCommandCreate(dg.State.User.ID, guildID, cmd); err != nil {
				logger.Errorf("Cannot create '%v' command in guild %s: %+v", cmd.Name, guildID, err)
			}
		}
	}

	logger.Infof("Bot is now running. Press CTRL-C to exit.")
	<-ctx.Done()

	logger.Infof("Shutting down")
	<-relayDone
	r.Wait()

	return dg.Close()
}

// lookupChannel resolves a configured channel for logging. A channel that cannot
// be resolved is reported but does not stop the bot.
func lookupChannel(client *platform.Client, label, channelID string) *discordgo.Channel {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	channel, err := client.Channel(ctx, channelID)
	if err != nil {
		logger.Warnf("Could not find %s channel with ID %s: %+v", label, channelID, err)
		return nil
	}
	logger.Infof("Found %s channel: #%s", label, channel.Name)
	return channel
}

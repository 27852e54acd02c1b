package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/db"
	"github.com/marbel89/chantbot/model"
	"github.com/marbel89/chantbot/utils"
	"github.com/oklahomer/go-kasumi/logger"
)

const storeTimeout = 10 * time.Second

// Store is the blocklist storage used by the admin command.
type Store interface {
	BanUser(ctx context.Context, userID, reason, bannedBy string) error
	UnbanUser(ctx context.Context, userID string) (bool, error)
	GetBan(ctx context.Context, userID string) (*db.Ban, error)
}

// responder is the subset of *discordgo.Session the handler replies through.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ responder = (*discordgo.Session)(nil)

// Handler serves the /anon_admin command.
type Handler struct {
	store Store
	auth  model.Auth
}

// NewHandler creates a Handler.
func NewHandler(store Store, auth model.Auth) *Handler {
	return &Handler{
		store: store,
		auth:  auth,
	}
}

// OnCommand handles the /anon_admin command.
func (h *Handler) OnCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// 立即响应交互
	if err := h.deferResponse(s, i.Interaction); err != nil {
		logger.Errorf("Error sending deferred response: %+v", err)
		return
	}

	go h.execute(s, i.Interaction)
}

func (h *Handler) deferResponse(s responder, i *discordgo.Interaction) error {
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral, // 仅管理员可见
		},
	})
}

func (h *Handler) execute(s responder, i *discordgo.Interaction) {
	reply := func(text string) {
		if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{
			Content: utils.StringPtr(text),
		}); err != nil {
			logger.Warnf("Error editing admin response: %+v", err)
		}
	}

	user, roles := utils.InteractionUser(i)
	if user == nil || !utils.CheckAuth(h.auth, user.ID, roles) {
		reply("❌ You do not have permission to do this.")
		return
	}

	var action, userID, reason string
	for _, option := range i.ApplicationCommandData().Options {
		switch option.Name {
		case "action":
			action = option.StringValue()
		case "user_id":
			userID = utils.ParseUserID(option.StringValue())
		case "reason":
			reason = option.StringValue()
		}
	}
	if userID == "" {
		reply("❌ Please provide a user ID.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch action {
	case "ban":
		reply(h.ban(ctx, userID, reason, user.ID))
	case "unban":
		reply(h.unban(ctx, userID))
	case "check":
		reply(h.check(ctx, userID))
	default:
		reply("❌ Unknown action.")
	}
}

func (h *Handler) ban(ctx context.Context, userID, reason, bannedBy string) string {
	if err := h.store.BanUser(ctx, userID, reason, bannedBy); err != nil {
		logger.Errorf("Failed to ban user %s: %+v", userID, err)
		return fmt.Sprintf("❌ Failed to ban user %s: %v", userID, err)
	}
	logger.Infof("User %s banned by %s", userID, bannedBy)
	return fmt.Sprintf("✅ <@%s> can no longer submit anonymous posts.", userID)
}

func (h *Handler) unban(ctx context.Context, userID string) string {
	removed, err := h.store.UnbanUser(ctx, userID)
	if err != nil {
		logger.Errorf("Failed to unban user %s: %+v", userID, err)
		return fmt.Sprintf("❌ Failed to unban user %s: %v", userID, err)
	}
	if !removed {
		return fmt.Sprintf("ℹ️ <@%s> is not banned.", userID)
	}
	return fmt.Sprintf("✅ <@%s> may submit anonymous posts again.", userID)
}

func (h *Handler) check(ctx context.Context, userID string) string {
	ban, err := h.store.GetBan(ctx, userID)
	if err != nil {
		return fmt.Sprintf("❌ Failed to look up user %s: %v", userID, err)
	}
	if ban == nil {
		return fmt.Sprintf("ℹ️ <@%s> is not banned.", userID)
	}

	text := fmt.Sprintf("🚫 <@%s> was banned <t:%d:R>", userID, ban.BannedAt.Unix())
	if ban.BannedBy != "" {
		text += fmt.Sprintf(" by <@%s>", ban.BannedBy)
	}
	if ban.Reason != "" {
		text += fmt.Sprintf(". Reason: %s", ban.Reason)
	}
	return text
}

package relay

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/model"
)

// ComponentPrefix is the custom ID prefix of the prompt buttons.
const ComponentPrefix = "anon_post"

const (
	textEmpty       = "Your message must contain text or an attachment to be posted."
	textBlocked     = "You are not allowed to submit anonymous posts."
	textUnavailable = "Unable to process your request, please try again later."
	textPrompt      = "Do you want to post the content anonymously?"
	textProcessing  = "Processing your request..."
	textCancelled   = "Request cancelled."
	textTimedOut    = "This anonymous post request has timed out."
)

func customID(handle string, choice model.Decision) string {
	return fmt.Sprintf("%s:%s:%s", ComponentPrefix, handle, choice)
}

// parseCustomID splits "anon_post:<handle>:<choice>".
func parseCustomID(id string) (handle string, choice model.Decision, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != ComponentPrefix || parts[1] == "" {
		return "", "", false
	}
	return parts[1], model.Decision(parts[2]), true
}

// BuildPromptMessage creates the confirmation prompt with its two buttons.
func BuildPromptMessage(sub *model.Submission) *discordgo.MessageSend {
	text := textPrompt
	if n := len(sub.Attachments); n > 0 {
		text += fmt.Sprintf("\n(You have %d attachment(s))", n)
	}
	return &discordgo.MessageSend{
		Content:    text,
		Components: promptComponents(sub.Handle, false),
	}
}

func promptComponents(handle string, disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Post Anonymously",
					Style:    discordgo.SuccessButton,
					CustomID: customID(handle, model.Confirm),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					CustomID: customID(handle, model.Cancel),
					Disabled: disabled,
				},
			},
		},
	}
}

// buildUpdateResponse replaces the prompt text and disables its buttons.
func buildUpdateResponse(handle, text string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    text,
			Components: promptComponents(handle, true),
		},
	}
}

func buildTimedOutEdit(channelID, messageID, handle string) *discordgo.MessageEdit {
	components := promptComponents(handle, true)
	edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(textTimedOut)
	edit.Components = &components
	return edit
}

var silentAck = &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}

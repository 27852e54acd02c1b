package relay

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/model"
)

// Event is anything the relay loop reacts to.
type Event interface {
	isEvent()
}

// DirectMessageReceived is a qualifying DM from a user.
type DirectMessageReceived struct {
	Author      model.Author
	Content     string
	Attachments []model.Attachment
	ChannelID   string
	MessageID   string
	SentAt      time.Time
}

// InteractionResponseReceived is a click on one of the prompt buttons.
type InteractionResponseReceived struct {
	Handle      string
	UserID      string
	Choice      model.Decision
	Interaction *discordgo.Interaction
}

// TimeoutFired signals that the confirmation window of a session has elapsed.
type TimeoutFired struct {
	Handle string
}

// PromptDelivered records where the prompt of a session was sent.
type PromptDelivered struct {
	Handle    string
	ChannelID string
	MessageID string
}

// PromptFailed signals that the prompt could not be sent to the author.
type PromptFailed struct {
	Handle string
	Err    error
}

// taskDone reports that an outbound call started by the loop has returned.
type taskDone struct{}

func (DirectMessageReceived) isEvent()       {}
func (InteractionResponseReceived) isEvent() {}
func (TimeoutFired) isEvent()                {}
func (PromptDelivered) isEvent()             {}
func (PromptFailed) isEvent()                {}
func (taskDone) isEvent()                    {}

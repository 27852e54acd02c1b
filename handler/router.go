package handler

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc handles one routed interaction.
type HandlerFunc func(s *discordgo.Session, i *discordgo.InteractionCreate)

// Router dispatches interactions to the handler registered for their command
// name or custom ID prefix.
type Router struct {
	commandHandlers   map[string]HandlerFunc
	componentHandlers map[string]HandlerFunc
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		commandHandlers:   make(map[string]HandlerFunc),
		componentHandlers: make(map[string]HandlerFunc),
	}
}

// AddCommandHandler registers a handler for a slash command.
func (r *Router) AddCommandHandler(name string, handler HandlerFunc) {
	r.commandHandlers[name] = handler
}

// AddComponentHandler registers a handler for message components whose custom
// ID starts with prefix followed by ":".
func (r *Router) AddComponentHandler(prefix string, handler HandlerFunc) {
	r.componentHandlers[prefix] = handler
}

// OnInteractionCreate is the interaction router. Register it on the session
// before opening the gateway.
func (r *Router) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if handler, ok := r.commandHandlers[i.ApplicationCommandData().Name]; ok {
			handler(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		prefix, _, _ := strings.Cut(customID, ":")

		if handler, ok := r.componentHandlers[prefix]; ok {
			handler(s, i)
		}
	}
}

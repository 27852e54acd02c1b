package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/marbel89/chantbot/dispatch"
	"github.com/marbel89/chantbot/model"
	"github.com/oklahomer/go-kasumi/logger"
)

const (
	ioTimeout       = 30 * time.Second
	dispatchTimeout = 2 * ioTimeout
)

// Platform is the subset of the platform client the relay talks through.
type Platform interface {
	SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	EditMessage(ctx context.Context, edit *discordgo.MessageEdit) error
	RespondInteraction(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	EditInteractionResponse(ctx context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) error
}

// Publisher performs the two writes of a confirmed submission.
type Publisher interface {
	Publish(ctx context.Context, sub *model.Submission) (*model.Receipt, error)
	Log(ctx context.Context, sub *model.Submission, receipt *model.Receipt) error
	ChannelName() string
}

// Blocklist tells whether a user may submit.
type Blocklist interface {
	IsUserBanned(ctx context.Context, userID string) (bool, error)
}

// Option defines a function signature for Relay's functional options.
type Option func(*Relay)

// WithTimeout sets the confirmation window.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		r.timeout = d
	}
}

// WithBlocklist rejects DMs from banned users before a session is created.
func WithBlocklist(b Blocklist) Option {
	return func(r *Relay) {
		r.blocklist = b
	}
}

// entry is one pending session in the registry.
type entry struct {
	sub             *model.Submission
	stop            func() bool
	promptChannelID string
	promptMessageID string
}

// Relay owns the pending sessions and reacts to events on a single goroutine.
// Only the goroutine running Run touches the registry, and only that goroutine
// starts outbound calls.
type Relay struct {
	platform        Platform
	publisher       Publisher
	blocklist       Blocklist
	timeout         time.Duration
	dispatchTimeout time.Duration

	events  chan Event
	done    chan struct{}
	pending map[string]*entry
	wg      sync.WaitGroup

	// sessions that expired before their prompt was delivered
	undelivered map[string]struct{}
	inflight    int
	stopping    bool

	newHandle func() string
	schedule  func(time.Duration, func()) (stop func() bool)
	spawn     func(func())
	emit      func(Event)
}

// New creates a Relay. Call Run to start processing events.
func New(platform Platform, publisher Publisher, options ...Option) *Relay {
	r := &Relay{
		platform:        platform,
		publisher:       publisher,
		timeout:         model.DefaultConfirmTimeout,
		dispatchTimeout: dispatchTimeout,
		events:          make(chan Event, 64),
		done:            make(chan struct{}),
		pending:         make(map[string]*entry),
		undelivered:     make(map[string]struct{}),
		newHandle:       func() string { return uuid.New().String() },
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	r.spawn = func(f func()) {
		r.inflight++
		r.wg.Go(func() {
			defer r.emit(taskDone{})
			f()
		})
	}
	r.emit = r.enqueue

	for _, opt := range options {
		opt(r)
	}
	return r
}

// Run processes events until ctx is canceled. Sessions still pending at that
// point are expired, and Run keeps handling the results of outbound calls
// already in flight before it returns. New DMs are refused meanwhile.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
		case <-ctx.Done():
			r.stopping = true
			r.expireAll()
			for r.inflight > 0 {
				r.handle(<-r.events)
			}
			return
		}
	}
}

// Wait blocks until outbound calls started by the relay have finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}

func (r *Relay) enqueue(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
		logger.Debugf("Relay stopped, dropping %T", ev)
	}
}

func (r *Relay) handle(ev Event) {
	switch ev := ev.(type) {
	case DirectMessageReceived:
		r.handleDirectMessage(ev)
	case InteractionResponseReceived:
		r.handleInteraction(ev)
	case TimeoutFired:
		r.handleTimeout(ev)
	case PromptDelivered:
		r.handlePromptDelivered(ev)
	case PromptFailed:
		r.handlePromptFailed(ev)
	case taskDone:
		r.inflight--
	default:
		logger.Warnf("Unexpected event %#v", ev)
	}
}

func (r *Relay) handleDirectMessage(ev DirectMessageReceived) {
	if r.stopping {
		r.spawn(func() { r.tell(ev.Author.ID, textUnavailable) })
		return
	}

	sub, err := model.NewSubmission(ev.Author, ev.Content, ev.Attachments, ev.SentAt)
	if err != nil {
		if errors.Is(err, model.ErrEmptySubmission) {
			r.spawn(func() { r.tell(ev.Author.ID, textEmpty) })
		}
		return
	}

	sub.Handle = r.newHandle()
	sub.SourceChannelID = ev.ChannelID
	sub.SourceMessageID = ev.MessageID

	handle := sub.Handle
	e := &entry{sub: sub}
	r.pending[handle] = e
	e.stop = r.schedule(r.timeout, func() { r.emit(TimeoutFired{Handle: handle}) })
	logger.Debugf("Session %s created for user %s", handle, sub.Author.ID)

	prompt := BuildPromptMessage(sub)
	authorID := sub.Author.ID
	r.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		defer cancel()

		msg, err := r.platform.SendDirectMessage(ctx, authorID, prompt)
		if err != nil {
			r.emit(PromptFailed{Handle: handle, Err: err})
			return
		}
		r.emit(PromptDelivered{Handle: handle, ChannelID: msg.ChannelID, MessageID: msg.ID})
	})
}

func (r *Relay) handlePromptDelivered(ev PromptDelivered) {
	e, ok := r.pending[ev.Handle]
	if !ok {
		if _, expired := r.undelivered[ev.Handle]; expired {
			delete(r.undelivered, ev.Handle)
			r.editTimedOut(ev.ChannelID, ev.MessageID, ev.Handle)
		}
		return
	}
	e.promptChannelID = ev.ChannelID
	e.promptMessageID = ev.MessageID
}

func (r *Relay) handlePromptFailed(ev PromptFailed) {
	delete(r.undelivered, ev.Handle)

	e, ok := r.pending[ev.Handle]
	if !ok {
		return
	}
	logger.Warnf("Failed to send confirmation prompt to user %s: %+v", e.sub.Author.ID, ev.Err)
	r.drop(ev.Handle, e)
	e.sub.Expire()
}

func (r *Relay) handleInteraction(ev InteractionResponseReceived) {
	e, ok := r.pending[ev.Handle]
	if !ok || e.sub.Author.ID != ev.UserID {
		// resolved, expired or someone else's prompt
		r.spawn(func() { r.ack(ev.Interaction) })
		return
	}

	if err := e.sub.Resolve(ev.Choice); err != nil {
		r.spawn(func() { r.ack(ev.Interaction) })
		return
	}
	r.drop(ev.Handle, e)

	sub := e.sub
	promptChannelID, promptMessageID := e.promptChannelID, e.promptMessageID
	switch sub.Status {
	case model.StatusCancelled:
		logger.Debugf("Session %s cancelled", sub.Handle)
		r.spawn(func() {
			r.respond(ev.Interaction, buildUpdateResponse(sub.Handle, textCancelled))
		})

	case model.StatusConfirmed:
		logger.Debugf("Session %s confirmed", sub.Handle)
		r.spawn(func() {
			r.respond(ev.Interaction, buildUpdateResponse(sub.Handle, textProcessing))
			r.dispatch(sub, ev.Interaction, promptChannelID, promptMessageID)
		})
	}
}

func (r *Relay) handleTimeout(ev TimeoutFired) {
	e, ok := r.pending[ev.Handle]
	if !ok || !e.sub.Expire() {
		return
	}
	r.drop(ev.Handle, e)
	logger.Debugf("Session %s expired", ev.Handle)

	if e.promptMessageID == "" {
		// the prompt is edited once it arrives
		r.undelivered[ev.Handle] = struct{}{}
		return
	}
	r.editTimedOut(e.promptChannelID, e.promptMessageID, ev.Handle)
}

func (r *Relay) editTimedOut(channelID, messageID, handle string) {
	edit := buildTimedOutEdit(channelID, messageID, handle)
	r.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		defer cancel()

		if err := r.platform.EditMessage(ctx, edit); err != nil {
			logger.Warnf("Error editing prompt on timeout for session %s: %+v", handle, err)
		}
	})
}

func (r *Relay) expireAll() {
	for handle := range r.pending {
		r.handleTimeout(TimeoutFired{Handle: handle})
	}
}

// drop removes a session from the registry and stops its timer.
func (r *Relay) drop(handle string, e *entry) {
	delete(r.pending, handle)
	if e.stop != nil {
		e.stop()
	}
}

// dispatch publishes a confirmed submission, reports the result to the author,
// and only then writes the moderator log. Each step gets its own deadline so a
// slow publish cannot starve the log.
func (r *Relay) dispatch(sub *model.Submission, i *discordgo.Interaction, promptChannelID, promptMessageID string) {
	receipt, err := r.publish(sub)
	if err != nil {
		logger.Errorf("Failed to publish anonymous post for user %s: %+v", sub.Author.ID, err)
		r.report(sub, i, promptChannelID, promptMessageID, dispatch.FailureText(err))
		return
	}
	logger.Infof("Published anonymous post %s for session %s", receipt.MessageID, sub.Handle)
	r.report(sub, i, promptChannelID, promptMessageID, dispatch.SuccessText(r.publisher.ChannelName()))

	ctx, cancel := context.WithTimeout(context.Background(), r.dispatchTimeout)
	defer cancel()

	if err := r.publisher.Log(ctx, sub, receipt); err != nil {
		logger.Errorf("Post %s by %s was not logged: %+v", receipt.MessageID, sub.Author.ID, err)
	}
}

func (r *Relay) publish(sub *model.Submission) (*model.Receipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.dispatchTimeout)
	defer cancel()

	return r.publisher.Publish(ctx, sub)
}

// report replaces the prompt with the final outcome. It falls back to editing
// the prompt message directly, then to a fresh DM.
func (r *Relay) report(sub *model.Submission, i *discordgo.Interaction, promptChannelID, promptMessageID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	components := []discordgo.MessageComponent{}
	err := r.platform.EditInteractionResponse(ctx, i, &discordgo.WebhookEdit{
		Content:    &text,
		Components: &components,
	})
	if err == nil {
		return
	}
	logger.Warnf("Error editing interaction response for session %s: %+v", sub.Handle, err)

	if promptMessageID != "" {
		edit := discordgo.NewMessageEdit(promptChannelID, promptMessageID).SetContent(text)
		edit.Components = &components
		if err := r.platform.EditMessage(ctx, edit); err == nil {
			return
		}
	}
	r.tell(sub.Author.ID, text)
}

func (r *Relay) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	if err := r.platform.RespondInteraction(ctx, i, resp); err != nil {
		logger.Warnf("Error responding to interaction: %+v", err)
	}
}

func (r *Relay) ack(i *discordgo.Interaction) {
	if i == nil {
		return
	}
	r.respond(i, silentAck)
}

func (r *Relay) tell(userID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	if _, err := r.platform.SendDirectMessage(ctx, userID, &discordgo.MessageSend{Content: text}); err != nil {
		logger.Warnf("Failed to send DM to user %s: %+v", userID, err)
	}
}

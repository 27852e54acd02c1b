package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/dispatch"
	"github.com/marbel89/chantbot/model"
)

type sentDM struct {
	userID string
	msg    *discordgo.MessageSend
}

type response struct {
	interaction *discordgo.Interaction
	resp        *discordgo.InteractionResponse
}

// fakePlatform implements Platform for testing.
type fakePlatform struct {
	mu sync.Mutex

	dms       []sentDM
	edits     []*discordgo.MessageEdit
	responses []response
	webhooks  []*discordgo.WebhookEdit

	dmErr      error
	webhookErr error

	// when set, DMs block until release is closed; sending is signaled first
	release chan struct{}
	sending chan struct{}
}

func (f *fakePlatform) SendDirectMessage(_ context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if f.release != nil {
		select {
		case f.sending <- struct{}{}:
		default:
		}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	f.dms = append(f.dms, sentDM{userID: userID, msg: msg})
	return &discordgo.Message{ID: fmt.Sprintf("prompt-%d", len(f.dms)), ChannelID: "dm-" + userID}, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, edit *discordgo.MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit)
	return nil
}

func (f *fakePlatform) RespondInteraction(_ context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{interaction: i, resp: resp})
	return nil
}

func (f *fakePlatform) EditInteractionResponse(_ context.Context, _ *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.webhookErr != nil {
		return f.webhookErr
	}
	f.webhooks = append(f.webhooks, edit)
	return nil
}

// fakePublisher implements Publisher and records the order of calls.
type fakePublisher struct {
	mu sync.Mutex

	calls      []string
	published  []*model.Submission
	logged     []*model.Receipt
	publishErr error
	logErr     error

	// publishUntilDeadline makes Publish succeed only when its context expires
	publishUntilDeadline bool
	logCtxErr            error
}

func (f *fakePublisher) Publish(ctx context.Context, sub *model.Submission) (*model.Receipt, error) {
	if f.publishUntilDeadline {
		<-ctx.Done()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "publish")
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, sub)
	return &model.Receipt{ChannelID: "anon", MessageID: fmt.Sprintf("post-%d", len(f.published)), ChannelName: "confessions"}, nil
}

func (f *fakePublisher) Log(ctx context.Context, _ *model.Submission, receipt *model.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "log")
	f.logCtxErr = ctx.Err()
	f.logged = append(f.logged, receipt)
	return f.logErr
}

func (f *fakePublisher) ChannelName() string {
	return "confessions"
}

type fakeBlocklist map[string]bool

func (b fakeBlocklist) IsUserBanned(_ context.Context, userID string) (bool, error) {
	if userID == "broken" {
		return false, errors.New("database is locked")
	}
	return b[userID], nil
}

type timer struct {
	d       time.Duration
	fire    func()
	stopped bool
}

type harness struct {
	relay     *Relay
	platform  *fakePlatform
	publisher *fakePublisher
	timers    map[string]*timer
}

// newHarness builds a Relay that runs every step inline on the test goroutine.
func newHarness(t *testing.T, options ...Option) *harness {
	t.Helper()

	h := &harness{
		platform:  &fakePlatform{},
		publisher: &fakePublisher{},
		timers:    map[string]*timer{},
	}
	r := New(h.platform, h.publisher, options...)

	seq := 0
	var lastHandle string
	r.newHandle = func() string {
		seq++
		lastHandle = fmt.Sprintf("h%d", seq)
		return lastHandle
	}
	r.schedule = func(d time.Duration, f func()) func() bool {
		tm := &timer{d: d, fire: f}
		h.timers[lastHandle] = tm
		return func() bool {
			wasActive := !tm.stopped
			tm.stopped = true
			return wasActive
		}
	}
	r.spawn = func(f func()) { f() }
	r.emit = r.handle

	h.relay = r
	return h
}

func dm(authorID, content string, attachments ...*discordgo.MessageAttachment) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:          "src-1",
			ChannelID:   "dm-" + authorID,
			Content:     content,
			Author:      &discordgo.User{ID: authorID, Username: "user" + authorID},
			Attachments: attachments,
			Timestamp:   time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
		},
	}
}

func click(handle string, choice model.Decision, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "interaction-" + handle + "-" + string(choice),
			Type: discordgo.InteractionMessageComponent,
			User: &discordgo.User{ID: userID},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: customID(handle, choice),
			},
		},
	}
}

func (h *harness) lastResponseText(t *testing.T) string {
	t.Helper()
	if len(h.platform.responses) == 0 {
		t.Fatal("Expected an interaction response")
	}
	resp := h.platform.responses[len(h.platform.responses)-1].resp
	if resp.Data == nil {
		return ""
	}
	return resp.Data.Content
}

func TestRelay_ScenarioA_TextConfirmed(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "hello"))

	if len(h.relay.pending) != 1 {
		t.Fatalf("Expected 1 pending session, got %d", len(h.relay.pending))
	}
	e := h.relay.pending["h1"]
	if e.sub.Status != model.StatusPending {
		t.Errorf("Expected pending, got %q", e.sub.Status)
	}
	if len(h.platform.dms) != 1 || h.platform.dms[0].msg.Content != textPrompt {
		t.Fatalf("Expected exactly one prompt DM, got %#v", h.platform.dms)
	}
	if e.promptMessageID != "prompt-1" {
		t.Errorf("Expected prompt reference to be recorded, got %q", e.promptMessageID)
	}

	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))

	if len(h.relay.pending) != 0 {
		t.Error("Expected the session to be dropped after confirmation")
	}
	if e.sub.Status != model.StatusConfirmed {
		t.Errorf("Expected confirmed, got %q", e.sub.Status)
	}
	if got := strings.Join(h.publisher.calls, ","); got != "publish,log" {
		t.Fatalf("Expected publish then log, got %q", got)
	}
	if h.publisher.published[0].Content != "hello" {
		t.Errorf("Unexpected published content %q", h.publisher.published[0].Content)
	}
	if h.publisher.logged[0].MessageID != "post-1" {
		t.Errorf("Expected the log to reference the post, got %+v", h.publisher.logged[0])
	}

	if h.lastResponseText(t) != textProcessing {
		t.Errorf("Expected processing update, got %q", h.lastResponseText(t))
	}
	if len(h.platform.webhooks) != 1 || *h.platform.webhooks[0].Content != dispatch.SuccessText("confessions") {
		t.Errorf("Expected one success message, got %#v", h.platform.webhooks)
	}
	if !h.timers["h1"].stopped {
		t.Error("Expected the expiry timer to be stopped")
	}
	if h.timers["h1"].d != model.DefaultConfirmTimeout {
		t.Errorf("Expected the default timeout, got %s", h.timers["h1"].d)
	}
}

func TestRelay_ScenarioB_Cancelled(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	sub := h.relay.pending["h1"].sub
	h.relay.OnComponent(nil, click("h1", model.Cancel, "42"))

	if sub.Status != model.StatusCancelled {
		t.Errorf("Expected cancelled, got %q", sub.Status)
	}
	if len(h.publisher.calls) != 0 {
		t.Errorf("Expected no publish or log, got %v", h.publisher.calls)
	}
	if h.lastResponseText(t) != textCancelled {
		t.Errorf("Expected cancellation acknowledgment, got %q", h.lastResponseText(t))
	}
	if len(h.relay.pending) != 0 {
		t.Error("Expected the session to be dropped")
	}
}

func TestRelay_ScenarioC_AttachmentOnly(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "", &discordgo.MessageAttachment{
		ID: "a1", URL: "https://cdn.example/cat.png", Filename: "cat.png", ContentType: "image/png", Size: 3,
	}))

	if !strings.Contains(h.platform.dms[0].msg.Content, "(You have 1 attachment(s))") {
		t.Errorf("Expected attachment count in prompt, got %q", h.platform.dms[0].msg.Content)
	}

	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))

	if got := strings.Join(h.publisher.calls, ","); got != "publish,log" {
		t.Fatalf("Expected publish then log, got %q", got)
	}
	published := h.publisher.published[0]
	if len(published.Attachments) != 1 || published.Attachments[0].Filename != "cat.png" {
		t.Errorf("Expected the attachment to be published, got %#v", published.Attachments)
	}
	if published.Author.ID != "42" {
		t.Errorf("Expected author identity to reach the log, got %+v", published.Author)
	}
}

func TestRelay_ScenarioD_Expired(t *testing.T) {
	h := newHarness(t, WithTimeout(2*time.Minute))

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	sub := h.relay.pending["h1"].sub

	tm := h.timers["h1"]
	if tm.d != 2*time.Minute {
		t.Errorf("Expected configured timeout, got %s", tm.d)
	}
	tm.fire()

	if sub.Status != model.StatusExpired {
		t.Errorf("Expected expired, got %q", sub.Status)
	}
	if len(h.publisher.calls) != 0 {
		t.Errorf("Expected no publish or log, got %v", h.publisher.calls)
	}
	if len(h.platform.edits) != 1 {
		t.Fatalf("Expected the prompt to be edited once, got %d", len(h.platform.edits))
	}
	edit := h.platform.edits[0]
	if edit.ID != "prompt-1" || *edit.Content != textTimedOut {
		t.Errorf("Unexpected timeout edit %#v", edit)
	}

	// a late click is dropped silently
	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))
	if len(h.publisher.calls) != 0 {
		t.Error("Expected a click after expiry to be ignored")
	}
	if h.platform.responses[0].resp.Type != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Errorf("Expected a silent acknowledgment, got %#v", h.platform.responses[0].resp)
	}
}

func TestRelay_ScenarioE_PublishFails(t *testing.T) {
	h := newHarness(t)
	h.publisher.publishErr = fmt.Errorf("%w: HTTP 500", dispatch.ErrPublishFailed)

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))

	if got := strings.Join(h.publisher.calls, ","); got != "publish" {
		t.Fatalf("Expected publish only, got %q", got)
	}
	if len(h.platform.webhooks) != 1 {
		t.Fatalf("Expected one failure message, got %d", len(h.platform.webhooks))
	}
	if got := *h.platform.webhooks[0].Content; !strings.HasPrefix(got, "Failed to post") {
		t.Errorf("Expected failure notice, got %q", got)
	}
}

func TestRelay_LogGetsItsOwnDeadline(t *testing.T) {
	h := newHarness(t)
	h.relay.dispatchTimeout = 50 * time.Millisecond
	h.publisher.publishUntilDeadline = true

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))

	if got := strings.Join(h.publisher.calls, ","); got != "publish,log" {
		t.Fatalf("Expected publish then log, got %q", got)
	}
	if h.publisher.logCtxErr != nil {
		t.Errorf("Expected the log to start with time left, got %+v", h.publisher.logCtxErr)
	}
	if len(h.platform.webhooks) != 1 {
		t.Errorf("Expected the author to get the result, got %d messages", len(h.platform.webhooks))
	}
}

func TestRelay_ReportFallsBackToDM(t *testing.T) {
	h := newHarness(t)
	h.platform.webhookErr = errors.New("unknown interaction")

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))

	// the prompt message is edited directly instead
	if len(h.platform.edits) != 1 || *h.platform.edits[0].Content != dispatch.SuccessText("confessions") {
		t.Errorf("Expected the prompt to be edited with the result, got %#v", h.platform.edits)
	}
}

func TestRelay_EmptySubmissionRejected(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "   "))

	if len(h.relay.pending) != 0 {
		t.Error("Expected no session for an empty message")
	}
	if len(h.platform.dms) != 1 || h.platform.dms[0].msg.Content != textEmpty {
		t.Errorf("Expected the author to be told, got %#v", h.platform.dms)
	}
	if len(h.platform.dms[0].msg.Components) != 0 {
		t.Error("Expected no prompt buttons")
	}
}

func TestRelay_IgnoresGuildAndBotMessages(t *testing.T) {
	h := newHarness(t)

	guild := dm("42", "hello")
	guild.GuildID = "g1"
	h.relay.OnMessageCreate(nil, guild)

	bot := dm("43", "hello")
	bot.Author.Bot = true
	h.relay.OnMessageCreate(nil, bot)

	if len(h.relay.pending) != 0 || len(h.platform.dms) != 0 {
		t.Error("Expected guild and bot messages to be ignored")
	}
}

func TestRelay_Blocklist(t *testing.T) {
	h := newHarness(t, WithBlocklist(fakeBlocklist{"42": true}))

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	if len(h.relay.pending) != 0 {
		t.Error("Expected no session for a banned user")
	}
	if len(h.platform.dms) != 1 || h.platform.dms[0].msg.Content != textBlocked {
		t.Errorf("Expected a blocked notice, got %#v", h.platform.dms)
	}

	h.relay.OnMessageCreate(nil, dm("broken", "hello"))
	if len(h.relay.pending) != 0 {
		t.Error("Expected no session when the blocklist is unavailable")
	}

	h.relay.OnMessageCreate(nil, dm("7", "hello"))
	if len(h.relay.pending) != 1 {
		t.Error("Expected a session for an allowed user")
	}
}

func TestRelay_OtherUserClickIgnored(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.relay.OnComponent(nil, click("h1", model.Confirm, "99"))

	if len(h.relay.pending) != 1 || h.relay.pending["h1"].sub.Status != model.StatusPending {
		t.Error("Expected the session to stay pending")
	}
	if len(h.publisher.calls) != 0 {
		t.Error("Expected no publish")
	}
}

func TestRelay_AtMostOnceDispatch(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))
	h.relay.OnComponent(nil, click("h1", model.Confirm, "42"))
	h.relay.OnComponent(nil, click("h1", model.Cancel, "42"))
	h.timers["h1"].fire()

	if got := strings.Join(h.publisher.calls, ","); got != "publish,log" {
		t.Errorf("Expected a single publish and log, got %q", got)
	}
	if len(h.platform.edits) != 0 {
		t.Error("Expected no timeout edit after confirmation")
	}
}

func TestRelay_IndependentSessionsPerDM(t *testing.T) {
	h := newHarness(t)

	h.relay.OnMessageCreate(nil, dm("42", "first"))
	h.relay.OnMessageCreate(nil, dm("42", "second"))

	if len(h.relay.pending) != 2 {
		t.Fatalf("Expected 2 independent sessions, got %d", len(h.relay.pending))
	}

	h.relay.OnComponent(nil, click("h2", model.Confirm, "42"))
	h.relay.OnComponent(nil, click("h1", model.Cancel, "42"))

	if len(h.publisher.published) != 1 || h.publisher.published[0].Content != "second" {
		t.Errorf("Expected only the second DM to be published, got %#v", h.publisher.published)
	}
}

func TestRelay_PromptFailureDropsSession(t *testing.T) {
	h := newHarness(t)
	h.platform.dmErr = errors.New("cannot send messages to this user")

	h.relay.OnMessageCreate(nil, dm("42", "hello"))

	if len(h.relay.pending) != 0 {
		t.Error("Expected the session to be dropped when the prompt cannot be sent")
	}
	if !h.timers["h1"].stopped {
		t.Error("Expected the timer to be stopped")
	}
}

func TestRelay_ExpiredBeforePromptDelivered(t *testing.T) {
	h := newHarness(t)

	var queued []func()
	h.relay.spawn = func(f func()) { queued = append(queued, f) }
	runQueued := func() {
		for len(queued) > 0 {
			f := queued[0]
			queued = queued[1:]
			f()
		}
	}

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.timers["h1"].fire()
	if len(h.platform.edits) != 0 {
		t.Fatal("Expected no edit before the prompt exists")
	}

	// the prompt send completes after the session expired
	runQueued()

	if len(h.platform.edits) != 1 {
		t.Fatalf("Expected the late prompt to be edited, got %d edits", len(h.platform.edits))
	}
	edit := h.platform.edits[0]
	if edit.ID != "prompt-1" || *edit.Content != textTimedOut {
		t.Errorf("Unexpected edit %#v", edit)
	}
	if len(h.relay.undelivered) != 0 {
		t.Error("Expected the expired handle to be forgotten")
	}
}

func TestRelay_ResolvedBeforePromptDeliveredIsNotEdited(t *testing.T) {
	h := newHarness(t)

	var queued []func()
	h.relay.spawn = func(f func()) { queued = append(queued, f) }

	h.relay.OnMessageCreate(nil, dm("42", "hello"))
	h.relay.OnComponent(nil, click("h1", model.Cancel, "42"))
	for len(queued) > 0 {
		f := queued[0]
		queued = queued[1:]
		f()
	}

	if len(h.platform.edits) != 0 {
		t.Errorf("Expected a cancelled prompt to keep its text, got %#v", h.platform.edits)
	}
}

func TestRelay_MalformedCustomID(t *testing.T) {
	h := newHarness(t)

	i := click("h1", model.Confirm, "42")
	i.Data = discordgo.MessageComponentInteractionData{CustomID: "anon_post:broken"}
	h.relay.OnComponent(nil, i)

	if len(h.platform.responses) != 1 || h.platform.responses[0].resp.Type != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Errorf("Expected a silent acknowledgment, got %#v", h.platform.responses)
	}
}

func TestRelay_RunExpiresPendingOnShutdown(t *testing.T) {
	platform := &fakePlatform{}
	publisher := &fakePublisher{}
	r := New(platform, publisher, WithTimeout(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()

	r.OnMessageCreate(nil, dm("42", "hello"))

	deadline := time.After(5 * time.Second)
	for {
		platform.mu.Lock()
		n := len(platform.dms)
		platform.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the prompt")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-stopped
	r.Wait()

	if len(publisher.calls) != 0 {
		t.Errorf("Expected no publish on shutdown, got %v", publisher.calls)
	}
	if len(r.pending) != 0 {
		t.Error("Expected pending sessions to be cleared on shutdown")
	}

	// events after shutdown are dropped without blocking or starting calls
	r.OnMessageCreate(nil, dm("42", "late"))
	malformed := click("h1", model.Confirm, "42")
	malformed.Data = discordgo.MessageComponentInteractionData{CustomID: "anon_post:broken"}
	r.OnComponent(nil, malformed)
	r.Wait()

	if len(platform.responses) != 0 {
		t.Errorf("Expected no responses after shutdown, got %d", len(platform.responses))
	}
}

func TestRelay_ShutdownWhilePromptInFlight(t *testing.T) {
	platform := &fakePlatform{
		release: make(chan struct{}),
		sending: make(chan struct{}, 1),
	}
	publisher := &fakePublisher{}
	r := New(platform, publisher, WithTimeout(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()

	r.OnMessageCreate(nil, dm("42", "hello"))
	select {
	case <-platform.sending:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the prompt to be sent")
	}

	cancel()
	select {
	case <-stopped:
		t.Fatal("Expected Run to wait for the prompt in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(platform.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for Run to return")
	}
	r.Wait()

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if len(platform.edits) != 1 || *platform.edits[0].Content != textTimedOut {
		t.Errorf("Expected the late prompt to be marked timed out, got %#v", platform.edits)
	}
}

func TestParseCustomID(t *testing.T) {
	handle, choice, ok := parseCustomID(customID("abc", model.Cancel))
	if !ok || handle != "abc" || choice != model.Cancel {
		t.Errorf("Unexpected parse result %q %q %v", handle, choice, ok)
	}

	for _, id := range []string{"", "anon_post", "anon_post::confirm", "other:abc:confirm", "anon_post:a:b:c"} {
		if _, _, ok := parseCustomID(id); ok {
			t.Errorf("Expected %q to be rejected", id)
		}
	}
}

package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/user"
)

type Options struct {
	ConversationPollInterval time.Duration
	MessagePollInterval      time.Duration
	SearchDebounce           time.Duration
	SearchBatchSize          int

	Recorder Recorder
	// OnChange, if set, receives a snapshot after every state change.
	// It is called outside the controller lock, possibly from several goroutines.
	OnChange func(State)
}

func DefaultOptions() Options {
	return Options{
		ConversationPollInterval: 8 * time.Second,
		MessagePollInterval:      5 * time.Second,
		SearchDebounce:           300 * time.Millisecond,
		SearchBatchSize:          6,
	}
}

func NewOptions(conf *core.Config) Options {
	opts := DefaultOptions()
	if conf.Chat.ConversationPollInterval > 0 {
		opts.ConversationPollInterval = conf.Chat.ConversationPollInterval
	}
	if conf.Chat.MessagePollInterval > 0 {
		opts.MessagePollInterval = conf.Chat.MessagePollInterval
	}
	if conf.Chat.SearchDebounce > 0 {
		opts.SearchDebounce = conf.Chat.SearchDebounce
	}
	if conf.Chat.SearchBatchSize > 0 {
		opts.SearchBatchSize = conf.Chat.SearchBatchSize
	}
	return opts
}

// State is a snapshot of what the messaging view shows.
type State struct {
	Loading          bool           `json:"loading"`
	Conversations    []Conversation `json:"conversations"` // visible (filtered) list
	Query            string         `json:"query"`
	Searching        bool           `json:"searching"`
	SelectedID       int            `json:"selected_id"`
	Messages         []Message      `json:"messages"`
	FetchingMessages bool           `json:"fetching_messages"`
	MessagesError    string         `json:"messages_error,omitempty"`
	Sending          bool           `json:"sending"`
	AtBottom         bool           `json:"at_bottom"`
	UnseenCount      int            `json:"unseen_count"`
}

// Controller keeps the conversation list and the open conversation's messages fresh
// for one user. It polls the Repository, caches message histories for search and
// appends sent messages optimistically.
//
// Every async result is committed only if it is still relevant: loads, searches and
// selections capture an Epoch at kickoff and compare it when committing.
type Controller struct {
	repo   Repository
	user   user.User
	opts   Options
	logger core.Logger
	rec    Recorder
	cache  *MessageCache

	listEpoch   Epoch
	msgEpoch    Epoch
	searchEpoch Epoch
	debounce    *Debouncer

	ctx    context.Context // controller lifetime
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	started       bool
	closed        bool
	listTask      *Task
	msgTask       *Task
	loading       bool
	conversations []Conversation // sorted by activity
	visible       []Conversation
	query         string
	searching     bool
	selectedID    int
	messages      []Message
	messagesErr   error
	fetching      int // in-flight message loads
	sending       bool
	atBottom      bool
	unseen        int
	prevMsgCount  int
	sent          []sentMessage // not yet seen in a loaded history
}

type sentMessage struct {
	conversationID int
	msg            Message
}

// NewController returns a Controller acting on behalf of identity.
// An unresolved identity turns every network operation into a no-op.
func NewController(repo Repository, identity user.User, opts Options, logger core.Logger) *Controller {
	def := DefaultOptions()
	if opts.ConversationPollInterval <= 0 {
		opts.ConversationPollInterval = def.ConversationPollInterval
	}
	if opts.MessagePollInterval <= 0 {
		opts.MessagePollInterval = def.MessagePollInterval
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = def.SearchDebounce
	}
	if opts.SearchBatchSize <= 0 {
		opts.SearchBatchSize = def.SearchBatchSize
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		repo:     repo,
		user:     identity,
		opts:     opts,
		logger:   logger,
		rec:      rec,
		cache:    NewMessageCache(),
		debounce: NewDebouncer(opts.SearchDebounce),
		ctx:      ctx,
		cancel:   cancel,
		atBottom: true,
	}
}

func (c *Controller) User() user.User {
	return c.user
}

// Cache exposes the message cache (read-mostly; used by presenters and tests).
func (c *Controller) Cache() *MessageCache {
	return c.cache
}

// Start loads the conversation list and polls it every ConversationPollInterval.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	if c.user.Resolvable() {
		c.listTask = Every(c.ctx, c.opts.ConversationPollInterval, func(ctx context.Context) {
			_ = c.LoadConversations(ctx, false)
		})
	}
	c.mu.Unlock()

	return c.LoadConversations(ctx, true)
}

// Stop tears the controller down: polls, pending search and background work are
// cancelled and waited for. A stopped controller cannot be restarted.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	listTask, msgTask := c.listTask, c.msgTask
	c.listTask, c.msgTask = nil, nil
	c.searchEpoch.Next()
	c.mu.Unlock()

	c.debounce.Cancel()
	c.cancel()
	listTask.Stop()
	msgTask.Stop()
	c.wg.Wait()
}

// LoadConversations replaces the list with the server's, sorted by latest activity.
// On failure the current list is kept. Only an initial load toggles the loading flag.
func (c *Controller) LoadConversations(ctx context.Context, initial bool) error {
	if !c.user.Resolvable() {
		return nil
	}
	epoch := c.listEpoch.Next()
	if initial {
		c.commit(func() { c.loading = true })
		defer c.commit(func() { c.loading = false })
	}

	start := time.Now()
	convs, err := c.repo.ListConversations(ctx, c.user.ID)
	c.rec.ObserveRequest(OpListConversations, time.Since(start), err)
	if err != nil {
		c.logFailure(ctx, "loading conversations", err, !initial)
		return errors.Wrap(err, "loading conversations")
	}
	sorted := SortByActivity(convs)

	var reSearch bool
	c.commit(func() {
		if !c.listEpoch.IsCurrent(epoch) {
			return // a newer load is on its way
		}
		c.conversations = sorted
		if c.query == "" {
			c.visible = sorted
		} else {
			// runs over the previous list are stale
			c.searchEpoch.Next()
			c.searching = true
			reSearch = true
		}
	})
	if reSearch {
		c.scheduleSearch()
	}
	return nil
}

// LoadMessages replaces the message list of conversationID with the server's history.
// A failed load clears the list and records the error so the view can tell it from
// an empty conversation.
func (c *Controller) LoadMessages(ctx context.Context, conversationID int) error {
	return c.loadMessages(ctx, conversationID, false)
}

// loadMessages is shared by explicit loads and the message poll. Background failures
// leave the last good list in place.
func (c *Controller) loadMessages(ctx context.Context, conversationID int, background bool) error {
	if !c.user.Resolvable() || conversationID <= 0 {
		return nil
	}
	epoch := c.msgEpoch.Next()
	c.commit(func() { c.fetching++ })
	defer c.commit(func() { c.fetching-- })

	start := time.Now()
	msgs, err := c.repo.ListMessages(ctx, conversationID, c.user.ID)
	c.rec.ObserveRequest(OpListMessages, time.Since(start), err)
	if err != nil {
		c.logFailure(ctx, "loading messages", err, background)
		if !background {
			c.commit(func() {
				if c.msgEpoch.IsCurrent(epoch) && c.selectedID == conversationID {
					c.messages = nil
					c.messagesErr = err
					c.trackGrowthLocked()
				}
			})
		}
		return errors.Wrap(err, "loading messages")
	}

	c.commit(func() {
		msgs = c.mergeSentLocked(conversationID, msgs)
		c.cache.Put(conversationID, msgs)
		if !c.msgEpoch.IsCurrent(epoch) || c.selectedID != conversationID {
			return // superseded, or the user moved on
		}
		c.messages = cloneMessages(msgs)
		c.messagesErr = nil
		c.trackGrowthLocked()
	})
	return nil
}

// SelectConversation makes id the active conversation, restarts the message poll
// for it and loads its messages. An id <= 0 closes the active conversation.
func (c *Controller) SelectConversation(ctx context.Context, id int) error {
	if id < 0 {
		id = 0
	}
	var old *Task
	var stopped bool
	c.commit(func() {
		if c.closed {
			stopped = true
			return
		}
		old = c.msgTask
		c.msgTask = nil
		c.selectedID = id
		c.messages = nil
		c.messagesErr = nil
		c.unseen = 0
		c.atBottom = true
		c.prevMsgCount = 0
		c.msgEpoch.Next()
		if id > 0 && c.user.Resolvable() {
			c.msgTask = Every(c.ctx, c.opts.MessagePollInterval, func(ctx context.Context) {
				_ = c.loadMessages(ctx, id, true)
			})
		}
	})
	if stopped {
		return ErrStopped
	}
	old.Stop()

	if id == 0 {
		return nil
	}
	return c.LoadMessages(ctx, id)
}

// SendMessage posts content to the active conversation and appends the server's copy
// to the message list. It is a silent no-op (nil, nil) when content is blank, a send is
// in flight, no conversation is active or the identity is unresolved.
func (c *Controller) SendMessage(ctx context.Context, content string) (*Message, error) {
	content = strings.TrimSpace(content)

	var conversationID int
	var guarded bool
	c.commit(func() {
		if content == "" || c.sending || c.selectedID <= 0 || !c.user.Resolvable() || c.closed {
			guarded = true
			return
		}
		c.sending = true
		conversationID = c.selectedID
	})
	if guarded {
		return nil, nil
	}
	defer c.commit(func() { c.sending = false })

	start := time.Now()
	msg, err := c.repo.SendMessage(ctx, NewMessage{
		ConversationID: conversationID,
		SenderID:       c.user.ID,
		Content:        content,
	})
	c.rec.ObserveRequest(OpSendMessage, time.Since(start), err)
	if err != nil {
		c.logFailure(ctx, "sending message", err, false)
		return nil, errors.Wrap(err, "sending message")
	}

	c.commit(func() {
		c.cache.Append(conversationID, msg)
		// in-flight loads may predate this message
		c.sent = append(c.sent, sentMessage{conversationID: conversationID, msg: msg})
		if c.selectedID != conversationID {
			return
		}
		msgs := make([]Message, len(c.messages), len(c.messages)+1)
		copy(msgs, c.messages)
		c.messages = append(msgs, msg)
		c.messagesErr = nil
		c.trackGrowthLocked()
	})

	// refresh ordering & previews
	c.goBackground(func(ctx context.Context) {
		_ = c.LoadConversations(ctx, false)
	})
	return &msg, nil
}

// mergeSentLocked appends to msgs the messages sent to conversationID that it lacks,
// and forgets the ones it already carries.
func (c *Controller) mergeSentLocked(conversationID int, msgs []Message) []Message {
	if len(c.sent) == 0 {
		return msgs
	}
	loaded := make(map[int]bool, len(msgs))
	for _, msg := range msgs {
		loaded[msg.ID] = true
	}
	pending := c.sent[:0]
	for _, s := range c.sent {
		switch {
		case s.conversationID != conversationID:
			pending = append(pending, s)
		case !loaded[s.msg.ID]:
			msgs = append(msgs, s.msg)
			pending = append(pending, s)
		}
	}
	c.sent = pending
	return msgs
}

// SetAtBottom reports whether the message view is scrolled to the bottom.
// Returning to the bottom clears the unseen count.
func (c *Controller) SetAtBottom(atBottom bool) {
	c.commit(func() {
		c.atBottom = atBottom
		if atBottom {
			c.unseen = 0
		}
	})
}

// JumpToLatest scrolls the view to the latest message.
func (c *Controller) JumpToLatest() {
	c.SetAtBottom(true)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Selected returns the active conversation as last listed.
func (c *Controller) Selected() (Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selectedID <= 0 {
		return Conversation{}, false
	}
	for _, conv := range c.conversations {
		if conv.ID == c.selectedID {
			return conv, true
		}
	}
	return Conversation{}, false
}

// OtherParticipantName is the display name of the other party of the active conversation.
func (c *Controller) OtherParticipantName() string {
	conv, ok := c.Selected()
	if !ok || !c.user.Resolvable() || len(conv.Participants) == 0 {
		return ""
	}
	return conv.Primary().DisplayName()
}

// trackGrowthLocked counts messages that arrive while the view is not at the bottom.
func (c *Controller) trackGrowthLocked() {
	if n := len(c.messages); n > c.prevMsgCount && !c.atBottom {
		c.unseen += n - c.prevMsgCount
	}
	c.prevMsgCount = len(c.messages)
}

// commit applies fn under the lock and publishes the resulting State.
func (c *Controller) commit(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Loading:          c.loading,
		Conversations:    make([]Conversation, len(c.visible)),
		Query:            c.query,
		Searching:        c.searching,
		SelectedID:       c.selectedID,
		Messages:         cloneMessages(c.messages),
		FetchingMessages: c.fetching > 0,
		Sending:          c.sending,
		AtBottom:         c.atBottom,
		UnseenCount:      c.unseen,
	}
	copy(st.Conversations, c.visible)
	if c.messagesErr != nil {
		st.MessagesError = c.messagesErr.Error()
	}
	return st
}

// goBackground runs fn on its own goroutine bound to the controller lifetime.
// Nothing runs once the controller is stopped.
func (c *Controller) goBackground(fn func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

func (c *Controller) logFailure(ctx context.Context, msg string, err error, background bool) {
	if ctx.Err() != nil || c.logger == nil {
		return // torn down
	}
	if background {
		c.logger.Warn(msg, err, c.user)
		return
	}
	c.logger.Error(msg, err, c.user)
}

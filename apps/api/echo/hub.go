package echoapi

import (
	"context"
	"sync"
	"time"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
)

type (
	// HubOptions configures a Hub.
	HubOptions struct {
		Chat        chat.Options
		IdleTimeout time.Duration // controllers unused for that long are stopped
		// OnCount, if set, receives the number of live controllers whenever it changes.
		OnCount func(n int)
	}

	// Hub owns one chat.Controller per logged-in user.
	Hub struct {
		repo    chat.Repository
		opts    HubOptions
		logger  core.Logger
		nowFunc func() time.Time

		mu       sync.Mutex
		sessions map[int]*hubSession
		reaper   *chat.Task
		closed   bool
	}

	hubSession struct {
		ctrl     *chat.Controller
		lastSeen time.Time
	}
)

func NewHub(repo chat.Repository, opts HubOptions, logger core.Logger) *Hub {
	return &Hub{
		repo:     repo,
		opts:     opts,
		logger:   logger,
		nowFunc:  time.Now,
		sessions: make(map[int]*hubSession),
	}
}

// Start launches the idle reaper.
func (h *Hub) Start() {
	if h.opts.IdleTimeout <= 0 {
		return
	}
	interval := h.opts.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reaper == nil && !h.closed {
		h.reaper = chat.Every(context.Background(), interval, func(context.Context) { h.Reap() })
	}
}

// Controller returns the running controller of usr, creating and starting it on first use.
// The error is the one of the initial conversation load; the controller is usable anyway.
func (h *Hub) Controller(ctx context.Context, usr user.User) (*chat.Controller, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, chat.ErrStopped
	}
	sess, ok := h.sessions[usr.ID]
	if !ok {
		sess = &hubSession{ctrl: chat.NewController(h.repo, usr, h.opts.Chat, h.logger)}
		h.sessions[usr.ID] = sess
	}
	sess.lastSeen = h.nowFunc()
	n := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		h.count(n)
		h.logger.Debug("chat session opened", usr)
	}
	return sess.ctrl, sess.ctrl.Start(ctx)
}

// Drop stops and forgets the controller of userID.
func (h *Hub) Drop(userID int) bool {
	h.mu.Lock()
	sess, ok := h.sessions[userID]
	delete(h.sessions, userID)
	n := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return false
	}
	sess.ctrl.Stop()
	h.count(n)
	return true
}

// Reap stops the controllers that have not been used for IdleTimeout.
func (h *Hub) Reap() int {
	if h.opts.IdleTimeout <= 0 {
		return 0
	}
	deadline := h.nowFunc().Add(-h.opts.IdleTimeout)

	h.mu.Lock()
	var idle []*hubSession
	for id, sess := range h.sessions {
		if sess.lastSeen.Before(deadline) {
			idle = append(idle, sess)
			delete(h.sessions, id)
		}
	}
	n := len(h.sessions)
	h.mu.Unlock()

	for _, sess := range idle {
		sess.ctrl.Stop()
		h.logger.Debug("chat session expired", sess.ctrl.User())
	}
	if len(idle) > 0 {
		h.count(n)
	}
	return len(idle)
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close stops the reaper and every controller. The Hub cannot be used afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	reaper := h.reaper
	sessions := h.sessions
	h.sessions = make(map[int]*hubSession)
	h.mu.Unlock()

	reaper.Stop()
	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(ctrl *chat.Controller) {
			defer wg.Done()
			ctrl.Stop()
		}(sess.ctrl)
	}
	wg.Wait()
	h.count(0)
}

func (h *Hub) count(n int) {
	if h.opts.OnCount != nil {
		h.opts.OnCount(n)
	}
}

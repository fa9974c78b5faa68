package echoapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
	"github.com/hsannu/connect/storage/inmem"
	"github.com/hsannu/connect/tests"
)

type countLog struct {
	mu     sync.Mutex
	counts []int
}

func (cl *countLog) record(n int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.counts = append(cl.counts, n)
}

func (cl *countLog) get() []int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return append([]int(nil), cl.counts...)
}

func newTestHub(t *testing.T, idle time.Duration) (*Hub, *countLog) {
	db := testutil.SeedDB(t)
	cl := new(countLog)
	hub := NewHub(inmem.NewChatRepository(db), HubOptions{
		Chat: chat.Options{
			ConversationPollInterval: time.Hour,
			MessagePollInterval:      time.Hour,
		},
		IdleTimeout: idle,
		OnCount:     cl.record,
	}, testLogger())
	t.Cleanup(hub.Close)
	return hub, cl
}

var staff = user.User{ID: 2, Role: user.RoleStaff, Username: "staff"}

func TestHub_Controller(t *testing.T) {
	hub, cl := newTestHub(t, 0)
	ctx := context.Background()

	ctrl, err := hub.Controller(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, student, ctrl.User())
	assert.Len(t, ctrl.State().Conversations, 3)

	again, err := hub.Controller(ctx, student)
	require.NoError(t, err)
	assert.Same(t, ctrl, again)

	other, err := hub.Controller(ctx, staff)
	require.NoError(t, err)
	assert.NotSame(t, ctrl, other)
	assert.Empty(t, other.State().Conversations)

	assert.Equal(t, 2, hub.Len())
	assert.Equal(t, []int{1, 2}, cl.get())
}

func TestHub_Controller_concurrentFirstUse(t *testing.T) {
	hub, _ := newTestHub(t, 0)

	ctrls := make([]*chat.Controller, 8)
	var wg sync.WaitGroup
	for i := range ctrls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrls[i], _ = hub.Controller(context.Background(), student)
		}(i)
	}
	wg.Wait()

	for _, ctrl := range ctrls {
		assert.Same(t, ctrls[0], ctrl)
	}
	assert.Equal(t, 1, hub.Len())
}

func TestHub_Drop(t *testing.T) {
	hub, cl := newTestHub(t, 0)
	ctx := context.Background()

	ctrl, err := hub.Controller(ctx, student)
	require.NoError(t, err)

	assert.True(t, hub.Drop(student.ID))
	assert.False(t, hub.Drop(student.ID))
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, []int{1, 0}, cl.get())

	// the dropped controller is stopped
	assert.ErrorIs(t, ctrl.SelectConversation(ctx, okaforConvID), chat.ErrStopped)

	fresh, err := hub.Controller(ctx, student)
	require.NoError(t, err)
	assert.NotSame(t, ctrl, fresh)
}

func TestHub_Reap(t *testing.T) {
	hub, cl := newTestHub(t, 10*time.Minute)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	hub.nowFunc = func() time.Time { return now }

	idle, err := hub.Controller(ctx, student)
	require.NoError(t, err)
	_, err = hub.Controller(ctx, staff)
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = hub.Controller(ctx, staff) // still in use
	require.NoError(t, err)
	assert.Zero(t, hub.Reap())

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, hub.Reap())
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, []int{1, 2, 1}, cl.get())
	assert.ErrorIs(t, idle.Start(ctx), chat.ErrStopped)
}

func TestHub_Reap_disabled(t *testing.T) {
	hub, _ := newTestHub(t, 0)
	hub.nowFunc = func() time.Time { return time.Now().Add(24 * time.Hour) }

	_, err := hub.Controller(context.Background(), student)
	require.NoError(t, err)
	assert.Zero(t, hub.Reap())
	assert.Equal(t, 1, hub.Len())
}

func TestHub_Close(t *testing.T) {
	hub, cl := newTestHub(t, time.Minute)
	hub.Start()
	ctx := context.Background()

	first, err := hub.Controller(ctx, student)
	require.NoError(t, err)
	_, err = hub.Controller(ctx, staff)
	require.NoError(t, err)

	hub.Close()
	hub.Close()

	assert.Equal(t, 0, hub.Len())
	counts := cl.get()
	assert.Equal(t, 0, counts[len(counts)-1])
	assert.ErrorIs(t, first.Start(ctx), chat.ErrStopped)

	ctrl, err := hub.Controller(ctx, student)
	assert.Nil(t, ctrl)
	assert.ErrorIs(t, err, chat.ErrStopped)
}

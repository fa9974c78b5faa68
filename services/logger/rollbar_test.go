package logsvc

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"

	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/user"
)

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(&buf, false)
	usr := user.User{ID: 7, Username: "s7"}

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("loading messages", errors.New("boom"), usr, user.User{ID: 8, Username: "other"})
	out := buf.String()
	assert.Contains(t, out, "[WARN] loading messages")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "user: 7 (s7)")
	assert.NotContains(t, out, "other")

	buf.Reset()
	NewStdLogger(&buf, true).Debug("shown", map[string]interface{}{"conversation": 3})
	assert.Contains(t, buf.String(), "[DEBUG] shown")
	assert.Contains(t, buf.String(), "conversation:3")
}

func TestRollbarLogger_concurrentUsers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST"})
	logger.Enable(false)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			usr := user.User{ID: id, Username: fmt.Sprintf("s%d", id)}
			logger.Warn("fetching messages for search", errors.New("boom"), usr)
			logger.Error("loading conversations", errors.New("boom"), map[string]interface{}{"conversation": id}, usr)
		}(i)
	}
	wg.Wait()

	out := buf.String()
	for i := 1; i <= 50; i++ {
		assert.Contains(t, out, fmt.Sprintf("user: %d (s%d)", i, i))
	}
}

func Test_personContext(t *testing.T) {
	tests := []struct {
		name string
		usr  *user.User
		want *rollbar.Person
	}{
		{name: "no user"},
		{name: "unresolvable", usr: &user.User{Username: "ghost"}},
		{
			name: "resolvable", usr: &user.User{ID: 7, Username: "s7", Email: "s7@hsannu.com"},
			want: &rollbar.Person{Id: "7", Username: "s7", Email: "s7@hsannu.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			person, ok := rollbar.PersonFromContext(personContext(tt.usr))
			if tt.want == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, person)
		})
	}
}

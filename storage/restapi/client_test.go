package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
)

type recorded struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  [][]byte
}

func (rec *recorded) add(r *http.Request, body []byte) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.headers = append(rec.headers, r.Header.Clone())
	rec.bodies = append(rec.bodies, body)
}

func (rec *recorded) last() (http.Header, []byte) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := len(rec.headers)
	return rec.headers[n-1], rec.bodies[n-1]
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestServer(t *testing.T) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/messaging/conversations/{userId}", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r, nil)
		switch r.PathValue("userId") {
		case "7":
			writeJSON(w, http.StatusOK, `{"success": true, "conversations": [
				{"id": 1, "created_at": "2024-05-01T08:00:00Z", "participants": [{"id": 3, "name": "Mr. Okafor"}], "unread_count": 0,
				 "latest_message": {"id": 10, "sender_id": 3, "sender": "Mr. Okafor", "content": "Midterm moved", "created_at": "2024-05-02 10:00:00", "read": true}}
			]}`)
		case "8":
			writeJSON(w, http.StatusOK, `{"success": true, "conversations": null}`)
		case "9":
			writeJSON(w, http.StatusOK, `{"success": false, "error": "user suspended"}`)
		default:
			writeJSON(w, http.StatusInternalServerError, `{"error": "database unavailable"}`)
		}
	})

	mux.HandleFunc("GET /api/messaging/conversation/{conversationId}/messages", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r, nil)
		switch r.PathValue("conversationId") {
		case "1":
			if r.URL.Query().Get("user_id") != "7" {
				writeJSON(w, http.StatusForbidden, `{"success": false, "message": "not a participant"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"success": true, "messages": [
				{"id": 10, "conversation_id": 1, "sender_id": 3, "sender_name": "Mr. Okafor", "content": "Midterm moved", "created_at": "2024-05-02 10:00:00", "read": true}
			]}`)
		case "2":
			writeJSON(w, http.StatusOK, `{"success": true, "messages": null}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"success": false, "error": "conversation not found"}`)
		}
	})

	mux.HandleFunc("POST /api/messaging/messages", func(w http.ResponseWriter, r *http.Request) {
		var nm chat.NewMessage
		_ = json.NewDecoder(r.Body).Decode(&nm)
		body, _ := json.Marshal(nm)
		rec.add(r, body)
		if nm.ConversationID != 1 {
			writeJSON(w, http.StatusOK, `{"success": false, "message": "conversation closed"}`)
			return
		}
		writeJSON(w, http.StatusCreated, `{"success": true, "message":
			{"id": 11, "conversation_id": 1, "sender_id": 7, "sender_name": "Stu Dent", "content": "thanks", "created_at": "2024-05-02T10:05:00Z", "read": false}}`)
	})

	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		raw, _ := json.Marshal(body)
		rec.add(r, raw)
		switch {
		case body["username"] == "s7" && body["password"] == "secret":
			writeJSON(w, http.StatusOK, `{"id": "7", "username": "s7", "name": "Stu Dent", "role": "student", "email": "s7@hsannu.com", "password": "hash"}`)
		case body["username"] == "ghost":
			writeJSON(w, http.StatusOK, `{"id": null, "username": "ghost"}`)
		case body["username"] == "down":
			writeJSON(w, http.StatusServiceUnavailable, `{"error": "maintenance"}`)
		default:
			writeJSON(w, http.StatusUnauthorized, `{"error": "Invalid username or password"}`)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second, nil, false), rec
}

func TestChatRepository_ListConversations(t *testing.T) {
	client, rec := newTestServer(t)
	repo := NewChatRepository(client)
	ctx := context.Background()

	convs, err := repo.ListConversations(ctx, 7)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Mr. Okafor", convs[0].Primary().DisplayName())
	assert.Equal(t, "Midterm moved", convs[0].Preview())
	assert.True(t, time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC).Equal(convs[0].LatestActivity()))

	header, _ := rec.last()
	assert.Equal(t, "no-store", header.Get("Cache-Control"))
	assert.NotEmpty(t, header.Get(HeaderRequestID))

	convs, err = repo.ListConversations(ctx, 8)
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}

func TestChatRepository_Errors(t *testing.T) {
	client, _ := newTestServer(t)
	repo := NewChatRepository(client)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		status  int
		message string
	}{
		{
			name:    "success false",
			call:    func() error { _, err := repo.ListConversations(ctx, 9); return err },
			status:  http.StatusOK,
			message: "user suspended",
		},
		{
			name:    "server error",
			call:    func() error { _, err := repo.ListConversations(ctx, 10); return err },
			status:  http.StatusInternalServerError,
			message: "database unavailable",
		},
		{
			name:    "message as error",
			call:    func() error { _, err := repo.ListMessages(ctx, 1, 8); return err },
			status:  http.StatusForbidden,
			message: "not a participant",
		},
		{
			name:    "not found",
			call:    func() error { _, err := repo.ListMessages(ctx, 3, 7); return err },
			status:  http.StatusNotFound,
			message: "conversation not found",
		},
		{
			name: "send rejected",
			call: func() error {
				_, err := repo.SendMessage(ctx, chat.NewMessage{ConversationID: 2, SenderID: 7, Content: "hi"})
				return err
			},
			status:  http.StatusOK,
			message: "conversation closed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestChatRepository_NoIdentity(t *testing.T) {
	client, rec := newTestServer(t)
	repo := NewChatRepository(client)
	ctx := context.Background()

	_, err := repo.ListConversations(ctx, 0)
	assert.ErrorIs(t, err, chat.ErrNoIdentity)
	_, err = repo.ListMessages(ctx, 1, -1)
	assert.ErrorIs(t, err, chat.ErrNoIdentity)
	_, err = repo.SendMessage(ctx, chat.NewMessage{ConversationID: 1, Content: "hi"})
	assert.ErrorIs(t, err, chat.ErrNoIdentity)

	assert.Empty(t, rec.headers)
}

func TestChatRepository_ListMessages(t *testing.T) {
	client, _ := newTestServer(t)
	repo := NewChatRepository(client)
	ctx := context.Background()

	msgs, err := repo.ListMessages(ctx, 1, 7)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 10, msgs[0].ID)
	assert.Equal(t, "Mr. Okafor", msgs[0].SenderName)

	msgs, err = repo.ListMessages(ctx, 2, 7)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestChatRepository_SendMessage(t *testing.T) {
	client, rec := newTestServer(t)
	repo := NewChatRepository(client)

	ctx := WithRequestID(context.Background(), "req-42")
	msg, err := repo.SendMessage(ctx, chat.NewMessage{ConversationID: 1, SenderID: 7, Content: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, 11, msg.ID)
	assert.Equal(t, "thanks", msg.Content)

	header, body := rec.last()
	assert.Equal(t, "req-42", header.Get(HeaderRequestID))
	assert.JSONEq(t, `{"conversation_id": 1, "sender_id": 7, "content": "thanks"}`, string(body))
}

func TestAuthenticator(t *testing.T) {
	client, rec := newTestServer(t)
	auth := NewAuthenticator(client)
	ctx := context.Background()

	usr, err := auth.Authenticate(ctx, user.LoginRequest{Username: "s7", Password: "secret", DeviceID: "cli"})
	require.NoError(t, err)
	assert.Equal(t, 7, usr.ID)
	assert.Equal(t, "Stu Dent", usr.Name)
	assert.True(t, usr.IsStudent())
	assert.Equal(t, []string{}, usr.AdditionalRoles)

	_, body := rec.last()
	assert.JSONEq(t, `{"username": "s7", "password": "secret", "deviceID": "cli"}`, string(body))

	tests := []struct {
		name     string
		username string
		rejected bool
	}{
		{name: "bad credentials", username: "s8", rejected: true},
		{name: "unresolvable id", username: "ghost", rejected: true},
		{name: "upstream down", username: "down", rejected: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, user.LoginRequest{Username: tc.username, Password: "nope"})
			require.Error(t, err)
			assert.Equal(t, tc.rejected, errors.Is(err, user.ErrAuthenticationFailed))
		})
	}
}

func TestRequestIDFrom(t *testing.T) {
	assert.Equal(t, "abc", RequestIDFrom(WithRequestID(context.Background(), "abc")))

	a, b := RequestIDFrom(context.Background()), RequestIDFrom(context.Background())
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

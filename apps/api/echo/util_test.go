package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
	logsvc "github.com/hsannu/connect/services/logger"
	"github.com/hsannu/connect/storage/inmem"
	"github.com/hsannu/connect/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}

	// seeded ids
	studentID      = 1
	okaforConvID   = 1
	lindqvConvID   = 2
	abaraConvID    = 3
	seededConvsIDs = []int{abaraConvID, okaforConvID, lindqvConvID}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func testConfig() *core.Config {
	conf := &core.Config{
		TestMode:  true,
		AppName:   "Connect",
		SecretKey: "secret",
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	return conf
}

func testLogger() core.Logger {
	return logsvc.NewStdLogger(io.Discard, false)
}

// setup returns a server backed by the seeded in-memory portal.
func setup(t *testing.T) (*server, *inmem.DB) {
	db := testutil.SeedDB(t)
	logger := testLogger()
	conf := testConfig()
	validate, translator := core.NewValidator()

	hub := NewHub(inmem.NewChatRepository(db), HubOptions{
		Chat: chat.Options{
			ConversationPollInterval: time.Hour,
			MessagePollInterval:      time.Hour,
			SearchDebounce:           10 * time.Millisecond,
		},
	}, logger)
	t.Cleanup(hub.Close)

	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        user.NewService(inmem.NewAuthenticator(db), nil),
		Hub:            hub,
		DisableReqLogs: true,
	})
	return srv.(*server), db
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, s *server, usr user.User, origIat ...int64) string {
	token, err := s.auth.generateToken(s.auth.userClaims(usr, origIat...))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) chat.State {
	var state chat.State
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decodeState() failed: %v; body %s", err, rec.Body.String())
	}
	return state
}

func conversationIDs(convs []chat.Conversation) []int {
	ids := make([]int, len(convs))
	for i, conv := range convs {
		ids[i] = conv.ID
	}
	return ids
}

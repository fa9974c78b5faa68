package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hsannu/connect/core/user"
)

var (
	errBoom = errors.New("boom")
	base    = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	student = user.User{ID: 7, Role: user.RoleStudent, Username: "s7", Name: "Stu Dent"}
)

func at(minutes int) Timestamp {
	return NewTimestamp(base.Add(time.Duration(minutes) * time.Minute))
}

func newConv(id int, name, preview string, createdAt, lastAt int) Conversation {
	conv := Conversation{
		ID:           id,
		CreatedAt:    at(createdAt),
		Participants: []Participant{{ID: 100 + id, Name: name, Role: user.RoleTeacher}},
	}
	if preview != "" {
		conv.LatestMessage = &LatestMessage{ID: 1000 + id, SenderID: 100 + id, Sender: name, Content: preview, CreatedAt: at(lastAt)}
	}
	return conv
}

func newMsg(id, convID int, content string, minutes int) Message {
	return Message{ID: id, ConversationID: convID, SenderID: 100 + convID, Content: content, CreatedAt: at(minutes)}
}

// fakeRepo is an in-memory Repository that counts calls and can hold requests on gates.
type fakeRepo struct {
	mu          sync.Mutex
	convs       []Conversation
	msgs        map[int][]Message
	listErr     error
	msgsErr     error
	sendErr     error
	gate        chan struct{}         // holds every ListMessages call when set
	gates       map[int]chan struct{} // holds ListMessages of one conversation
	delay       time.Duration
	listCalls   int
	msgCalls    map[int]int
	sendCalls   int
	inFlight    int
	maxInFlight int
	nextID      int
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo(convs ...Conversation) *fakeRepo {
	return &fakeRepo{
		convs:    convs,
		msgs:     make(map[int][]Message),
		gates:    make(map[int]chan struct{}),
		msgCalls: make(map[int]int),
		nextID:   5000,
	}
}

func (r *fakeRepo) ListConversations(ctx context.Context, userID int) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	convs := make([]Conversation, len(r.convs))
	copy(convs, r.convs)
	return convs, nil
}

func (r *fakeRepo) ListMessages(ctx context.Context, conversationID, userID int) ([]Message, error) {
	r.mu.Lock()
	r.msgCalls[conversationID]++
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	gate := r.gate
	if g, ok := r.gates[conversationID]; ok {
		gate = g
	}
	delay, err := r.delay, r.msgsErr
	msgs := cloneMessages(r.msgs[conversationID])
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *fakeRepo) SendMessage(ctx context.Context, nm NewMessage) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sendCalls++
	if r.sendErr != nil {
		return Message{}, r.sendErr
	}
	r.nextID++
	msg := Message{
		ID:             r.nextID,
		ConversationID: nm.ConversationID,
		SenderID:       nm.SenderID,
		SenderName:     student.Name,
		Content:        nm.Content,
		CreatedAt:      at(500 + r.nextID),
	}
	r.msgs[nm.ConversationID] = append(r.msgs[nm.ConversationID], msg)
	return msg, nil
}

func (r *fakeRepo) setMessages(conversationID int, msgs ...Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[conversationID] = msgs
}

func (r *fakeRepo) addMessages(conversationID int, msgs ...Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[conversationID] = append(r.msgs[conversationID], msgs...)
}

func (r *fakeRepo) setConversations(convs ...Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs = convs
}

func (r *fakeRepo) setErrs(listErr, msgsErr, sendErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listErr, r.msgsErr, r.sendErr = listErr, msgsErr, sendErr
}

func (r *fakeRepo) hold(conversationID int) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := make(chan struct{})
	r.gates[conversationID] = g
	return g
}

func (r *fakeRepo) holdAll() chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = make(chan struct{})
	return r.gate
}

func (r *fakeRepo) counts() (list, send int, msgs map[int]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs = make(map[int]int, len(r.msgCalls))
	for k, v := range r.msgCalls {
		msgs[k] = v
	}
	return r.listCalls, r.sendCalls, msgs
}

func (r *fakeRepo) inFlightNow() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *fakeRepo) peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInFlight
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// countingRecorder counts searches by outcome.
type countingRecorder struct {
	mu         sync.Mutex
	published  int
	superseded int
	requests   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{requests: make(map[string]int)}
}

func (rec *countingRecorder) ObserveRequest(op string, _ time.Duration, _ error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.requests[op]++
}

func (rec *countingRecorder) ObserveSearch(_ time.Duration, _ int, superseded bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if superseded {
		rec.superseded++
	} else {
		rec.published++
	}
}

func (rec *countingRecorder) searches() (published, superseded int) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.published, rec.superseded
}

func newTestController(repo Repository, opts ...func(*Options)) *Controller {
	o := Options{
		ConversationPollInterval: time.Hour,
		MessagePollInterval:      time.Hour,
		SearchDebounce:           10 * time.Millisecond,
		SearchBatchSize:          6,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewController(repo, student, o, nopLogger{})
}

func ids(convs []Conversation) []int {
	out := make([]int, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

func msgIDs(msgs []Message) []int {
	out := make([]int, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

package chat

import "time"

// Operations reported to a Recorder.
const (
	OpListConversations = "list_conversations"
	OpListMessages      = "list_messages"
	OpSearchFetch       = "search_fetch"
	OpSendMessage       = "send_message"
)

// Recorder receives timings of the controller's work.
type Recorder interface {
	ObserveRequest(op string, d time.Duration, err error)
	ObserveSearch(d time.Duration, results int, superseded bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, time.Duration, error) {}

func (nopRecorder) ObserveSearch(time.Duration, int, bool) {}

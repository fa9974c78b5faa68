package chat

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Timestamp is a wire timestamp. The API is not consistent about its format
// (RFC3339, "2006-01-02 15:04:05", ...): anything dateparse understands is accepted,
// zone-less values are taken as UTC and unparseable values become the zero time.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return Timestamp{}
	}
	return Timestamp{Time: t}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// epoch millis
		var ms int64
		if err = json.Unmarshal(data, &ms); err != nil {
			*ts = Timestamp{}
			return nil
		}
		*ts = Timestamp{Time: time.UnixMilli(ms).UTC()}
		return nil
	}
	*ts = ParseTimestamp(s)
	return nil
}

// Participant is a member of a Conversation.
type Participant struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName is Name if set, else "First Last", else "User {id}".
func (p Participant) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return p.Name
	}
	if combined := strings.TrimSpace(p.FirstName + " " + p.LastName); combined != "" {
		return combined
	}
	return "User " + strconv.Itoa(p.ID)
}

// LatestMessage is the preview of the last message of a Conversation.
type LatestMessage struct {
	ID        int       `json:"id"`
	SenderID  int       `json:"sender_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	Read      bool      `json:"read"`
}

type Conversation struct {
	ID            int            `json:"id"`
	CreatedAt     Timestamp      `json:"created_at"`
	Participants  []Participant  `json:"participants"`
	UnreadCount   int            `json:"unread_count"`
	LatestMessage *LatestMessage `json:"latest_message"`
}

// Primary returns the other party of the thread (the first participant listed).
func (c Conversation) Primary() Participant {
	if len(c.Participants) == 0 {
		return Participant{}
	}
	return c.Participants[0]
}

// LatestActivity is the latest message time if there is one, else the creation time.
func (c Conversation) LatestActivity() time.Time {
	if c.LatestMessage != nil && !c.LatestMessage.CreatedAt.IsZero() {
		return c.LatestMessage.CreatedAt.Time
	}
	return c.CreatedAt.Time
}

// Preview is the latest message content, if any.
func (c Conversation) Preview() string {
	if c.LatestMessage == nil {
		return ""
	}
	return c.LatestMessage.Content
}

// Message is immutable once created.
type Message struct {
	ID             int       `json:"id"`
	ConversationID int       `json:"conversation_id"`
	SenderID       int       `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	CreatedAt      Timestamp `json:"created_at"`
	Read           bool      `json:"read"`
}

// NewMessage contains information needed to post a Message.
type NewMessage struct {
	ConversationID int    `json:"conversation_id" validate:"required,gt=0"`
	SenderID       int    `json:"sender_id" validate:"required,gt=0"`
	Content        string `json:"content" validate:"required,notblank"`
}

// SortByActivity returns a copy of convs ordered by latest activity, most recent first.
// Ties keep their relative order.
func SortByActivity(convs []Conversation) []Conversation {
	sorted := make([]Conversation, len(convs))
	copy(sorted, convs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LatestActivity().After(sorted[j].LatestActivity())
	})
	return sorted
}

package chat

import "sync"

// MessageCache holds the fetched history of each conversation, keyed by conversation id.
// A conversation that was fetched and turned out empty has an entry with no messages;
// a conversation that was never fetched (or whose fetch failed) has no entry at all.
// Entries are never evicted. Writers race on the same authoritative source, the last one wins.
type MessageCache struct {
	mu      sync.RWMutex
	entries map[int][]Message
}

func NewMessageCache() *MessageCache {
	return &MessageCache{entries: make(map[int][]Message)}
}

// Lookup returns a copy of the cached messages and whether the conversation was fetched.
func (mc *MessageCache) Lookup(conversationID int) ([]Message, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	msgs, ok := mc.entries[conversationID]
	if !ok {
		return nil, false
	}
	return cloneMessages(msgs), true
}

// Put replaces the entry of a conversation.
func (mc *MessageCache) Put(conversationID int, msgs []Message) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries[conversationID] = cloneMessages(msgs)
}

// Append adds msg to an existing entry. Conversations that were never fetched stay absent:
// a partial history must not pass for a complete one.
func (mc *MessageCache) Append(conversationID int, msg Message) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	msgs, ok := mc.entries[conversationID]
	if !ok {
		return false
	}
	mc.entries[conversationID] = append(msgs, msg)
	return true
}

func (mc *MessageCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

func cloneMessages(msgs []Message) []Message {
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return cp
}

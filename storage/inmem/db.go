package inmem

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
)

var NowFunc = time.Now // mockable

type (
	// DB is an in-memory stand-in for the portal API, used in development and tests.
	DB struct {
		user *userTable
		chat *chatTable
	}

	account struct {
		user         user.User
		passwordHash []byte
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*account
	}

	thread struct {
		id           int
		createdAt    time.Time
		participants []int
		messages     []chat.Message
	}

	chatTable struct {
		sync.RWMutex
		pkCount    int
		msgPkCount int
		table      map[int]*thread
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[int]*account)},
		chat: &chatTable{table: make(map[int]*thread)},
	}
}

// AddUser registers usr with a bcrypt hash of pwd and returns it with its id set.
func (db *DB) AddUser(usr user.User, pwd string) (user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
	if err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}

	db.user.Lock()
	defer db.user.Unlock()

	for _, acc := range db.user.table {
		if strings.EqualFold(acc.user.Username, usr.Username) {
			return user.User{}, errors.Errorf("username %q already exists", usr.Username)
		}
	}
	db.user.pkCount++
	usr.ID = db.user.pkCount
	if usr.AdditionalRoles == nil {
		usr.AdditionalRoles = []string{}
	}
	db.user.table[usr.ID] = &account{user: usr, passwordHash: hash}
	return usr, nil
}

// AddConversation opens a thread between userIDs.
func (db *DB) AddConversation(userIDs ...int) (int, error) {
	return db.addConversationAt(NowFunc(), userIDs...)
}

func (db *DB) addConversationAt(createdAt time.Time, userIDs ...int) (int, error) {
	db.user.RLock()
	for _, id := range userIDs {
		if _, ok := db.user.table[id]; !ok {
			db.user.RUnlock()
			return 0, errors.Errorf("user %d not found", id)
		}
	}
	db.user.RUnlock()

	db.chat.Lock()
	defer db.chat.Unlock()

	db.chat.pkCount++
	th := &thread{
		id:           db.chat.pkCount,
		createdAt:    createdAt.UTC(),
		participants: append([]int(nil), userIDs...),
	}
	db.chat.table[th.id] = th
	return th.id, nil
}

// AddMessage stores a message from senderID in a thread, as SendMessage does.
func (db *DB) AddMessage(conversationID, senderID int, content string) (chat.Message, error) {
	return db.addMessageAt(NowFunc(), conversationID, senderID, content)
}

func (db *DB) addMessageAt(at time.Time, conversationID, senderID int, content string) (chat.Message, error) {
	sender, err := db.lookupUser(senderID)
	if err != nil {
		return chat.Message{}, err
	}

	db.chat.Lock()
	defer db.chat.Unlock()

	th, ok := db.chat.table[conversationID]
	if !ok || !th.hasParticipant(senderID) {
		return chat.Message{}, chat.ErrNotFound
	}
	db.chat.msgPkCount++
	msg := chat.Message{
		ID:             db.chat.msgPkCount,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     sender.DisplayName(),
		Content:        content,
		CreatedAt:      chat.NewTimestamp(at.UTC()),
	}
	th.messages = append(th.messages, msg)
	return msg, nil
}

func (db *DB) lookupUser(id int) (user.User, error) {
	db.user.RLock()
	defer db.user.RUnlock()

	acc, ok := db.user.table[id]
	if !ok {
		return user.User{}, errors.Errorf("user %d not found", id)
	}
	return acc.user, nil
}

func (th *thread) hasParticipant(userID int) bool {
	for _, id := range th.participants {
		if id == userID {
			return true
		}
	}
	return false
}

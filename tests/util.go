package testutil

import (
	"testing"

	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
	"github.com/hsannu/connect/storage/inmem"
)

// OpenDB returns an empty in-memory portal backend.
func OpenDB(t *testing.T) *inmem.DB {
	t.Helper()
	return inmem.Open()
}

// SeedDB returns an in-memory portal backend holding the demo accounts and threads.
func SeedDB(t *testing.T) *inmem.DB {
	t.Helper()
	db := inmem.Open()
	if err := inmem.Seed(db); err != nil {
		t.Fatalf("SeedDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	db *inmem.DB,
	name, uname, email, pwd string,
	role string,
	additionalRoles ...string,
) user.User {
	t.Helper()
	usr, err := db.AddUser(user.User{
		Role:            role,
		Username:        uname,
		Name:            name,
		Email:           email,
		AdditionalRoles: additionalRoles,
	}, pwd)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateConversation(t *testing.T, db *inmem.DB, users ...user.User) int {
	t.Helper()
	ids := make([]int, len(users))
	for i, usr := range users {
		ids[i] = usr.ID
	}
	id, err := db.AddConversation(ids...)
	if err != nil {
		t.Fatalf("CreateConversation() failed: %v", err)
	}
	return id
}

func CreateMessage(t *testing.T, db *inmem.DB, conversationID int, sender user.User, content string) chat.Message {
	t.Helper()
	msg, err := db.AddMessage(conversationID, sender.ID, content)
	if err != nil {
		t.Fatalf("CreateMessage() failed: %v", err)
	}
	return msg
}

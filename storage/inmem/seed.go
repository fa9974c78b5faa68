package inmem

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hsannu/connect/core/user"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password"

type seedMessage struct {
	fromStudent bool
	content     string
	ago         time.Duration
}

// Seed fills db with the demo accounts (student, staff) and a few teacher threads.
func Seed(db *DB) error {
	student, err := db.AddUser(user.User{
		Role:            user.RoleStudent,
		Username:        "student",
		Name:            "Student User",
		Email:           "student@hsannu.com",
		AdditionalRoles: []string{"class_representative"},
	}, DemoPassword)
	if err != nil {
		return errors.Wrap(err, "seeding student")
	}
	if _, err = db.AddUser(user.User{
		Role:            user.RoleStaff,
		Username:        "staff",
		Name:            "Staff User",
		Email:           "staff@hsannu.com",
		AdditionalRoles: []string{user.RoleTeacher, user.RoleAdmin},
	}, DemoPassword); err != nil {
		return errors.Wrap(err, "seeding staff")
	}

	now := NowFunc()
	threads := []struct {
		teacher  user.User
		opened   time.Duration
		messages []seedMessage
	}{
		{
			teacher: user.User{Role: user.RoleTeacher, Username: "okafor", Name: "Chidi Okafor", Email: "okafor@hsannu.com"},
			opened:  72 * time.Hour,
			messages: []seedMessage{
				{fromStudent: true, content: "Is the midterm open book?", ago: 50 * time.Hour},
				{content: "No, but you may bring one page of notes.", ago: 49 * time.Hour},
				{content: "Midterm moved to Friday, room 204.", ago: 2 * time.Hour},
			},
		},
		{
			teacher: user.User{Role: user.RoleTeacher, Username: "lindqvist", Name: "Astrid Lindqvist", Email: "lindqvist@hsannu.com"},
			opened:  48 * time.Hour,
			messages: []seedMessage{
				{content: "Your lab report is due on Monday.", ago: 30 * time.Hour},
				{fromStudent: true, content: "Thanks, I'll hand it in.", ago: 29 * time.Hour},
			},
		},
		{
			teacher: user.User{Role: user.RoleTeacher, Username: "abara", Name: "Ngozi Abara", Email: "abara@hsannu.com"},
			opened:  time.Hour,
		},
	}

	for _, th := range threads {
		teacher, err := db.AddUser(th.teacher, DemoPassword)
		if err != nil {
			return errors.Wrapf(err, "seeding %s", th.teacher.Username)
		}
		convID, err := db.addConversationAt(now.Add(-th.opened), teacher.ID, student.ID)
		if err != nil {
			return errors.Wrap(err, "seeding conversation")
		}
		for _, m := range th.messages {
			sender := teacher.ID
			if m.fromStudent {
				sender = student.ID
			}
			if _, err = db.addMessageAt(now.Add(-m.ago), convID, sender, m.content); err != nil {
				return errors.Wrap(err, "seeding message")
			}
		}
	}
	return nil
}

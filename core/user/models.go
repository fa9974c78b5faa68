package user

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

var StaffRoles = []string{RoleStaff, RoleTeacher, RoleAdmin}

// User is the identity of the person using the portal, as returned by the login endpoint
// and persisted by the local identity Store.
type User struct {
	ID              int      `json:"id"`
	Role            string   `json:"role"`
	Username        string   `json:"username"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	AdditionalRoles []string `json:"additional_roles"`
}

// UnmarshalJSON accepts the id either as a number or as a numeric string.
// A missing or non-numeric id leaves the User unresolved.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		ID json.RawMessage `json:"id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.ID = parseID(aux.ID)
	return nil
}

func parseID(raw json.RawMessage) int {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	if id, err := strconv.Atoi(s); err == nil {
		return id
	}
	return 0
}

// Resolvable reports whether the User carries a usable numeric id.
// Network operations are disabled for unresolved identities.
func (u User) Resolvable() bool {
	return u.ID > 0
}

func (u User) HasRole(role string) bool {
	if u.Role == role {
		return true
	}
	for _, r := range u.AdditionalRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

func (u User) IsStaff() bool {
	for _, role := range StaffRoles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// DisplayName falls back to the username, then to "User {id}".
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return "User " + strconv.Itoa(u.ID)
}

package models

import (
	"fmt"
	"strings"
)

// User is a ChordyPi account identified by its Pi Network uid.
type User struct {
	record
	PiUID    string
	Username string
}

// NewUser creates a new [User] with the given sequence, Pi uid and username.
func NewUser(sequence int, piUID, username string) *User {
	return &User{record: newRecord(sequence), PiUID: piUID, Username: username}
}

// Validate checks that the user has a Pi uid and username.
func (u *User) Validate() error {
	if strings.TrimSpace(u.PiUID) == "" {
		return fmt.Errorf("pi uid is required")
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

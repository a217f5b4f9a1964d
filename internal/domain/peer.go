package domain

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyChatRef is returned by ParseChatRef for blank input.
var ErrEmptyChatRef = errors.New("chat reference is empty")

// PeerRef identifies a conversation either by numeric id or by handle.
// Exactly one of ID / Username is meaningful; Numeric tells which.
type PeerRef struct {
	ID       int64
	Username string
}

// Numeric reports whether the reference is a numeric peer id.
func (p PeerRef) Numeric() bool { return p.Username == "" }

// String returns the reference in the form the caller supplied it.
func (p PeerRef) String() string {
	if p.Numeric() {
		return strconv.FormatInt(p.ID, 10)
	}
	return p.Username
}

// ParseChatRef resolves the dual chat reference form: a string that parses
// fully as a (optionally signed) integer is a numeric peer such as
// "-1001234567890"; anything else is a handle, with one leading "@" dropped.
func ParseChatRef(s string) (PeerRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PeerRef{}, ErrEmptyChatRef
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return PeerRef{ID: id}, nil
	}
	name := strings.TrimPrefix(s, "@")
	if name == "" {
		return PeerRef{}, ErrEmptyChatRef
	}
	return PeerRef{Username: name}, nil
}

package scorm

import (
	"fmt"
	"strings"
)

// Scope identifies one block instance inside a course.
type Scope struct {
	Org       string `json:"org"`
	Course    string `json:"course"`
	BlockType string `json:"block_type"`
	BlockID   string `json:"block_id"`
}

func (s Scope) segments() []string {
	return []string{s.Org, s.Course, s.BlockType, s.BlockID}
}

// Validate rejects scopes whose segments could not be used as single path
// components.
func (s Scope) Validate() error {
	names := []string{"org", "course", "block type", "block id"}
	for i, seg := range s.segments() {
		switch {
		case seg == "":
			return fmt.Errorf("%w: empty %s", ErrInvalidScope, names[i])
		case strings.HasPrefix(seg, "."):
			return fmt.Errorf("%w: %s %q starts with a dot", ErrInvalidScope, names[i], seg)
		case strings.ContainsAny(seg, "/\\\x00"):
			return fmt.Errorf("%w: %s %q contains a separator", ErrInvalidScope, names[i], seg)
		}
	}
	return nil
}

// Key is the slash-joined form used as a record key and in logs.
func (s Scope) Key() string { return strings.Join(s.segments(), "/") }

func (s Scope) String() string { return s.Key() }

// ParseScope is the inverse of Key.
func ParseScope(key string) (Scope, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 4 {
		return Scope{}, fmt.Errorf("%w: %q must be org/course/block_type/block_id", ErrInvalidScope, key)
	}
	s := Scope{Org: parts[0], Course: parts[1], BlockType: parts[2], BlockID: parts[3]}
	return s, s.Validate()
}

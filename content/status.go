package content

import (
	"github.com/easelhq/easel/errors"
)

// Status enumerates the publication lifecycle states of a content record.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPublished       Status = "published"
)

// transitions maps each state to the set of states it may legally move to.
// published is terminal and has no entry.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusPublished},
	StatusRejected:        {StatusDraft},
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusPublished:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusPublished
}

// CanTransition reports whether from may legally move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns a copy of c with its status set to target.
//
// The state machine is a pure function: it holds no memory between calls and
// has no side effects beyond producing the new record. Callers are
// responsible for persisting the result. An illegal move returns an error
// wrapping errors.ErrInvalidTransition that names the attempted pair.
func Transition(c *Content, target Status) (*Content, error) {
	if !ValidStatus(target) {
		return nil, errors.Wrapf(errors.ErrInvalidTransition, "unknown status %q", target)
	}
	if !CanTransition(c.Status, target) {
		return nil, errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", c.Status, target)
	}

	next := *c
	next.Status = target
	return &next, nil
}

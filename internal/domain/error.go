package domain

import (
	"errors"
	"fmt"
)

// Kind is the closed set of business error categories.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindTeamExists      Kind = "TEAM_EXISTS"
	KindPRExists        Kind = "PR_EXISTS"
	KindPRMerged        Kind = "PR_MERGED"
	KindNotAssigned     Kind = "NOT_ASSIGNED"
	KindNoCandidate     Kind = "NO_CANDIDATE"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
)

// Error is a tagged business error. Entity and ID carry the identifiers the
// failing operation was working with; both may be empty for argument errors.
type Error struct {
	Kind    Kind
	Message string
	Entity  string
	ID      string
}

func (e *Error) Error() string {
	if e.Entity != "" && e.ID != "" {
		return fmt.Sprintf("%s: %s %q", e.Message, e.Entity, e.ID)
	}
	return e.Message
}

// Is matches by Kind, so errors.Is(err, ErrNotFound) holds for any NOT_FOUND
// error regardless of the attached context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrTeamExists      = &Error{Kind: KindTeamExists, Message: "team already exists"}
	ErrPRExists        = &Error{Kind: KindPRExists, Message: "pull request already exists"}
	ErrPRMerged        = &Error{Kind: KindPRMerged, Message: "cannot modify merged pull request"}
	ErrNotAssigned     = &Error{Kind: KindNotAssigned, Message: "user is not assigned as reviewer"}
	ErrNoCandidate     = &Error{Kind: KindNoCandidate, Message: "no active candidate available for assignment"}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
)

// NewNotFound reports a missing entity with its identifier.
func NewNotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found", Entity: entity, ID: id}
}

// NewTeamExists reports a duplicate team name.
func NewTeamExists(teamName string) *Error {
	return &Error{Kind: KindTeamExists, Message: "team already exists", Entity: "team", ID: teamName}
}

// NewPRExists reports a duplicate pull request id.
func NewPRExists(prID string) *Error {
	return &Error{Kind: KindPRExists, Message: "pull request already exists", Entity: "pull_request", ID: prID}
}

// NewPRMerged reports an attempt to modify a merged pull request.
func NewPRMerged(prID string) *Error {
	return &Error{Kind: KindPRMerged, Message: "cannot modify merged pull request", Entity: "pull_request", ID: prID}
}

// NewNotAssigned reports that a user is not a reviewer of the pull request.
func NewNotAssigned(prID, userID string) *Error {
	return &Error{Kind: KindNotAssigned, Message: "user " + userID + " is not assigned as reviewer", Entity: "pull_request", ID: prID}
}

// NewNoCandidate reports that no eligible replacement reviewer exists.
func NewNoCandidate(prID string) *Error {
	return &Error{Kind: KindNoCandidate, Message: "no active candidate available for assignment", Entity: "pull_request", ID: prID}
}

// KindOf extracts the error kind, or "" for non-business errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return 404
	case KindTeamExists, KindInvalidArgument:
		return 400
	case KindPRExists, KindPRMerged, KindNotAssigned, KindNoCandidate:
		return 409
	default:
		return 500
	}
}

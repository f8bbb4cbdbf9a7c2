package domain

import "time"

// User represents a team member. MemberSeq is the position in which the user
// was added to their team and is the ordering key for candidate selection.
type User struct {
	UserID    string
	Username  string
	TeamName  string
	IsActive  bool
	MemberSeq int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a new user.
func NewUser(userID, username, teamName string, isActive bool) User {
	now := time.Now().UTC()
	return User{
		UserID:    userID,
		Username:  username,
		TeamName:  teamName,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetIsActive sets the user's active status.
func (u *User) SetIsActive(isActive bool) {
	u.IsActive = isActive
	u.UpdatedAt = time.Now().UTC()
}

// CanBeReviewer checks if user can receive a reviewer assignment.
func (u *User) CanBeReviewer() bool {
	return u.IsActive
}

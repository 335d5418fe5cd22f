package domain

import "time"

// Subscription asks for a notification whenever someone reviews CourseID.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification tells UserID that Review was posted or edited on a course
// they follow. Review is a snapshot taken at fan-out time.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Review    Review    `json:"review"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKey is the natural identity of a notification.
type NotificationKey struct {
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
	AuthorID string `json:"author_id"`
}

// Key returns the natural identity of n.
func (n *Notification) Key() NotificationKey {
	return NotificationKey{UserID: n.UserID, CourseID: n.Review.CourseID(), AuthorID: n.Review.AuthorID}
}

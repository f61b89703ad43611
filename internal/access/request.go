// Package access implements the email-only sign-in protocol and the access request queue.
package access

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// Request records an email asking to join the service.
type Request struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email       string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	DisplayName string    `gorm:"column:name;size:320;not null" json:"name"`
	Status      string    `gorm:"column:status;size:16;not null;default:pending;index" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName exposes the table backing access requests.
func (Request) TableName() string {
	return "access_requests"
}

// Outcome enumerates the login protocol results.
type Outcome string

const (
	OutcomeLoggedIn  Outcome = "logged_in"
	OutcomePending   Outcome = "pending"
	OutcomeDenied    Outcome = "denied"
	OutcomeRequested Outcome = "requested"
)

// Message returns the human-readable text shown next to the outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeLoggedIn:
		return "Logged in"
	case OutcomePending:
		return "Your access request is pending admin approval."
	case OutcomeDenied:
		return "Your access request was denied. Contact your admin."
	case OutcomeRequested:
		return "Access request submitted! An admin will review your request."
	default:
		return ""
	}
}

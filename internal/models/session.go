package models

import "time"

type SessionStatus string

const (
	StatusActive       SessionStatus = "active"
	StatusEnded        SessionStatus = "ended"
	StatusEndedByAdmin SessionStatus = "ended_by_admin"
	StatusTimeout      SessionStatus = "timeout"
)

func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusEnded, StatusEndedByAdmin, StatusTimeout:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Owner is the identity snapshot bound to a session at creation.
type Owner struct {
	Subject       string     `bson:"subject" json:"subject"`
	Method        AuthMethod `bson:"auth_method" json:"auth_method"`
	Name          string     `bson:"name" json:"name"`
	Email         string     `bson:"email,omitempty" json:"email,omitempty"`
	Phone         string     `bson:"phone,omitempty" json:"phone,omitempty"`
	EmailVerified bool       `bson:"email_verified" json:"email_verified"`
	PhoneVerified bool       `bson:"phone_verified" json:"phone_verified"`
}

func (o Owner) Identity() Identity {
	return Identity{
		Subject:       o.Subject,
		Role:          RoleUser,
		Method:        o.Method,
		Name:          o.Name,
		Email:         o.Email,
		Phone:         o.Phone,
		EmailVerified: o.EmailVerified,
		PhoneVerified: o.PhoneVerified,
	}
}

type Assignment struct {
	AdminID    string    `bson:"admin_id" json:"admin_id"`
	AdminName  string    `bson:"admin_name" json:"admin_name"`
	AdminEmail string    `bson:"admin_email,omitempty" json:"admin_email,omitempty"`
	AssignedAt time.Time `bson:"assigned_at" json:"assigned_at"`
}

type AdminNote struct {
	Note       string    `bson:"note" json:"note"`
	AuthorID   string    `bson:"author_id" json:"author_id"`
	AuthorName string    `bson:"author_name" json:"author_name"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

type ClientContext struct {
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	PageURL   string `bson:"page_url,omitempty" json:"page_url,omitempty"`
	IP        string `bson:"ip,omitempty" json:"ip,omitempty"`
}

type Session struct {
	ID     string        `bson:"_id" json:"id"`
	Owner  Owner         `bson:"owner" json:"owner"`
	Status SessionStatus `bson:"status" json:"status"`

	StartedAt       time.Time  `bson:"started_at" json:"started_at"`
	EndedAt         *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	DurationSeconds *int64     `bson:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	EndReason       string     `bson:"end_reason,omitempty" json:"end_reason,omitempty"`
	EndedBy         string     `bson:"ended_by,omitempty" json:"ended_by,omitempty"`

	MessageCount       int64      `bson:"message_count" json:"message_count"`
	LastMessageAt      *time.Time `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	LastUserMessageAt  *time.Time `bson:"last_user_message_at,omitempty" json:"last_user_message_at,omitempty"`
	LastAdminMessageAt *time.Time `bson:"last_admin_message_at,omitempty" json:"last_admin_message_at,omitempty"`

	AssignedAdmin *Assignment `bson:"assigned_admin,omitempty" json:"assigned_admin,omitempty"`

	Priority         Priority    `bson:"priority" json:"priority"`
	Escalated        bool        `bson:"escalated" json:"escalated"`
	EscalationReason string      `bson:"escalation_reason,omitempty" json:"escalation_reason,omitempty"`
	EscalatedAt      *time.Time  `bson:"escalated_at,omitempty" json:"escalated_at,omitempty"`
	Tags             []string    `bson:"tags" json:"tags"`
	AdminNotes       []AdminNote `bson:"admin_notes" json:"admin_notes,omitempty"`

	Rating   *int   `bson:"rating,omitempty" json:"rating,omitempty"`
	Feedback string `bson:"feedback,omitempty" json:"feedback,omitempty"`

	Context   ClientContext `bson:"context" json:"context"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}

func (s *Session) OwnedBy(i Identity) bool {
	return i.Subject != "" && s.Owner.Subject == i.Subject
}

// Redacted hides admin-only fields from non-admin readers.
func (s Session) Redacted() Session {
	s.AdminNotes = nil
	return s
}

// SessionEnd carries the terminal transition applied by the repository.
type SessionEnd struct {
	Status          SessionStatus
	EndedAt         time.Time
	DurationSeconds int64
	Reason          string
	EndedBy         string
}

type Escalation struct {
	Reason string
	At     time.Time
}

// SessionFilter selects sessions for the admin listing and the reaper.
type SessionFilter struct {
	Status        SessionStatus
	Priority      Priority
	AssignedAdmin string
	Unassigned    bool
	EscalatedOnly bool
	StartedAfter  *time.Time
	Limit         int
	Offset        int
}

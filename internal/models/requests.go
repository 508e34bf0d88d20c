package models

import (
	"fmt"
	"strings"

	"storefront/support-service/internal/validator"
)

func validationError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, " // "))
}

type CreateSessionRequest struct {
	SessionID string        `json:"session_id" validate:"omitempty,max=100,excludesall= /?#"`
	Name      string        `json:"name" validate:"max=100"`
	Email     string        `json:"email" validate:"omitempty,email"`
	Priority  Priority      `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Context   ClientContext `json:"context"`
}

func (r CreateSessionRequest) Validate() error {
	return validationError(validator.Struct(r))
}

type EndSessionRequest struct {
	SessionID  string            `json:"session_id" validate:"required,max=100"`
	Reason     string            `json:"reason" validate:"max=500"`
	Rating     *int              `json:"rating"`
	Feedback   string            `json:"feedback" validate:"max=1000"`
	Categories *RatingCategories `json:"categories"`
}

func (r EndSessionRequest) Validate() error {
	if err := validationError(validator.Struct(r)); err != nil {
		return err
	}
	if r.Rating != nil && (*r.Rating < MinScore || *r.Rating > MaxScore) {
		return ErrOutOfRange
	}
	return nil
}

type SendMessageRequest struct {
	SessionID   string       `json:"session_id" validate:"required,max=100"`
	Text        string       `json:"text" validate:"max=5000"`
	Type        MessageType  `json:"type" validate:"omitempty,oneof=text image file auto_response"`
	Attachments []Attachment `json:"attachments" validate:"max=10,dive"`
	ReplyTo     string       `json:"reply_to" validate:"max=100"`
}

func (r SendMessageRequest) Validate() error {
	errs := validator.Struct(r)
	if strings.TrimSpace(r.Text) == "" && len(r.Attachments) == 0 {
		errs = append(errs, "text field is required")
	}
	return validationError(errs)
}

type RatingRequest struct {
	SessionID  string           `json:"session_id" validate:"required,max=100"`
	Score      int              `json:"rating"`
	Feedback   string           `json:"feedback" validate:"max=1000"`
	Categories RatingCategories `json:"categories"`
	Tags       []string         `json:"tags" validate:"max=10,dive,max=50"`
}

func (r RatingRequest) Validate() error {
	if err := validationError(validator.Struct(r)); err != nil {
		return err
	}
	if r.Score < MinScore || r.Score > MaxScore {
		return ErrOutOfRange
	}
	return nil
}

type AssignRequest struct {
	AdminID    string `json:"admin_id" validate:"max=100"`
	AdminName  string `json:"admin_name" validate:"max=100"`
	AdminEmail string `json:"admin_email" validate:"omitempty,email"`
}

func (r AssignRequest) Validate() error {
	return validationError(validator.Struct(r))
}

type EscalateRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (r EscalateRequest) Validate() error {
	return validationError(validator.Struct(r))
}

type TagRequest struct {
	Tag string `json:"tag" validate:"required,max=50"`
}

func (r TagRequest) Validate() error {
	return validationError(validator.Struct(r))
}

type NoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

func (r NoteRequest) Validate() error {
	return validationError(validator.Struct(r))
}

// ListQuery is the client-facing cursor read; After is an opaque message id.
type ListQuery struct {
	After          string
	Limit          int
	IncludeDeleted bool
}

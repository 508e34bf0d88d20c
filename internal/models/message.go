package models

import "time"

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAdmin SenderType = "admin"
)

// Counterpart returns the other side of the conversation.
func (s SenderType) Counterpart() SenderType {
	if s == SenderAdmin {
		return SenderUser
	}
	return SenderAdmin
}

type MessageType string

const (
	MessageText         MessageType = "text"
	MessageImage        MessageType = "image"
	MessageFile         MessageType = "file"
	MessageSystem       MessageType = "system"
	MessageAutoResponse MessageType = "auto_response"
)

type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

type SystemMessageType string

const (
	SystemSessionStarted SystemMessageType = "session_started"
	SystemSessionEnded   SystemMessageType = "session_ended"
	SystemAdminJoined    SystemMessageType = "admin_joined"
	SystemEscalated      SystemMessageType = "escalated"
	SystemSessionTimeout SystemMessageType = "session_timeout"
)

type SenderInfo struct {
	ID       string `bson:"id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Avatar   string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Verified bool   `bson:"verified" json:"verified"`
}

type Attachment struct {
	Name string `bson:"name" json:"name" validate:"required,max=255"`
	URL  string `bson:"url" json:"url" validate:"required,url"`
	Size int64  `bson:"size" json:"size" validate:"gte=0"`
	Type string `bson:"type" json:"type" validate:"max=100"`
}

type Message struct {
	ID          string       `bson:"_id" json:"id"`
	SessionID   string       `bson:"session_id" json:"session_id"`
	Sender      SenderType   `bson:"sender" json:"sender"`
	SenderInfo  SenderInfo   `bson:"sender_info" json:"sender_info"`
	Text        string       `bson:"text" json:"text"`
	Type        MessageType  `bson:"type" json:"type"`
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReplyTo     string       `bson:"reply_to,omitempty" json:"reply_to,omitempty"`

	Status      DeliveryStatus `bson:"status" json:"status"`
	DeliveredAt *time.Time     `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	ReadAt      *time.Time     `bson:"read_at,omitempty" json:"read_at,omitempty"`

	IsSystemMessage bool              `bson:"is_system_message" json:"is_system_message"`
	SystemType      SystemMessageType `bson:"system_type,omitempty" json:"system_type,omitempty"`

	Deleted   bool       `bson:"deleted" json:"deleted"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	DeletedBy string     `bson:"deleted_by,omitempty" json:"deleted_by,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// MessageQuery is a resolved cursor read. After and AfterID are the stored
// timestamp and id of the cursor message and select messages ordered strictly
// after it by (created_at, id). A nil After means "latest Limit messages".
type MessageQuery struct {
	SessionID      string
	After          *time.Time
	AfterID        string
	Limit          int
	IncludeDeleted bool
}

// StatusUpdate advances delivery markers on messages of one sender. An empty
// IDs slice applies to every message of that sender in the session.
type StatusUpdate struct {
	SessionID string
	Sender    SenderType
	IDs       []string
	Status    DeliveryStatus
	At        time.Time
}

// PollResult is the polling contract returned to clients.
type PollResult struct {
	Messages     []Message     `json:"messages"`
	SessionEnded bool          `json:"sessionEnded"`
	Status       SessionStatus `json:"status"`
	Cursor       string        `json:"cursor,omitempty"`
}

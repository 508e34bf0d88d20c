package models

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
}

// Notification is published to the notification service.
type Notification struct {
	UserID   string            `json:"user_id"`
	Role     string            `json:"role"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

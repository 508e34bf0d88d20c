package models

import "strings"

type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// AuthMethod is the way the subject proved who they are. The set is closed:
// DisplayName switches over it exhaustively.
type AuthMethod string

const (
	AuthMethodEmail  AuthMethod = "email"
	AuthMethodPhone  AuthMethod = "phone"
	AuthMethodGoogle AuthMethod = "google"
	AuthMethodGuest  AuthMethod = "guest"
)

func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodEmail, AuthMethodPhone, AuthMethodGoogle, AuthMethodGuest:
		return true
	}
	return false
}

// Identity is the verified subject behind a bearer credential.
type Identity struct {
	Subject       string     `json:"subject" bson:"subject"`
	Role          Role       `json:"role" bson:"role"`
	Method        AuthMethod `json:"auth_method" bson:"auth_method"`
	Name          string     `json:"name,omitempty" bson:"name,omitempty"`
	Email         string     `json:"email,omitempty" bson:"email,omitempty"`
	Phone         string     `json:"phone,omitempty" bson:"phone,omitempty"`
	Avatar        string     `json:"avatar,omitempty" bson:"avatar,omitempty"`
	EmailVerified bool       `json:"email_verified" bson:"email_verified"`
	PhoneVerified bool       `json:"phone_verified" bson:"phone_verified"`
}

func (i Identity) Authenticated() bool {
	return i.Subject != ""
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Role == RoleManager
}

func (i Identity) Verified() bool {
	switch i.Method {
	case AuthMethodPhone:
		return i.PhoneVerified
	case AuthMethodGuest:
		return false
	default:
		return i.EmailVerified
	}
}

// DisplayName resolves the name shown to the other side of the conversation.
func DisplayName(i Identity) string {
	name := strings.TrimSpace(i.Name)
	switch i.Method {
	case AuthMethodPhone:
		if name != "" {
			return name
		}
		return maskedPhoneName(i.Phone)
	case AuthMethodEmail, AuthMethodGoogle:
		if name != "" {
			return name
		}
		if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
			return local
		}
		return "User"
	case AuthMethodGuest:
		if name != "" {
			return name
		}
		return "Guest"
	default:
		if name != "" {
			return name
		}
		if !i.Authenticated() {
			return "Guest"
		}
		return "User"
	}
}

func maskedPhoneName(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return "User"
	}
	return "User ***" + string(digits[len(digits)-4:])
}

// MergeIdentity fills the empty fields of primary from fallback. Identities of
// two different subjects are never merged.
func MergeIdentity(primary, fallback Identity) Identity {
	if primary.Subject != "" && fallback.Subject != "" && primary.Subject != fallback.Subject {
		return primary
	}
	out := primary
	if out.Subject == "" {
		out.Subject = fallback.Subject
	}
	if out.Method == "" {
		out.Method = fallback.Method
	}
	if out.Role == "" {
		out.Role = fallback.Role
	}
	if out.Name == "" {
		out.Name = fallback.Name
	}
	if out.Email == "" {
		out.Email = fallback.Email
	}
	if out.Phone == "" {
		out.Phone = fallback.Phone
	}
	if out.Avatar == "" {
		out.Avatar = fallback.Avatar
	}
	out.EmailVerified = out.EmailVerified || fallback.EmailVerified
	out.PhoneVerified = out.PhoneVerified || fallback.PhoneVerified
	return out
}

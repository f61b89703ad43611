package users

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/go-playground/validator/v10"
)

// User is an approved account allowed to sign in.
type User struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email       string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	DisplayName string    `gorm:"column:name;size:320;not null" json:"name"`
	Role        string    `gorm:"column:role;size:16;not null;default:user" json:"role"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// SessionUser projects the account onto the session identity.
func (u User) SessionUser() auth.SessionUser {
	return auth.SessionUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	}
}

var emailValidator = validator.New()

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidEmail reports whether the normalized address is syntactically valid.
func ValidEmail(email string) bool {
	return emailValidator.Var(email, "required,email") == nil
}

// HasDomain reports whether the normalized address belongs to the allowed domain.
func HasDomain(email, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	if domain == "" {
		return false
	}
	return strings.HasSuffix(email, "@"+domain)
}

// ValidRole reports whether role is one of the supported roles.
func ValidRole(role string) bool {
	return role == auth.RoleAdmin || role == auth.RoleUser
}

// DeriveDisplayName takes the first dot-separated segment of the local part and
// upper-cases its first letter: "ada.lovelace@x" becomes "Ada".
func DeriveDisplayName(email string) string {
	localPart, _, _ := strings.Cut(email, "@")
	firstName, _, _ := strings.Cut(localPart, ".")
	if firstName == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(firstName)
	return string(unicode.ToUpper(first)) + firstName[size:]
}

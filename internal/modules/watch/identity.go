package watch

import "github.com/tidings-space/core/internal/models"

// Identity is the owner of a watch or the recipient of a notification:
// either a registered user or a bare email address. The zero Identity is
// the unauthenticated sentinel and never matches or owns anything.
type Identity struct {
	User  *models.UserModel
	Email string
}

// ForUser wraps a registered user.
func ForUser(u *models.UserModel) Identity { return Identity{User: u} }

// ForEmail wraps an anonymous email address.
func ForEmail(email string) Identity { return Identity{Email: email} }

// Authenticated reports whether this identity is a registered user.
func (i Identity) Authenticated() bool { return i.User != nil }

// IsZero reports whether this is the unauthenticated sentinel.
func (i Identity) IsZero() bool { return i.User == nil && i.Email == "" }

// HasEmail reports whether the identity carries a usable address of its own.
func (i Identity) HasEmail() bool {
	if i.User != nil {
		return i.User.Email != ""
	}
	return i.Email != ""
}

// Address returns the mailbox this identity resolves to: the user's email
// when present, otherwise the raw email.
func (i Identity) Address() string {
	if i.User != nil && i.User.Email != "" {
		return i.User.Email
	}
	return i.Email
}

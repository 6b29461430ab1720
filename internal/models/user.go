package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Credits            int        `json:"credits"`
	IsPremium          bool       `json:"is_premium"`
	PremiumExpires     *time.Time `json:"premium_expires"`
	EmailNotifications bool       `json:"email_notifications"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsPremiumActive reports whether the premium flag is set and not expired.
func (u *User) IsPremiumActive() bool {
	if !u.IsPremium {
		return false
	}
	if u.PremiumExpires == nil {
		return true
	}
	return u.PremiumExpires.After(time.Now().UTC())
}

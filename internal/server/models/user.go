package models

import "time"

// User is an account known to the service. It is created on first
// authenticated contact and never hard-deleted.
type User struct {
	ID        string
	Email     string
	FullName  string
	Phone     *string
	PushToken *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate carries the user-editable profile fields. Nil leaves a field
// untouched.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
}

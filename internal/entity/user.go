package entity

import "time"

// User is the composite assembled from the user categories.
type User struct {
	SourceID    int64
	Core        *UserCore
	Status      *UserStatus
	Memberships *UserMemberships
}

// UserCore holds the base user fields.
type UserCore struct {
	Username    string
	Name        string
	State       string
	Bot         bool
	PublicEmail *string
	AvatarURL   string
	WebURL      string
	CreatedAt   time.Time
}

// UserStatus holds the user's status message.
type UserStatus struct {
	Message      string
	Availability string
}

// UserMemberships holds membership counters.
type UserMemberships struct {
	GroupCount   int
	ProjectCount int
}

// Has reports whether the category was fetched.
func (u *User) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return u.Core != nil
	case CategoryStatus:
		return u.Status != nil
	case CategoryMemberships:
		return u.Memberships != nil
	default:
		return false
	}
}

// UserDocument is the stored form of a user.
type UserDocument struct {
	Username    string    `json:"username" bson:"username"`
	Name        string    `json:"name" bson:"name"`
	State       string    `json:"state" bson:"state"`
	Bot         bool      `json:"bot" bson:"bot"`
	PublicEmail *string   `json:"publicEmail,omitempty" bson:"publicEmail,omitempty"`
	AvatarURL   string    `json:"avatarUrl" bson:"avatarUrl"`
	WebURL      string    `json:"webUrl" bson:"webUrl"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`

	StatusMessage *string `json:"statusMessage,omitempty" bson:"statusMessage,omitempty"`
	Availability  *string `json:"availability,omitempty" bson:"availability,omitempty"`

	GroupCount   *int `json:"groupCount,omitempty" bson:"groupCount,omitempty"`
	ProjectCount *int `json:"projectCount,omitempty" bson:"projectCount,omitempty"`
}

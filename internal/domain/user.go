package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleGrihasta Role = "grihasta" // consumer booking rituals
	RoleAcharya  Role = "acharya"  // provider performing them
)

func (r Role) Valid() bool { return r == RoleGrihasta || r == RoleAcharya }

// ProfileCollection maps a role to the collection whose document existence
// marks onboarding as complete.
func (r Role) ProfileCollection() string {
	if r == RoleAcharya {
		return "acharya_profiles"
	}
	return "grihasta_profiles"
}

type Status string

const (
	StatusPending   Status = "pending" // account exists, onboarding not done
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted" // soft delete; document stays
)

// WelcomeCredits is granted once on account creation.
const WelcomeCredits = 100

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email"                    json:"email"`
	PasswordHash   string             `bson:"password_hash,omitempty"  json:"-"`
	GoogleID       string             `bson:"google_id,omitempty"      json:"-"`
	Name           string             `bson:"name"                     json:"name"`
	Role           Role               `bson:"role"                     json:"role"`
	Status         Status             `bson:"status"                   json:"status"`
	Credits        int                `bson:"credits"                  json:"credits"`
	ProfilePicture string             `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`
	DeviceTokens   []string           `bson:"device_tokens"            json:"-"`
	CreatedAt      time.Time          `bson:"created_at"               json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"               json:"updated_at"`
	LastLogin      *time.Time         `bson:"last_login,omitempty"     json:"last_login,omitempty"`
}

// Profile is the minimal shape this service touches: only user_id matters
// here, the onboarding flow owns the rest of the document.
type Profile struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	CreatedAt time.Time          `bson:"created_at"`
}

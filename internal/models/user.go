package models

import (
	"time"
)

// Role defines what a user account is allowed to do on the marketplace.
type Role string

const (
	RoleUser  Role = "USER"
	RolePro   Role = "PRO"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePro, RoleAdmin:
		return true
	}
	return false
}

// User represents an account. Professionals carry the optional profile attributes
// that feed the trust score.
type User struct {
	ID                string     `bson:"_id" json:"id"`
	Name              string     `bson:"name" json:"name"`
	Email             string     `bson:"email" json:"email"`
	PasswordHash      string     `bson:"password" json:"-"`
	Role              Role       `bson:"role" json:"role"`
	IsSubscribed      bool       `bson:"is_subscribed" json:"is_subscribed"`
	TrustScore        int        `bson:"trust_score" json:"trust_score"`
	ProfileCompletion int        `bson:"profile_completion" json:"profile_completion"`
	CompanyName       string     `bson:"company_name,omitempty" json:"company_name,omitempty"`
	TradeCategory     string     `bson:"trade_category,omitempty" json:"trade_category,omitempty"`
	Description       string     `bson:"description,omitempty" json:"description,omitempty"`
	Qualifications    string     `bson:"qualifications,omitempty" json:"qualifications,omitempty"`
	InsuranceDoc      string     `bson:"insurance_doc,omitempty" json:"insurance_doc,omitempty"` // S3 object key
	EmailVerifiedAt   *time.Time `bson:"email_verified_at,omitempty" json:"email_verified_at,omitempty"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// CanSubmitQuotes reports whether the user may quote on jobs: only subscribed professionals can.
func (u *User) CanSubmitQuotes() bool {
	return u != nil && u.Role == RolePro && u.IsSubscribed
}

// IsAdmin reports whether the user has the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserFilter narrows user counts. Zero values match everything.
type UserFilter struct {
	Role       Role
	Subscribed *bool
}

// ProfileFields holds the user-editable profile attributes.
type ProfileFields struct {
	Name           string `json:"name"`
	CompanyName    string `json:"company_name"`
	TradeCategory  string `json:"trade_category"`
	Description    string `json:"description"`
	Qualifications string `json:"qualifications"`
}

// UserSummary is the public projection of a user embedded in job and quote responses.
type UserSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CompanyName       string `json:"company_name,omitempty"`
	TrustScore        int    `json:"trust_score"`
	ProfileCompletion int    `json:"profile_completion"`
}

// Summary returns the public projection of u.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:                u.ID,
		Name:              u.Name,
		CompanyName:       u.CompanyName,
		TrustScore:        u.TrustScore,
		ProfileCompletion: u.ProfileCompletion,
	}
}

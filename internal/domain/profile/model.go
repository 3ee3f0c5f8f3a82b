package profile

import (
	"time"

	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleSurgeon = "surgeon"
	RoleAdmin   = "admin"
)

// ValidRoles lists every role a profile may carry.
var ValidRoles = map[string]bool{RolePatient: true, RoleSurgeon: true, RoleAdmin: true}

// SelfServiceRoles are the roles a user may pick when signing up.
var SelfServiceRoles = map[string]bool{RolePatient: true, RoleSurgeon: true}

// Profile maps to the profiles table. ID equals the identity id.
type Profile struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Email             string    `db:"email" json:"email"`
	FullName          string    `db:"full_name" json:"full_name"`
	Role              string    `db:"role" json:"role"`
	ProfilePictureURL *string   `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// SurgeonDetails maps to the surgeon_details table.
type SurgeonDetails struct {
	UserID              uuid.UUID `db:"user_id" json:"user_id"`
	Specialty           string    `db:"specialty" json:"specialty"`
	HospitalAffiliation string    `db:"hospital_affiliation" json:"hospital_affiliation"`
	Credentials         string    `db:"credentials" json:"credentials"`
	Bio                 string    `db:"bio" json:"bio"`
}

// Surgeon is a surgeon profile joined with its details.
type Surgeon struct {
	Profile
	SurgeonDetails *SurgeonDetails `json:"surgeon_details"`
}

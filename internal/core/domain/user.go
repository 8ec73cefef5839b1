package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role is the directory role carried in tokens and checked by route guards.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleCampusAdmin Role = "campus_admin"
	RoleParent      Role = "parent"
	RoleStudent     Role = "student"
	RoleMerchant    Role = "merchant"
)

// Valid returns true for a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleCampusAdmin, RoleParent, RoleStudent, RoleMerchant:
		return true
	}
	return false
}

// IsPrivileged returns true for roles allowed to read any wallet.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// SelfServiceRoles are the roles a public registration may request.
var SelfServiceRoles = []Role{RoleParent, RoleStudent, RoleMerchant}

// CanProvision reports whether an account with role r may create accounts
// with role target. Campus admins only onboard self-service roles, admins
// add campus admins too, and the super admin may create any other role.
func (r Role) CanProvision(target Role) bool {
	switch r {
	case RoleSuperAdmin:
		return target.Valid() && target != RoleSuperAdmin
	case RoleAdmin:
		return target == RoleCampusAdmin || slices.Contains(SelfServiceRoles, target)
	case RoleCampusAdmin:
		return slices.Contains(SelfServiceRoles, target)
	}
	return false
}

// DirectoryManagers may browse and provision users.
var DirectoryManagers = []Role{RoleSuperAdmin, RoleAdmin, RoleCampusAdmin}

// UserListParams selects a page of the directory. Search matches name,
// email or student id number.
type UserListParams struct {
	Search   string
	Page     int
	PageSize int
}

// User is a directory entry. Students carry a card id, a student id number
// and a hashed card PIN.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            Role       `json:"role"`
	CardID          *string    `json:"nfc_card_id,omitempty"`
	StudentIDNumber *string    `json:"student_id_number,omitempty"`
	PinHash         *string    `json:"-"`
	ParentID        *uuid.UUID `json:"parent_id,omitempty"`
	StudentClass    *string    `json:"student_class,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasPin returns true if a card PIN is configured.
func (u *User) HasPin() bool {
	return u.PinHash != nil && *u.PinHash != ""
}

// DisplayName returns the user's name, or fallback when it is blank.
func (u *User) DisplayName(fallback string) string {
	if u == nil || u.Name == "" {
		return fallback
	}
	return u.Name
}

// StudentSummary is what a parent sees when looking a student up.
type StudentSummary struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	StudentIDNumber string    `json:"student_id_number"`
	CardID          *string   `json:"nfc_card_id"`
}

// Summary builds the parent-facing view of a student.
func (u *User) Summary() StudentSummary {
	s := StudentSummary{ID: u.ID, Name: u.Name, CardID: u.CardID}
	if u.StudentIDNumber != nil {
		s.StudentIDNumber = *u.StudentIDNumber
	}
	return s
}

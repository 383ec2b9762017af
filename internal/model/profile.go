package model

import "time"

// Role is the authorization role of an identity.  It is fixed at
// registration; no operation changes it afterwards.
type Role string

const (
    RoleAdmin      Role = "admin"
    RoleDepartment Role = "department"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleDepartment }

// Identity is the authenticated caller as seen by handlers and services.
// Department is set iff Role is RoleDepartment.
type Identity struct {
    ID         string `json:"id"`
    Name       string `json:"name"`
    Role       Role   `json:"role"`
    Department string `json:"department,omitempty"`
}

// IsAdmin reports whether the identity may transition booking status.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Profile represents a row in the `profiles` table.  It is the
// persistent record behind an Identity and additionally carries the
// login email and bcrypt password hash.
//
// Fields:
//  ID           – primary key identifier (uuid).
//  Email        – unique, lower-cased login email.
//  Name         – display name.
//  Role         – admin or department.
//  Department   – department name; empty for admins.
//  PasswordHash – bcrypt hash of the password.
//  CreatedAt    – timestamp of creation.
type Profile struct {
    ID           string    // profiles.id
    Email        string    // profiles.email
    Name         string    // profiles.name
    Role         Role      // profiles.role
    Department   string    // profiles.department
    PasswordHash string    // profiles.password_hash
    CreatedAt    time.Time // profiles.created_at
}

// Identity projects the profile onto the fields callers are allowed to see.
func (p Profile) Identity() Identity {
    id := Identity{ID: p.ID, Name: p.Name, Role: p.Role}
    if p.Role == RoleDepartment {
        id.Department = p.Department
    }
    return id
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token handed to the client is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owning profile.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (nil if still active).
type RefreshToken struct {
    ID        string     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
}

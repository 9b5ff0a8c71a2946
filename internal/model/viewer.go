package model

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Viewer is the authentication state handed to the core by the shell. The
// core reads it and never mutates it.
type Viewer struct {
	Authenticated bool   `json:"authenticated"`
	UserID        int64  `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
}

func (v Viewer) IsAdmin() bool {
	return v.Authenticated && v.Role == RoleAdmin
}

var Anonymous = Viewer{}

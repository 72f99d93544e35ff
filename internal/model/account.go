package model

// Account mirrors a row in the `users` table.  Accounts are provisioned by
// bulk import only.
type Account struct {
	ID           int64  // users.id
	Username     string // users.username (unique)
	PasswordHash string // users.password_hash
	Role         string // users.role
	FullName     string // users.full_name
}

// Identity is what a successful credential lookup hands to the login
// collaborator.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

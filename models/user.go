package models

// User represents an operator who owns survey missions.
// It maps to the `users` table in SQLite.
type User struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

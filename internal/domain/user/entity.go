package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is the subset of the users table the referral engine reads.
// Accounts are created and authenticated by the auth service.
type User struct {
	ID        uuid.UUID      `db:"id"`
	Email     string         `db:"email"`
	Phone     sql.NullString `db:"phone"`
	FullName  sql.NullString `db:"full_name"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// AccountAgeDays returns the number of whole days since the account was created
func (u *User) AccountAgeDays(now time.Time) int {
	if now.Before(u.CreatedAt) {
		return 0
	}
	return int(now.Sub(u.CreatedAt) / (24 * time.Hour))
}

// internal/domain/roster/repository.go
package roster

import "context"

// Repository defines operations for users and classes.
type Repository interface {
	GetUserByWhatsApp(ctx context.Context, phone string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error

	// ListClassMembers returns every enrolled member of the class. Fan-out
	// iterates this roster.
	ListClassMembers(ctx context.Context, classID int64) ([]*User, error)
	// ListUsersWithClass returns all fully onboarded users that belong to a
	// class, for the cron-driven summary jobs.
	ListUsersWithClass(ctx context.Context) ([]*User, error)

	GetClassByID(ctx context.Context, id int64) (*Class, error)

	// TouchSession stamps the user's last inbound message time. A missing
	// user is not an error: unknown senders simply have no session.
	TouchSession(ctx context.Context, phone string) error
}

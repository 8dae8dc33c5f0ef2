package repo

import (
	"context"
	"errors"
	"io/fs"
)

// ErrNotFound is returned when a lookup matches no active record.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for data persistence.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Users
	CreateUser(ctx context.Context, user User) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	FindUserByWAID(ctx context.Context, waid string) (*User, error)
	FindAdminByWAID(ctx context.Context, waid string) (*User, error)
	FindUserByNumber(ctx context.Context, number string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	// UpdateUserState performs a compare-and-set on the state field and
	// reports whether the transition was applied.
	UpdateUserState(ctx context.Context, id string, from, to UserState) (bool, error)
	SetUserPartner(ctx context.Context, id string, isPartner bool) error
	ToggleUserActive(ctx context.Context, id string) error
	ListAdmins(ctx context.Context) ([]User, error)

	// Group chats
	CreateGroupChat(ctx context.Context, group GroupChat) (*GroupChat, error)
	FindGroupChatByJID(ctx context.Context, jid string) (*GroupChat, error)
	ToggleGroupChatActive(ctx context.Context, id string) error

	// Partners
	CreatePartner(ctx context.Context, partner Partner) (*Partner, error)
	GetPartner(ctx context.Context, id string) (*Partner, error)
	FindPartnerByUserID(ctx context.Context, userID string) (*Partner, error)
	UpdatePartner(ctx context.Context, partner *Partner) error
	// BindPartnerUser sets the owning user once; it reports false when the
	// partner is already bound.
	BindPartnerUser(ctx context.Context, partnerID, userID string) (bool, error)
	SetPartnerServices(ctx context.Context, partnerID string, services []PartnerService) error
	ListPartnerStatuses(ctx context.Context, filter StatusFilter) ([]PartnerStatus, error)
	ListServiceNamesForPartner(ctx context.Context, partnerID string) ([]string, error)
	TogglePartnerActive(ctx context.Context, id string) error

	// Services
	ListActiveServices(ctx context.Context) ([]Service, error)
	FindServicesByShortnames(ctx context.Context, shortnames []string) ([]Service, error)

	// Commands
	ListActiveCommands(ctx context.Context) ([]Command, error)

	// Orders
	CreateOrder(ctx context.Context, order Order) (*Order, error)
}

package repo

import "time"

// UserState tracks where a user is in the registration flow.
type UserState string

const (
	UserStateAskStart    UserState = "askStart"
	UserStateAskName     UserState = "askName"
	UserStateAskUsername UserState = "askUsername"
	UserStateAskEmail    UserState = "askEmail"
	UserStateAskGender   UserState = "askGender"
	UserStateRegistered  UserState = "registered"
	UserStateAddOrder    UserState = "addOrder"
)

// PartnerState tracks where a partner record is in onboarding.
type PartnerState string

const (
	PartnerStateAskPartner      PartnerState = "askPartner"
	PartnerStateAskNumber       PartnerState = "askNumber"
	PartnerStateAskService      PartnerState = "askService"
	PartnerStateAskMotorcycle   PartnerState = "askMotorcycle"
	PartnerStateAskPoliceNumber PartnerState = "askPoliceNumber"
	PartnerStateFinished        PartnerState = "finished"
)

// OrderStatus is the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "Sedang Pesan"
	OrderStatusAssigned   OrderStatus = "Dapat Driver"
	OrderStatusInProgress OrderStatus = "Sedang Dikerjakan"
	OrderStatusDone       OrderStatus = "Selesai"
	OrderStatusNoDriver   OrderStatus = "Tidak Dapat Driver"
)

// PlaceholderName marks a user record created by -start whose display name
// has not been captured yet.
const PlaceholderName = "Not Registered"

// User represents a personal chat identity.
type User struct {
	ID           string
	Name         string
	Gender       string
	Username     string
	Email        string
	PasswordHash string
	WAID         string
	Number       string
	PushName     string
	IsAdmin      bool
	IsPartner    bool
	State        UserState
	LastCommand  string
	PartnerID    *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GroupChat represents a registered group identity.
type GroupChat struct {
	ID        string
	GroupJID  string
	Size      int
	IsPartner bool
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PartnerService binds a partner to a service, optionally with a pricelist.
type PartnerService struct {
	ServiceID   string
	PricelistID *string
}

// Partner is a driver/service-provider profile owned by a user.
type Partner struct {
	ID           string
	UserID       *string
	Services     []PartnerService
	Motorcycle   *string
	PoliceNumber *string
	IsReady      bool
	Reason       string
	State        PartnerState
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service is an offering a partner can provide (anjem, jastip, ...).
type Service struct {
	ID          string
	Fullname    string
	Shortname   string
	Description string
	Tag         string
	Active      bool
}

// Command is a routable bot command with visibility flags.
type Command struct {
	ID          string
	Name        string
	Token       string
	Description string
	ParentID    *string
	IsPartner   bool
	IsAdmin     bool
	IsPersonal  bool
	IsGroup     bool
	Order       int
	Active      bool
}

// Order is a captured customer order.
type Order struct {
	ID         string
	UserID     *string
	PartnerID  *string
	ServiceID  *string
	CustNumber string
	Time       time.Time
	Status     OrderStatus
	Note       string
	Active     bool
	CreatedAt  time.Time
}

// StatusFilter selects which partners a roster query returns.
type StatusFilter string

const (
	StatusFilterAll   StatusFilter = ""
	StatusFilterReady StatusFilter = "ready"
	StatusFilterBusy  StatusFilter = "busy"
)

// PartnerStatus is a roster row joined with the owning user.
type PartnerStatus struct {
	PartnerID string
	Name      string
	Username  string
	Gender    string
	Number    string
	WAID      string
	IsReady   bool
	Reason    string
	UpdatedAt time.Time
}

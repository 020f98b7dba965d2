package domain

import (
	"context"
	"time"
)

// Stage is one step in the tenant onboarding lifecycle.
type Stage string

const (
	StageOnboarding             Stage = "init.tenant.prospectus.onboarding"
	StageAdminEmailActivation   Stage = "init.tenant.admin.email.activation"
	StageAdminEmailVerification Stage = "init.tenant.admin.email.verification"
	StageInfrastructure         Stage = "init.tenant.prospectus.infrastructure"
)

// stageTransitions maps each stage to its single successor. A stage without an
// entry is either terminal or unknown.
var stageTransitions = map[Stage]Stage{
	StageOnboarding:             StageAdminEmailActivation,
	StageAdminEmailActivation:   StageAdminEmailVerification,
	StageAdminEmailVerification: StageInfrastructure,
}

// NextStage returns the successor of s and whether one exists.
func NextStage(s Stage) (Stage, bool) {
	next, ok := stageTransitions[s]
	return next, ok
}

// Valid reports whether s is one of the four defined stages.
func (s Stage) Valid() bool {
	switch s {
	case StageOnboarding, StageAdminEmailActivation, StageAdminEmailVerification, StageInfrastructure:
		return true
	}
	return false
}

// Subscription is the plan a prospectus signs up for.
type Subscription string

const (
	SubscriptionTrial      Subscription = "TRIAL"
	SubscriptionStarter    Subscription = "STARTER"
	SubscriptionBusiness   Subscription = "BUSINESS"
	SubscriptionEnterprise Subscription = "ENTERPRISE"
)

// Subscriptions lists every accepted plan value.
var Subscriptions = []Subscription{
	SubscriptionTrial,
	SubscriptionStarter,
	SubscriptionBusiness,
	SubscriptionEnterprise,
}

// Prospectus is one onboarding case for a future tenant
type Prospectus struct {
	ID                 string
	Title              string
	Slug               string // unique among non-deleted records
	Subscription       Subscription
	Stage              Stage
	IsActive           bool
	IsDeleted          bool
	RequesterFirstName string
	RequesterLastName  string
	RequesterEmail     string // unique among non-deleted records
	PhoneCountryCode   string
	PhoneNumber        string
	Designation        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequesterName is the display name used in outbound mail.
func (p *Prospectus) RequesterName() string {
	return p.RequesterFirstName + " " + p.RequesterLastName
}

// NewProspectus carries the caller-supplied fields for a new record.
type NewProspectus struct {
	Title              string
	Slug               string
	Subscription       Subscription
	RequesterFirstName string
	RequesterLastName  string
	RequesterEmail     string
	PhoneCountryCode   string
	PhoneNumber        string
	Designation        string
}

// ProspectusRepository defines data access for prospectus records.
//
// Lookups return an explicit found flag; a missing row is not an error.
type ProspectusRepository interface {
	Create(ctx context.Context, in NewProspectus) (*Prospectus, error)
	GetByID(ctx context.Context, id string) (*Prospectus, bool, error)
	List(ctx context.Context, offset, limit int) ([]*Prospectus, error)
	// UpdateStage moves id from one stage to another. It reports false when the
	// row no longer holds from (another writer won) or does not exist.
	UpdateStage(ctx context.Context, id string, from, to Stage) (*Prospectus, bool, error)
	// FindByUniqueFields matches slug OR email; empty arguments are ignored.
	FindByUniqueFields(ctx context.Context, slug, email string) (*Prospectus, bool, error)
}

// Message is a rendered outbound notification.
type Message struct {
	Subject   string
	Sender    string
	Recipient string
	HTMLBody  string
}

// Notifier delivers a rendered message to one recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

package handler

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	"github.com/yourorg/tenantonboard/internal/domain"
)

// CreateProspectusRequest is the body of POST /tenant-prospectus
type CreateProspectusRequest struct {
	Title              string `json:"title"`
	Slug               string `json:"slug"`
	Subscription       string `json:"subscription"`
	RequesterFirstName string `json:"requester_first_name"`
	RequesterLastName  string `json:"requester_last_name"`
	RequesterEmail     string `json:"requester_email"`
	PhoneCountryCode   string `json:"requester_phone_number_country_code,omitempty"`
	PhoneNumber        string `json:"requester_phone_number,omitempty"`
	Designation        string `json:"requester_designation"`
}

var errInvalidPhone = errors.New("must be a valid phone number")

// Normalize trims every field and upper-cases the subscription plan.
func (r *CreateProspectusRequest) Normalize() {
	for _, f := range []*string{
		&r.Title, &r.Slug, &r.Subscription,
		&r.RequesterFirstName, &r.RequesterLastName, &r.RequesterEmail,
		&r.PhoneCountryCode, &r.PhoneNumber, &r.Designation,
	} {
		*f = strings.TrimSpace(*f)
	}
	r.Subscription = strings.ToUpper(r.Subscription)
	r.PhoneCountryCode = strings.TrimPrefix(r.PhoneCountryCode, "+")
}

// Validate will run validation rules. Call Normalize first.
func (r CreateProspectusRequest) Validate() error {
	plans := make([]interface{}, 0, len(domain.Subscriptions))
	for _, s := range domain.Subscriptions {
		plans = append(plans, string(s))
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(3, 25)),
		validation.Field(&r.Slug, validation.Required, validation.Length(3, 25)),
		validation.Field(&r.Subscription, validation.Required, validation.Length(3, 25), validation.In(plans...)),
		validation.Field(&r.RequesterFirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.RequesterLastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.RequesterEmail, validation.Required, validation.Length(10, 50), is.Email),
		validation.Field(&r.PhoneCountryCode, validation.Length(1, 5), is.Digit),
		validation.Field(&r.PhoneNumber, validation.Length(10, 15), validation.By(r.parseablePhone)),
		validation.Field(&r.Designation, validation.Required, validation.Length(1, 50)),
	)
}

// parseablePhone only applies when both phone parts are present.
func (r CreateProspectusRequest) parseablePhone(value interface{}) error {
	number, _ := value.(string)
	if number == "" || r.PhoneCountryCode == "" {
		return nil
	}
	if _, err := phonenumbers.Parse("+"+r.PhoneCountryCode+number, ""); err != nil {
		return errInvalidPhone
	}
	return nil
}

// ToDomain converts the request into creation input.
func (r CreateProspectusRequest) ToDomain() domain.NewProspectus {
	return domain.NewProspectus{
		Title:              r.Title,
		Slug:               r.Slug,
		Subscription:       domain.Subscription(r.Subscription),
		RequesterFirstName: r.RequesterFirstName,
		RequesterLastName:  r.RequesterLastName,
		RequesterEmail:     r.RequesterEmail,
		PhoneCountryCode:   r.PhoneCountryCode,
		PhoneNumber:        r.PhoneNumber,
		Designation:        r.Designation,
	}
}

// ProspectusResponse is the public view of a prospectus
type ProspectusResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

// ActivationResponse adds the mailed link to the public view
type ActivationResponse struct {
	ProspectusResponse
	ActivationLink string `json:"activation_link"`
}

func toResponse(p *domain.Prospectus) ProspectusResponse {
	return ProspectusResponse{
		ID:     p.ID,
		Title:  p.Title,
		Slug:   p.Slug,
		Status: string(p.Stage),
	}
}

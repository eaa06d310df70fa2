package models

// WorkshopRegistration is a student's sign-up for the worship workshop.
type WorkshopRegistration struct {
	RegistrationID   string  `json:"registrationId" dynamodbav:"registrationId"`
	FirstName        string  `json:"firstName" dynamodbav:"firstName"`
	LastName         string  `json:"lastName" dynamodbav:"lastName"`
	PhoneNumber      string  `json:"phoneNumber" dynamodbav:"phoneNumber"`
	YearsAtCLC       float64 `json:"yearsAtClc" dynamodbav:"yearsAtClc"`
	EncounterCollide bool    `json:"encounterCollide" dynamodbav:"encounterCollide"`
	DateOfBirth      string  `json:"dateOfBirth" dynamodbav:"dateOfBirth"`
	Grade            string  `json:"grade" dynamodbav:"grade"`
	Audition         bool    `json:"audition" dynamodbav:"audition"`
	Present          bool    `json:"present" dynamodbav:"present"`
	CreatedAt        string  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt        string  `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// Kind implements Record.
func (r *WorkshopRegistration) Kind() Kind { return KindWorkshop }

// ID implements Record.
func (r *WorkshopRegistration) ID() string { return r.RegistrationID }

// Stamp implements Record. Attendance always starts unset.
func (r *WorkshopRegistration) Stamp(id, createdAt string) {
	r.RegistrationID = id
	r.CreatedAt = createdAt
	r.Present = false
}

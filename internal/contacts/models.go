package contacts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("contacts: not found")
	ErrInvalidRequest = errors.New("contacts: invalid request")
)

// Contact is a tenant-scoped person reachable by phone. Phone is stored as E.164.
type Contact struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	FirstName      string    `json:"firstName,omitempty" db:"first_name"`
	LastName       string    `json:"lastName,omitempty" db:"last_name"`
	Email          string    `json:"email,omitempty" db:"email"`
	Phone          string    `json:"phone" db:"phone"`
	Company        string    `json:"company,omitempty" db:"company"`
	Notes          string    `json:"notes,omitempty" db:"notes"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Update lists the fields an agent may change during a call. Nil means unchanged.
type Update struct {
	FirstName *string
	LastName  *string
	Email     *string
	Company   *string
	Notes     *string
}

func (u Update) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil && u.Company == nil && u.Notes == nil
}

// Appointment records an appointment intent captured during a call.
type Appointment struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organizationId" db:"organization_id"`
	ContactID      string     `json:"contactId,omitempty" db:"contact_id"`
	ContactPhone   string     `json:"contactPhone,omitempty" db:"contact_phone"`
	CallID         string     `json:"callId,omitempty" db:"call_id"`
	ScheduledFor   *time.Time `json:"scheduledFor,omitempty" db:"scheduled_for"`
	// RequestedTime keeps the caller's wording when it could not be parsed.
	RequestedTime string    `json:"requestedTime,omitempty" db:"requested_time"`
	Notes         string    `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Store is the contact collaborator port used by tool handlers.
type Store interface {
	FindByPhone(ctx context.Context, organizationID, phoneE164 string) (Contact, error)
	UpdateByPhone(ctx context.Context, organizationID, phoneE164 string, u Update, now time.Time) (Contact, error)
	CreateAppointment(ctx context.Context, a Appointment) error
}

func apply(c Contact, u Update, now time.Time) Contact {
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		c.LastName = *u.LastName
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Company != nil {
		c.Company = *u.Company
	}
	if u.Notes != nil {
		c.Notes = *u.Notes
	}
	c.UpdatedAt = now.UTC()
	return c
}

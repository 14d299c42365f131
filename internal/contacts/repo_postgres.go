package contacts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voice-campaigns/pkg/utils"
)

// PostgresRepo reads and updates the contacts table and appends to appointments.
// Assumes UNIQUE (organization_id, phone) on contacts.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const contactColumns = `id, organization_id, first_name, last_name, email, phone, company, notes, updated_at`

func scanContact(row *sql.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company, &c.Notes, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) FindByPhone(ctx context.Context, organizationID, phoneE164 string) (Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE organization_id = $1 AND phone = $2`
	return scanContact(r.db.QueryRowContext(ctx, q, organizationID, phoneE164))
}

func (r *PostgresRepo) UpdateByPhone(ctx context.Context, organizationID, phoneE164 string, u Update, now time.Time) (Contact, error) {
	var out Contact
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT ` + contactColumns + ` FROM contacts WHERE organization_id = $1 AND phone = $2 FOR UPDATE`
		cur, err := scanContact(tx.QueryRowContext(ctx, q, organizationID, phoneE164))
		if err != nil {
			return err
		}
		out = apply(cur, u, now)
		const upd = `
UPDATE contacts
SET first_name = $2, last_name = $3, email = $4, company = $5, notes = $6, updated_at = $7
WHERE id = $1
`
		_, err = tx.ExecContext(ctx, upd, out.ID, out.FirstName, out.LastName, out.Email, out.Company, out.Notes, out.UpdatedAt)
		return err
	})
	if err != nil {
		return Contact{}, err
	}
	return out, nil
}

func (r *PostgresRepo) CreateAppointment(ctx context.Context, a Appointment) error {
	if a.ID == "" || a.OrganizationID == "" {
		return ErrInvalidRequest
	}
	const q = `
INSERT INTO appointments (
  id, organization_id, contact_id, contact_phone, call_id, scheduled_for, requested_time, notes, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.OrganizationID,
		utils.NullString(a.ContactID),
		a.ContactPhone,
		utils.NullString(a.CallID),
		utils.NullTime(a.ScheduledFor),
		a.RequestedTime,
		a.Notes,
		a.CreatedAt,
	)
	return err
}

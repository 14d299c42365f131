package tenancy

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo reads agent_organizations and phone_number_assignments.
// Both lookups hit a primary key.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) OrganizationByAgent(ctx context.Context, agentID string) (string, error) {
	const q = `SELECT organization_id FROM agent_organizations WHERE agent_id = $1`
	var org string
	if err := r.db.QueryRowContext(ctx, q, agentID).Scan(&org); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return org, nil
}

func (r *PostgresRepo) AssignmentByPhone(ctx context.Context, phoneE164 string) (PhoneAssignment, error) {
	const q = `
SELECT phone_number, organization_id, COALESCE(agent_id, '')
FROM phone_number_assignments
WHERE phone_number = $1
`
	var a PhoneAssignment
	if err := r.db.QueryRowContext(ctx, q, phoneE164).Scan(&a.PhoneNumber, &a.OrganizationID, &a.AgentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PhoneAssignment{}, ErrNotFound
		}
		return PhoneAssignment{}, err
	}
	return a, nil
}

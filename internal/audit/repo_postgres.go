package audit

import (
	"context"
	"database/sql"

	"voice-campaigns/pkg/utils"
)

// PostgresRepo appends to audit_events. The table should reject UPDATE/DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, organization_id, type, actor_user_id, actor_role, ip_address,
  campaign_id, call_id, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	var meta sql.NullString
	if e.Metadata != "" {
		meta = sql.NullString{String: e.Metadata, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.OrganizationID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		utils.NullString(e.CampaignID),
		utils.NullString(e.CallID),
		e.Message,
		meta,
		e.CreatedAt,
	)
	return err
}

package campaigns

import (
	"context"
	"database/sql"
	"errors"

	"voice-campaigns/pkg/utils"
)

// PostgresRepo persists campaigns in the campaigns table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const campaignColumns = `id, organization_id, name, agent_id, status, scheduled_at, started_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var (
		c                               Campaign
		scheduledAt, startedAt, doneAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.AgentID, &c.Status, &scheduledAt, &startedAt, &doneAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	c.ScheduledAt = utils.TimePtr(scheduledAt)
	c.StartedAt = utils.TimePtr(startedAt)
	c.CompletedAt = utils.TimePtr(doneAt)
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, organizationID, id string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE organization_id = $1 AND id = $2`
	return scanCampaign(r.db.QueryRowContext(ctx, q, organizationID, id))
}

func (r *PostgresRepo) Create(ctx context.Context, c Campaign) error {
	if c.ID == "" || c.OrganizationID == "" || !c.Status.Valid() {
		return ErrInvalidRequest
	}
	const q = `
INSERT INTO campaigns (` + campaignColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.OrganizationID, c.Name, c.AgentID, c.Status,
		utils.NullTime(c.ScheduledAt), utils.NullTime(c.StartedAt), utils.NullTime(c.CompletedAt),
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, organizationID, id string, fn UpdateFunc) (Campaign, error) {
	var out Campaign
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE organization_id = $1 AND id = $2 FOR UPDATE`
		cur, err := scanCampaign(tx.QueryRowContext(ctx, q, organizationID, id))
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		next.ID, next.OrganizationID = cur.ID, cur.OrganizationID

		const upd = `
UPDATE campaigns
SET name = $3, agent_id = $4, status = $5, scheduled_at = $6, started_at = $7, completed_at = $8, updated_at = $9
WHERE organization_id = $1 AND id = $2
`
		_, err = tx.ExecContext(ctx, upd,
			next.OrganizationID, next.ID, next.Name, next.AgentID, next.Status,
			utils.NullTime(next.ScheduledAt), utils.NullTime(next.StartedAt), utils.NullTime(next.CompletedAt),
			next.UpdatedAt,
		)
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Campaign{}, err
	}
	return out, nil
}

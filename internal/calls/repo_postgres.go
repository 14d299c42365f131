package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"voice-campaigns/pkg/utils"
)

// PostgresRepo stores calls in the calls table.
//
// Assumes:
//   - calls.provider_call_id is UNIQUE (NULLs allowed)
//   - metadata and analysis are JSONB
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
id, organization_id, campaign_id, agent_id, contact_phone, provider_call_id,
status, outcome, duration_seconds, cost, transcript, summary, analysis, recording_url,
started_at, ended_at, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(s rowScanner) (Call, error) {
	var (
		c          Call
		campaignID sql.NullString
		providerID sql.NullString
		outcome    sql.NullString
		analysis   []byte
		metadata   []byte
		startedAt  sql.NullTime
		endedAt    sql.NullTime
	)
	if err := s.Scan(
		&c.ID,
		&c.OrganizationID,
		&campaignID,
		&c.AgentID,
		&c.ContactPhone,
		&providerID,
		&c.Status,
		&outcome,
		&c.DurationSeconds,
		&c.Cost,
		&c.Transcript,
		&c.Summary,
		&analysis,
		&c.RecordingURL,
		&startedAt,
		&endedAt,
		&metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	c.CampaignID = campaignID.String
	c.ProviderCallID = providerID.String
	if outcome.Valid {
		o := Outcome(outcome.String)
		c.Outcome = &o
	}
	if hasJSON(analysis) {
		c.Analysis = json.RawMessage(analysis)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return Call{}, err
		}
	}
	c.StartedAt = utils.TimePtr(startedAt)
	c.EndedAt = utils.TimePtr(endedAt)
	return c, nil
}

func callArgs(c Call) ([]any, error) {
	meta := c.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var analysis sql.NullString
	if hasJSON(c.Analysis) {
		analysis = sql.NullString{String: string(c.Analysis), Valid: true}
	}
	var outcome sql.NullString
	if c.Outcome != nil {
		outcome = utils.NullString(string(*c.Outcome))
	}
	return []any{
		c.ID,
		c.OrganizationID,
		utils.NullString(c.CampaignID),
		c.AgentID,
		c.ContactPhone,
		utils.NullString(c.ProviderCallID),
		c.Status,
		outcome,
		c.DurationSeconds,
		c.Cost,
		c.Transcript,
		c.Summary,
		analysis,
		c.RecordingURL,
		utils.NullTime(c.StartedAt),
		utils.NullTime(c.EndedAt),
		string(metaJSON),
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

const insertCallSQL = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
`

func (r *PostgresRepo) Get(ctx context.Context, organizationID, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE organization_id = $1 AND id = $2`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, organizationID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) GetByProviderCallID(ctx context.Context, organizationID, providerCallID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE organization_id = $1 AND provider_call_id = $2`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, organizationID, providerCallID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	if c.ID == "" || c.OrganizationID == "" {
		return ErrInvalidCall
	}
	args, err := callArgs(c)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertCallSQL, args...)
	return err
}

func (r *PostgresRepo) ListByCampaign(ctx context.Context, organizationID, campaignID string) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE organization_id = $1 AND campaign_id = $2 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, organizationID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateByID(ctx context.Context, id string, fn MutateFunc) (Call, error) {
	var out Call
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Row lock serializes concurrent events for this call.
		q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1 FOR UPDATE`
		cur, err := scanCall(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		out, err = applyTx(ctx, tx, cur, fn)
		return err
	})
	return out, err
}

func (r *PostgresRepo) UpsertByProviderCallID(ctx context.Context, seed Call, fn MutateFunc) (Call, bool, error) {
	if seed.ProviderCallID == "" || seed.ID == "" || seed.OrganizationID == "" {
		return Call{}, false, ErrInvalidCall
	}
	args, err := callArgs(seed)
	if err != nil {
		return Call{}, false, err
	}

	var (
		out     Call
		created bool
	)
	err = utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertCallSQL+` ON CONFLICT (provider_call_id) DO NOTHING`, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		q := `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1 FOR UPDATE`
		cur, err := scanCall(tx.QueryRowContext(ctx, q, seed.ProviderCallID))
		if err != nil {
			return err
		}
		out, err = applyTx(ctx, tx, cur, fn)
		return err
	})
	if err != nil {
		return Call{}, false, err
	}
	return out, created, nil
}

func applyTx(ctx context.Context, tx *sql.Tx, cur Call, fn MutateFunc) (Call, error) {
	next, changed, err := fn(cur)
	if err != nil {
		return Call{}, err
	}
	if !changed {
		return cur, nil
	}
	const q = `
UPDATE calls SET
  campaign_id = $2, agent_id = $3, contact_phone = $4, provider_call_id = $5,
  status = $6, outcome = $7, duration_seconds = $8, cost = $9,
  transcript = $10, summary = $11, analysis = $12, recording_url = $13,
  started_at = $14, ended_at = $15, metadata = $16, updated_at = $17
WHERE id = $1
`
	args, err := callArgs(next)
	if err != nil {
		return Call{}, err
	}
	// callArgs order: id, org, campaign, agent, phone, provider, status, outcome, duration,
	// cost, transcript, summary, analysis, recording, started, ended, metadata, created, updated
	if _, err := tx.ExecContext(ctx, q,
		args[0], args[2], args[3], args[4], args[5],
		args[6], args[7], args[8], args[9],
		args[10], args[11], args[12], args[13],
		args[14], args[15], args[16], args[18],
	); err != nil {
		return Call{}, err
	}
	return next, nil
}

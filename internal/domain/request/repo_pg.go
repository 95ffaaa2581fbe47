package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
)

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

const requestCols = `id, requester_org_id, blood_group, component_type, quantity, urgency,
	clinical_flag, status, request_type, target_org_ids, fulfilling_org_id,
	reserved_units, shortfall, escalation, notes, request_date, required_date,
	version_id, created_at, updated_at`

func scanRequest(row pgx.Row) (*BloodRequest, error) {
	var r BloodRequest
	err := row.Scan(&r.ID, &r.RequesterOrgID, &r.BloodGroup, &r.ComponentType, &r.Quantity, &r.Urgency,
		&r.ClinicalFlag, &r.Status, &r.RequestType, &r.TargetOrgIDs, &r.FulfillingOrgID,
		&r.ReservedUnits, &r.Shortfall, &r.Escalation, &r.Notes, &r.RequestDate, &r.RequiredDate,
		&r.VersionID, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func (p *requestRepoPG) Create(ctx context.Context, r *BloodRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.TargetOrgIDs == nil {
		r.TargetOrgIDs = []uuid.UUID{}
	}
	r.VersionID = 1
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO blood_request (id, requester_org_id, blood_group, component_type, quantity, urgency,
			clinical_flag, status, request_type, target_org_ids, fulfilling_org_id,
			reserved_units, shortfall, escalation, notes, request_date, required_date, version_id,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING created_at, updated_at`,
		r.ID, r.RequesterOrgID, r.BloodGroup, r.ComponentType, r.Quantity, r.Urgency,
		r.ClinicalFlag, r.Status, r.RequestType, r.TargetOrgIDs, r.FulfillingOrgID,
		r.ReservedUnits, r.Shortfall, r.Escalation, r.Notes, r.RequestDate, r.RequiredDate, r.VersionID,
		r.CreatedAt, r.UpdatedAt,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (p *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	r, err := scanRequest(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+requestCols+` FROM blood_request WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("request", id.String())
	}
	return r, err
}

func (p *requestRepoPG) Update(ctx context.Context, r *BloodRequest) error {
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		UPDATE blood_request SET urgency=$3, status=$4, fulfilling_org_id=$5, reserved_units=$6,
			shortfall=$7, escalation=$8, notes=$9, version_id = version_id + 1,
			updated_at = COALESCE($10::timestamptz, NOW())
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		r.ID, r.VersionID, r.Urgency, r.Status, r.FulfillingOrgID, r.ReservedUnits,
		r.Shortfall, r.Escalation, r.Notes, nullableTime(r.UpdatedAt),
	).Scan(&r.VersionID, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update request %s at version %d: %w", r.ID, r.VersionID, apperr.ErrConflict)
	}
	return err
}

func (p *requestRepoPG) List(ctx context.Context, f Filter) ([]*BloodRequest, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.RequesterOrgID != uuid.Nil {
		add("requester_org_id = $%d", f.RequesterOrgID)
	}
	if f.TargetOrgID != uuid.Nil {
		add("(request_type = 'broadcast' OR $%d = ANY(target_org_ids))", f.TargetOrgID)
	}
	if f.BloodGroup != "" {
		add("blood_group = $%d", f.BloodGroup)
	}

	q := `SELECT ` + requestCols + ` FROM blood_request`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := db.Conn(ctx, p.pool).Query(ctx, q+` ORDER BY required_date, request_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BloodRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (p *requestRepoPG) AppendHistory(ctx context.Context, changes ...StatusChange) error {
	conn := db.Conn(ctx, p.pool)
	for _, c := range changes {
		var from *Status
		if c.From != "" {
			from = &c.From
		}
		if _, err := conn.Exec(ctx, `
			INSERT INTO blood_request_status_change (request_id, from_status, to_status, actor_id, reason, changed_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.RequestID, from, c.To, c.ActorID, c.Reason, c.At); err != nil {
			return err
		}
	}
	return nil
}

func (p *requestRepoPG) History(ctx context.Context, requestID uuid.UUID) ([]StatusChange, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, `
		SELECT id, request_id, COALESCE(from_status, ''), to_status, actor_id, COALESCE(reason, ''), changed_at
		FROM blood_request_status_change WHERE request_id = $1 ORDER BY changed_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.RequestID, &c.From, &c.To, &c.ActorID, &c.Reason, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package inventory

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

type unitRepoPG struct{ pool *pgxpool.Pool }

func NewUnitRepoPG(pool *pgxpool.Pool) UnitRepository {
	return &unitRepoPG{pool: pool}
}

const unitCols = `id, org_id, blood_group, component_type, quantity_ml,
	collection_date, expiry_date, status, reserved_for, created_at, updated_at`

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.OrgID, &u.BloodGroup, &u.ComponentType, &u.QuantityML,
		&u.CollectionDate, &u.ExpiryDate, &u.Status, &u.ReservedFor, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func collectUnits(rows pgx.Rows) ([]*Unit, error) {
	defer rows.Close()
	var items []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *unitRepoPG) Create(ctx context.Context, u *Unit) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inventory_unit (id, org_id, blood_group, component_type, quantity_ml,
			collection_date, expiry_date, status, reserved_for)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		u.ID, u.OrgID, u.BloodGroup, u.ComponentType, u.QuantityML,
		u.CollectionDate, u.ExpiryDate, u.Status, u.ReservedFor,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *unitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Unit, error) {
	u, err := scanUnit(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+unitCols+` FROM inventory_unit WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory unit", id.String())
	}
	return u, err
}

func filterClause(orgID uuid.UUID, f Filter) (string, []interface{}) {
	where := []string{"org_id = $1"}
	args := []interface{}{orgID}
	add := func(col string, v string) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Group != "" {
		add("blood_group", string(f.Group))
	}
	if f.Component != "" {
		add("component_type", string(f.Component))
	}
	return strings.Join(where, " AND "), args
}

func (r *unitRepoPG) List(ctx context.Context, orgID uuid.UUID, f Filter, limit, offset int) ([]*Unit, int, error) {
	where, args := filterClause(orgID, f)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_unit WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM inventory_unit WHERE %s
		ORDER BY expiry_date, collection_date, id LIMIT $%d OFFSET $%d`, unitCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectUnits(rows)
	return items, total, err
}

func (r *unitRepoPG) ListByOrg(ctx context.Context, orgID uuid.UUID, f Filter) ([]*Unit, error) {
	where, args := filterClause(orgID, f)
	q := `SELECT ` + unitCols + ` FROM inventory_unit WHERE ` + where + ` ORDER BY expiry_date, collection_date, id`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectUnits(rows)
}

func (r *unitRepoPG) ListByReservation(ctx context.Context, requestID uuid.UUID) ([]*Unit, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+unitCols+` FROM inventory_unit WHERE reserved_for = $1 AND status = $2 ORDER BY id`,
		requestID, StatusReserved)
	if err != nil {
		return nil, err
	}
	return collectUnits(rows)
}

// SetStatus runs in its own transaction when none is open so that a partial
// match rolls back.
func (r *unitRepoPG) SetStatus(ctx context.Context, ids []uuid.UUID, from, to UnitStatus, reservedFor *uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if db.TxFromContext(ctx) == nil {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			return r.setStatus(ctx, tx, ids, from, to, reservedFor)
		})
	}
	return r.setStatus(ctx, db.TxFromContext(ctx), ids, from, to, reservedFor)
}

func (r *unitRepoPG) setStatus(ctx context.Context, q db.Querier, ids []uuid.UUID, from, to UnitStatus, reservedFor *uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE inventory_unit SET status = $2, reserved_for = $3, updated_at = NOW()
		WHERE id = ANY($1) AND status = $4`, ids, to, reservedFor, from)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("set status on %d units, %d in %s: %w", len(ids), tag.RowsAffected(), from, apperr.ErrConflict)
	}
	return nil
}

func (r *unitRepoPG) ExpireAvailable(ctx context.Context, orgID uuid.UUID, now time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE inventory_unit SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expiry_date <= $3 AND ($4::uuid IS NULL OR org_id = $4)`,
		StatusExpired, StatusAvailable, now, nullableOrg(orgID))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nullableOrg(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

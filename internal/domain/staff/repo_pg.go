package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
)

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

const memberCols = `id, org_id, name, email, phone, role, status, last_active, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.OrgID, &m.Name, &m.Email, &m.Phone, &m.Role, &m.Status,
		&m.LastActive, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *memberRepoPG) Create(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO staff (id, org_id, name, email, phone, role, status, last_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		m.ID, m.OrgID, m.Name, m.Email, m.Phone, m.Role, m.Status, m.LastActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *memberRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := scanMember(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+memberCols+` FROM staff WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("staff", id.String())
	}
	return m, err
}

func (r *memberRepoPG) Update(ctx context.Context, m *Member) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE staff SET name=$2, email=$3, phone=$4, role=$5, status=$6, last_active=$7, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Email, m.Phone, m.Role, m.Status, m.LastActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("staff", m.ID.String())
	}
	return nil
}

func (r *memberRepoPG) List(ctx context.Context, orgID uuid.UUID, role string, limit, offset int) ([]*Member, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM staff WHERE org_id = $1 AND ($2 = '' OR role = $2)`, orgID, role,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+memberCols+` FROM staff
		WHERE org_id = $1 AND ($2 = '' OR role = $2) ORDER BY name, id LIMIT $3 OFFSET $4`,
		orgID, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

package donor

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

type donorRepoPG struct{ pool *pgxpool.Pool }

func NewDonorRepoPG(pool *pgxpool.Pool) DonorRepository {
	return &donorRepoPG{pool: pool}
}

const donorCols = `id, org_id, full_name, blood_group, age, contact_number, email,
	last_donation_date, total_donations, status, version_id, created_at, updated_at`

func scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.OrgID, &d.FullName, &d.BloodGroup, &d.Age, &d.ContactNumber, &d.Email,
		&d.LastDonationDate, &d.TotalDonations, &d.Status, &d.VersionID, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *donorRepoPG) Create(ctx context.Context, d *Donor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.VersionID = 1
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO donor (id, org_id, full_name, blood_group, age, contact_number, email,
			last_donation_date, total_donations, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		d.ID, d.OrgID, d.FullName, d.BloodGroup, d.Age, d.ContactNumber, d.Email,
		d.LastDonationDate, d.TotalDonations, d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *donorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	d, err := scanDonor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+donorCols+` FROM donor WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("donor", id.String())
	}
	return d, err
}

func (r *donorRepoPG) Update(ctx context.Context, d *Donor) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE donor SET full_name=$2, blood_group=$3, age=$4, contact_number=$5, email=$6,
			last_donation_date=$7, total_donations=$8, status=$9,
			version_id = version_id + 1, updated_at=NOW()
		WHERE id = $1 AND version_id = $10
		RETURNING version_id, updated_at`,
		d.ID, d.FullName, d.BloodGroup, d.Age, d.ContactNumber, d.Email,
		d.LastDonationDate, d.TotalDonations, d.Status, d.VersionID,
	).Scan(&d.VersionID, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update donor %s at version %d: %w", d.ID, d.VersionID, apperr.ErrConflict)
	}
	return err
}

func (r *donorRepoPG) List(ctx context.Context, orgID uuid.UUID, f Filter, limit, offset int) ([]*Donor, int, error) {
	where := []string{"org_id = $1"}
	args := []interface{}{orgID}
	idx := 2
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.BloodGroup != "" {
		where = append(where, fmt.Sprintf("blood_group = $%d", idx))
		args = append(args, f.BloodGroup)
		idx++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR contact_number ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	clause := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM donor WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM donor WHERE %s ORDER BY full_name, id LIMIT $%d OFFSET $%d", donorCols, clause, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *donorRepoPG) LiftDeferrals(ctx context.Context, orgID uuid.UUID, cutoff time.Time) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE donor SET status = $1, version_id = version_id + 1, updated_at = NOW()
		WHERE status = $2 AND (last_donation_date IS NULL OR last_donation_date <= $3)
		  AND ($4::uuid IS NULL OR org_id = $4)`,
		StatusAvailable, StatusTemporaryDeferral, cutoff, nullableOrg(orgID))
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

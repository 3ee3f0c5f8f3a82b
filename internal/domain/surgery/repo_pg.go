package surgery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgicast/surgicast/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const caseCols = `c.id, c.patient_id, c.surgeon_id, c.procedure_name, c.proposed_surgery_date::text,
	c.status, c.created_at, c.updated_at`

func scanCase(row pgx.Row, extra ...interface{}) (*Case, error) {
	var c Case
	dest := []interface{}{&c.ID, &c.PatientID, &c.SurgeonID, &c.ProcedureName, &c.ProposedSurgeryDate,
		&c.Status, &c.CreatedAt, &c.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+caseCols+` FROM surgical_cases c WHERE c.id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Case, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+caseCols+`, COALESCE(s.full_name, '')
		FROM surgical_cases c
		LEFT JOIN profiles s ON s.id = c.surgeon_id
		WHERE c.patient_id = $1
		ORDER BY c.proposed_surgery_date ASC, c.created_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Case
	for rows.Next() {
		var name string
		c, err := scanCase(rows, &name)
		if err != nil {
			return nil, err
		}
		c.SurgeonName = name
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) ListBySurgeon(ctx context.Context, surgeonID uuid.UUID, limit, offset int) ([]*Case, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM surgical_cases WHERE surgeon_id = $1`, surgeonID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+caseCols+`, COALESCE(p.full_name, '')
		FROM surgical_cases c
		LEFT JOIN profiles p ON p.id = c.patient_id
		WHERE c.surgeon_id = $1
		ORDER BY c.proposed_surgery_date ASC, c.created_at ASC
		LIMIT $2 OFFSET $3`, surgeonID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Case
	for rows.Next() {
		var name string
		c, err := scanCase(rows, &name)
		if err != nil {
			return nil, 0, err
		}
		c.PatientName = name
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE surgical_cases SET status = $2, updated_at = NOW()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package healthrecord

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgicast/surgicast/internal/platform/db"
)

// NewStoresPG returns pgx-backed repositories for all three record tables.
func NewStoresPG(pool *pgxpool.Pool) Stores {
	return Stores{
		Details:   &detailsRepoPG{pool: pool},
		Vitals:    &vitalsRepoPG{pool: pool},
		Surgeries: &surgeryRepoPG{pool: pool},
		tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.InTx(ctx, pool, fn)
		},
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Patient Details ===========

type detailsRepoPG struct{ pool *pgxpool.Pool }

const detailsCols = `id, user_id, personal_info, physical_info, lifestyle_info, created_at, updated_at`

func (r *detailsRepoPG) GetByUser(ctx context.Context, userID uuid.UUID) (*PatientDetails, error) {
	var d PatientDetails
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+detailsCols+` FROM patient_details WHERE user_id = $1`, userID).
		Scan(&d.ID, &d.UserID, &d.PersonalInfo, &d.PhysicalInfo, &d.LifestyleInfo, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *detailsRepoPG) Insert(ctx context.Context, d *PatientDetails) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_details (id, user_id, personal_info, physical_info, lifestyle_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.PersonalInfo, d.PhysicalInfo, d.LifestyleInfo).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *detailsRepoPG) UpdateByUser(ctx context.Context, d *PatientDetails) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient_details
		SET personal_info = $2, physical_info = $3, lifestyle_info = $4, updated_at = NOW()
		WHERE user_id = $1
		RETURNING id, created_at, updated_at`,
		d.UserID, d.PersonalInfo, d.PhysicalInfo, d.LifestyleInfo).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	return notFound(err)
}

// =========== Vital Signs ===========

type vitalsRepoPG struct{ pool *pgxpool.Pool }

const vitalsCols = `id, patient_id, created_at, heart_rate, systolic_bp, diastolic_bp, body_temperature_celsius, respiratory_rate, notes`

func scanVitals(row pgx.Row) (*VitalSigns, error) {
	var v VitalSigns
	err := row.Scan(&v.ID, &v.PatientID, &v.CreatedAt, &v.HeartRate, &v.SystolicBP, &v.DiastolicBP,
		&v.BodyTemperatureCelsius, &v.RespiratoryRate, &v.Notes)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *vitalsRepoPG) GetByID(ctx context.Context, patientID, id uuid.UUID) (*VitalSigns, error) {
	return scanVitals(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+vitalsCols+` FROM vital_signs WHERE id = $1 AND patient_id = $2`, id, patientID))
}

func (r *vitalsRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*VitalSigns, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+vitalsCols+` FROM vital_signs WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*VitalSigns
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *vitalsRepoPG) Insert(ctx context.Context, v *VitalSigns) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vital_signs (id, patient_id, heart_rate, systolic_bp, diastolic_bp,
			body_temperature_celsius, respiratory_rate, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		v.ID, v.PatientID, v.HeartRate, v.SystolicBP, v.DiastolicBP,
		v.BodyTemperatureCelsius, v.RespiratoryRate, v.Notes).Scan(&v.CreatedAt)
}

func (r *vitalsRepoPG) Update(ctx context.Context, v *VitalSigns) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vital_signs SET heart_rate = $3, systolic_bp = $4, diastolic_bp = $5,
			body_temperature_celsius = $6, respiratory_rate = $7, notes = $8
		WHERE id = $1 AND patient_id = $2
		RETURNING created_at`,
		v.ID, v.PatientID, v.HeartRate, v.SystolicBP, v.DiastolicBP,
		v.BodyTemperatureCelsius, v.RespiratoryRate, v.Notes).Scan(&v.CreatedAt)
	return notFound(err)
}

// =========== Surgical History ===========

type surgeryRepoPG struct{ pool *pgxpool.Pool }

const surgeryCols = `id, patient_id, procedure_name, surgery_date::text, surgeon_name, hospital_name, notes`

func scanSurgery(row pgx.Row) (*SurgicalHistory, error) {
	var s SurgicalHistory
	err := row.Scan(&s.ID, &s.PatientID, &s.ProcedureName, &s.SurgeryDate, &s.SurgeonName, &s.HospitalName, &s.Notes)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *surgeryRepoPG) GetByID(ctx context.Context, patientID, id uuid.UUID) (*SurgicalHistory, error) {
	return scanSurgery(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+surgeryCols+` FROM surgical_history WHERE id = $1 AND patient_id = $2`, id, patientID))
}

func (r *surgeryRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*SurgicalHistory, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+surgeryCols+` FROM surgical_history WHERE patient_id = $1 ORDER BY surgery_date DESC, created_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SurgicalHistory
	for rows.Next() {
		s, err := scanSurgery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *surgeryRepoPG) Insert(ctx context.Context, s *SurgicalHistory) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO surgical_history (id, patient_id, procedure_name, surgery_date, surgeon_name, hospital_name, notes)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)`,
		s.ID, s.PatientID, s.ProcedureName, s.SurgeryDate, s.SurgeonName, s.HospitalName, s.Notes)
	return err
}

func (r *surgeryRepoPG) Update(ctx context.Context, s *SurgicalHistory) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE surgical_history SET procedure_name = $3, surgery_date = $4::date,
			surgeon_name = $5, hospital_name = $6, notes = $7
		WHERE id = $1 AND patient_id = $2`,
		s.ID, s.PatientID, s.ProcedureName, s.SurgeryDate, s.SurgeonName, s.HospitalName, s.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

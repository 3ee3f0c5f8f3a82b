package healthrecord

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindVitals   Kind = "vitals"
	KindSurgery  Kind = "surgery"
	KindPersonal Kind = "personal"
)

func (k Kind) Valid() bool {
	switch k {
	case KindVitals, KindSurgery, KindPersonal:
		return true
	}
	return false
}

// Label is the human name used in editor titles.
func (k Kind) Label() string {
	switch k {
	case KindVitals:
		return "Vital Signs"
	case KindSurgery:
		return "Surgical History"
	case KindPersonal:
		return "Personal Information"
	}
	return string(k)
}

// Record is one of *VitalSigns, *SurgicalHistory or *PatientDetails.
type Record interface {
	RecordKind() Kind
}

type PersonalInfo struct {
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phone_number"`
}

type PhysicalInfo struct {
	HeightCM  *float64 `json:"height_cm"`
	WeightKG  *float64 `json:"weight_kg"`
	BloodType string   `json:"blood_type"`
}

type LifestyleInfo struct {
	SmokingStatus      string `json:"smoking_status"`
	AlcoholConsumption string `json:"alcohol_consumption"`
}

// PatientDetails maps to the patient_details table; the three info blocks are
// JSONB columns.
type PatientDetails struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	UserID        uuid.UUID     `db:"user_id" json:"user_id"`
	PersonalInfo  PersonalInfo  `db:"personal_info" json:"personal_info"`
	PhysicalInfo  PhysicalInfo  `db:"physical_info" json:"physical_info"`
	LifestyleInfo LifestyleInfo `db:"lifestyle_info" json:"lifestyle_info"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

func (*PatientDetails) RecordKind() Kind { return KindPersonal }

// VitalSigns maps to the vital_signs table. Notes is always serialized,
// as null when absent.
type VitalSigns struct {
	ID                     uuid.UUID `db:"id" json:"id"`
	PatientID              uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	HeartRate              int       `db:"heart_rate" json:"heart_rate"`
	SystolicBP             int       `db:"systolic_bp" json:"systolic_bp"`
	DiastolicBP            int       `db:"diastolic_bp" json:"diastolic_bp"`
	BodyTemperatureCelsius float64   `db:"body_temperature_celsius" json:"body_temperature_celsius"`
	RespiratoryRate        int       `db:"respiratory_rate" json:"respiratory_rate"`
	Notes                  *string   `db:"notes" json:"notes"`
}

func (*VitalSigns) RecordKind() Kind { return KindVitals }

// SurgicalHistory maps to the surgical_history table. SurgeryDate is a
// YYYY-MM-DD calendar date.
type SurgicalHistory struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	ProcedureName string    `db:"procedure_name" json:"procedure_name"`
	SurgeryDate   string    `db:"surgery_date" json:"surgery_date"`
	SurgeonName   *string   `db:"surgeon_name" json:"surgeon_name"`
	HospitalName  *string   `db:"hospital_name" json:"hospital_name"`
	Notes         *string   `db:"notes" json:"notes"`
}

func (*SurgicalHistory) RecordKind() Kind { return KindSurgery }

// HealthProfile is the read model of the health-profile view.
type HealthProfile struct {
	Details   *PatientDetails    `json:"patient_details"`
	Vitals    []*VitalSigns      `json:"vital_signs"`
	Surgeries []*SurgicalHistory `json:"surgical_history"`
}

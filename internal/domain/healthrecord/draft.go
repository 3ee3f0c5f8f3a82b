package healthrecord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid value")
)

// FieldError reports a draft value that could not be coerced on save.
type FieldError struct {
	Field string
	Value string
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %q is not a valid %s", e.Field, e.Value, e.Want)
}

func (e *FieldError) Unwrap() error { return ErrInvalidValue }

// Draft is the in-progress edit of one record. The concrete type is one of
// *VitalsDraft, *SurgeryDraft or *PersonalDraft.
type Draft interface {
	Kind() Kind
	// Editing reports whether the draft updates an existing record.
	Editing() bool
	// Set stores a raw value; coercion happens on save.
	Set(field, raw string) error
	Fields() map[string]string

	clone() Draft
	persist(ctx context.Context, st Stores, patientID uuid.UUID) error
}

// fieldSet holds raw string values for a fixed list of field names.
type fieldSet struct {
	names  []string
	values map[string]string
}

func newFieldSet(names []string) fieldSet {
	values := make(map[string]string, len(names))
	for _, n := range names {
		values[n] = ""
	}
	return fieldSet{names: names, values: values}
}

func (f *fieldSet) Set(field, raw string) error {
	if _, ok := f.values[field]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	f.values[field] = raw
	return nil
}

func (f *fieldSet) Fields() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f fieldSet) copyOf() fieldSet {
	values := make(map[string]string, len(f.values))
	for k, v := range f.values {
		values[k] = v
	}
	return fieldSet{names: f.names, values: values}
}

func (f *fieldSet) str(field string) string { return f.values[field] }

// optional maps "" to nil so absent values serialize as null.
func (f *fieldSet) optional(field string) *string {
	v := f.values[field]
	if v == "" {
		return nil
	}
	return &v
}

func (f *fieldSet) integer(field string) (int, error) {
	raw := f.values[field]
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &FieldError{Field: field, Value: raw, Want: "integer"}
	}
	return n, nil
}

func (f *fieldSet) float(field string) (float64, error) {
	raw := f.values[field]
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &FieldError{Field: field, Value: raw, Want: "number"}
	}
	return n, nil
}

func (f *fieldSet) optionalFloat(field string) (*float64, error) {
	if strings.TrimSpace(f.values[field]) == "" {
		return nil, nil
	}
	n, err := f.float(field)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// =========== Vitals ===========

var vitalsFields = []string{
	"heart_rate", "systolic_bp", "diastolic_bp", "body_temperature_celsius", "respiratory_rate", "notes",
}

type VitalsDraft struct {
	fieldSet
	id *uuid.UUID
}

func NewVitalsDraft(existing *VitalSigns) *VitalsDraft {
	d := &VitalsDraft{fieldSet: newFieldSet(vitalsFields)}
	if existing != nil {
		id := existing.ID
		d.id = &id
		d.values["heart_rate"] = strconv.Itoa(existing.HeartRate)
		d.values["systolic_bp"] = strconv.Itoa(existing.SystolicBP)
		d.values["diastolic_bp"] = strconv.Itoa(existing.DiastolicBP)
		d.values["body_temperature_celsius"] = formatFloat(existing.BodyTemperatureCelsius)
		d.values["respiratory_rate"] = strconv.Itoa(existing.RespiratoryRate)
		d.values["notes"] = deref(existing.Notes)
	}
	return d
}

func (d *VitalsDraft) Kind() Kind    { return KindVitals }
func (d *VitalsDraft) Editing() bool { return d.id != nil }

func (d *VitalsDraft) clone() Draft {
	return &VitalsDraft{fieldSet: d.copyOf(), id: d.id}
}

// Record coerces the draft into the row to write.
func (d *VitalsDraft) Record(patientID uuid.UUID) (*VitalSigns, error) {
	v := &VitalSigns{PatientID: patientID, Notes: d.optional("notes")}
	if d.id != nil {
		v.ID = *d.id
	}
	var err error
	if v.HeartRate, err = d.integer("heart_rate"); err != nil {
		return nil, err
	}
	if v.SystolicBP, err = d.integer("systolic_bp"); err != nil {
		return nil, err
	}
	if v.DiastolicBP, err = d.integer("diastolic_bp"); err != nil {
		return nil, err
	}
	if v.BodyTemperatureCelsius, err = d.float("body_temperature_celsius"); err != nil {
		return nil, err
	}
	if v.RespiratoryRate, err = d.integer("respiratory_rate"); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *VitalsDraft) persist(ctx context.Context, st Stores, patientID uuid.UUID) error {
	v, err := d.Record(patientID)
	if err != nil {
		return err
	}
	if d.Editing() {
		return st.Vitals.Update(ctx, v)
	}
	return st.Vitals.Insert(ctx, v)
}

// =========== Surgery ===========

var surgeryFields = []string{"procedure_name", "surgery_date", "surgeon_name", "hospital_name", "notes"}

const dateLayout = "2006-01-02"

type SurgeryDraft struct {
	fieldSet
	id *uuid.UUID
}

func NewSurgeryDraft(existing *SurgicalHistory) *SurgeryDraft {
	d := &SurgeryDraft{fieldSet: newFieldSet(surgeryFields)}
	if existing != nil {
		id := existing.ID
		d.id = &id
		d.values["procedure_name"] = existing.ProcedureName
		d.values["surgery_date"] = existing.SurgeryDate
		d.values["surgeon_name"] = deref(existing.SurgeonName)
		d.values["hospital_name"] = deref(existing.HospitalName)
		d.values["notes"] = deref(existing.Notes)
	}
	return d
}

func (d *SurgeryDraft) Kind() Kind    { return KindSurgery }
func (d *SurgeryDraft) Editing() bool { return d.id != nil }

func (d *SurgeryDraft) clone() Draft {
	return &SurgeryDraft{fieldSet: d.copyOf(), id: d.id}
}

func (d *SurgeryDraft) Record(patientID uuid.UUID) (*SurgicalHistory, error) {
	s := &SurgicalHistory{
		PatientID:     patientID,
		ProcedureName: d.str("procedure_name"),
		SurgeryDate:   strings.TrimSpace(d.str("surgery_date")),
		SurgeonName:   d.optional("surgeon_name"),
		HospitalName:  d.optional("hospital_name"),
		Notes:         d.optional("notes"),
	}
	if d.id != nil {
		s.ID = *d.id
	}
	if _, err := time.Parse(dateLayout, s.SurgeryDate); err != nil {
		return nil, &FieldError{Field: "surgery_date", Value: d.str("surgery_date"), Want: "date (YYYY-MM-DD)"}
	}
	return s, nil
}

func (d *SurgeryDraft) persist(ctx context.Context, st Stores, patientID uuid.UUID) error {
	s, err := d.Record(patientID)
	if err != nil {
		return err
	}
	if d.Editing() {
		return st.Surgeries.Update(ctx, s)
	}
	return st.Surgeries.Insert(ctx, s)
}

// =========== Personal ===========

var personalFields = []string{
	"date_of_birth", "gender", "address", "phone_number",
	"height_cm", "weight_kg", "blood_type",
	"smoking_status", "alcohol_consumption",
}

// PersonalDraft edits the single patient_details row of a patient. Whether
// save inserts or updates is decided by looking the row up by owner.
type PersonalDraft struct {
	fieldSet
	editing bool
}

func NewPersonalDraft(existing *PatientDetails) *PersonalDraft {
	d := &PersonalDraft{fieldSet: newFieldSet(personalFields)}
	if existing != nil {
		d.editing = true
		d.values["date_of_birth"] = existing.PersonalInfo.DateOfBirth
		d.values["gender"] = existing.PersonalInfo.Gender
		d.values["address"] = existing.PersonalInfo.Address
		d.values["phone_number"] = existing.PersonalInfo.PhoneNumber
		if existing.PhysicalInfo.HeightCM != nil {
			d.values["height_cm"] = formatFloat(*existing.PhysicalInfo.HeightCM)
		}
		if existing.PhysicalInfo.WeightKG != nil {
			d.values["weight_kg"] = formatFloat(*existing.PhysicalInfo.WeightKG)
		}
		d.values["blood_type"] = existing.PhysicalInfo.BloodType
		d.values["smoking_status"] = existing.LifestyleInfo.SmokingStatus
		d.values["alcohol_consumption"] = existing.LifestyleInfo.AlcoholConsumption
	}
	return d
}

func (d *PersonalDraft) Kind() Kind    { return KindPersonal }
func (d *PersonalDraft) Editing() bool { return d.editing }

func (d *PersonalDraft) clone() Draft {
	return &PersonalDraft{fieldSet: d.copyOf(), editing: d.editing}
}

func (d *PersonalDraft) Record(userID uuid.UUID) (*PatientDetails, error) {
	height, err := d.optionalFloat("height_cm")
	if err != nil {
		return nil, err
	}
	weight, err := d.optionalFloat("weight_kg")
	if err != nil {
		return nil, err
	}
	return &PatientDetails{
		UserID: userID,
		PersonalInfo: PersonalInfo{
			DateOfBirth: d.str("date_of_birth"),
			Gender:      d.str("gender"),
			Address:     d.str("address"),
			PhoneNumber: d.str("phone_number"),
		},
		PhysicalInfo: PhysicalInfo{
			HeightCM:  height,
			WeightKG:  weight,
			BloodType: d.str("blood_type"),
		},
		LifestyleInfo: LifestyleInfo{
			SmokingStatus:      d.str("smoking_status"),
			AlcoholConsumption: d.str("alcohol_consumption"),
		},
	}, nil
}

func (d *PersonalDraft) persist(ctx context.Context, st Stores, patientID uuid.UUID) error {
	rec, err := d.Record(patientID)
	if err != nil {
		return err
	}
	return st.atomically(ctx, func(ctx context.Context) error {
		_, err := st.Details.GetByUser(ctx, patientID)
		switch {
		case err == nil:
			return st.Details.UpdateByUser(ctx, rec)
		case errors.Is(err, ErrNotFound):
			return st.Details.Insert(ctx, rec)
		default:
			return err
		}
	})
}

// NewDraft opens a draft of kind, copying existing when it is non-nil.
func NewDraft(kind Kind, existing Record) (Draft, error) {
	if existing != nil && existing.RecordKind() != kind {
		return nil, ErrKindMismatch
	}
	switch kind {
	case KindVitals:
		v, _ := existing.(*VitalSigns)
		return NewVitalsDraft(v), nil
	case KindSurgery:
		s, _ := existing.(*SurgicalHistory)
		return NewSurgeryDraft(s), nil
	case KindPersonal:
		p, _ := existing.(*PatientDetails)
		return NewPersonalDraft(p), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

package surgery

import (
	"time"

	"github.com/google/uuid"
)

// Status of a surgical case. Transitions happen outside this service and
// arrive as status events.
type Status string

const (
	StatusProposed  Status = "Proposed"
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusProposed, StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Case is a row of surgical_cases. SurgeonName and PatientName are filled by
// the list queries from the joined profiles.
type Case struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	PatientID           uuid.UUID `db:"patient_id" json:"patient_id"`
	SurgeonID           uuid.UUID `db:"surgeon_id" json:"surgeon_id"`
	ProcedureName       string    `db:"procedure_name" json:"procedure_name"`
	ProposedSurgeryDate string    `db:"proposed_surgery_date" json:"proposed_surgery_date"`
	Status              Status    `db:"status" json:"status"`
	SurgeonName         string    `json:"surgeon_name,omitempty"`
	PatientName         string    `json:"patient_name,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// UpcomingLimit is how many cases the patient summary lists.
const UpcomingLimit = 5

// PatientSummary is the patient dashboard overview.
type PatientSummary struct {
	Total     int     `json:"total"`
	Scheduled int     `json:"scheduled"`
	Proposed  int     `json:"proposed"`
	Completed int     `json:"completed"`
	Upcoming  []*Case `json:"upcoming"`
}

// StatusEvent is the payload of a case status message.
type StatusEvent struct {
	CaseID uuid.UUID `json:"case_id"`
	Status Status    `json:"status"`
}

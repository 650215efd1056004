// pipeline.go defines the hiring-pipeline business entities: candidates, job
// requisitions, applications, and the stage-history trail behind each application.
package models

import "time"

// Requisition lifecycle states.
const (
	RequisitionDraft     = "draft"
	RequisitionPublished = "published"
	RequisitionClosed    = "closed"
)

// Application pipeline stages, in pipeline order.
const (
	StageApplied   = "applied"
	StageScreening = "screening"
	StageInterview = "interview"
	StageOffer     = "offer"
	StageHired     = "hired"
	StageRejected  = "rejected"
)

// ApplicationActive is the status a new application starts in.
const ApplicationActive = "active"

// ValidStage reports whether s names a known pipeline stage.
func ValidStage(s string) bool {
	switch s {
	case StageApplied, StageScreening, StageInterview, StageOffer, StageHired, StageRejected:
		return true
	}
	return false
}

// Candidate is a person moving through the hiring pipeline.
type Candidate struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Phone     *string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Requisition is an open job position candidates apply to.
type Requisition struct {
	ID          int64
	Title       string
	Department  string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Application ties a candidate to a requisition and tracks the current stage.
type Application struct {
	ID            int64
	CandidateID   int64
	RequisitionID int64
	CurrentStage  string
	Status        string
	AppliedAt     time.Time
	UpdatedAt     time.Time
}

// StageHistory records one stage transition of an application. Rows are append-only.
type StageHistory struct {
	ID            int64
	ApplicationID int64
	FromStage     *string
	ToStage       string
	MovedBy       *int64
	Note          *string
	MovedAt       time.Time
}

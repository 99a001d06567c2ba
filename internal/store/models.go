package store

import "time"

const (
	MotionPending   = "pending"
	MotionFinalized = "finalized"

	VersionDraft    = "draft"
	VersionApproved = "approved"
)

type Entity struct {
	ID          string
	Type        string
	Slug        string
	DisplayName string
	IsActive    bool
}

type Motion struct {
	ID          string
	MeetingID   string
	Title       string
	Description string
	MovedBy     *string
	SecondedBy  *string
	Status      string
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

type Vote struct {
	MotionID      string
	BoardMemberID string
	Value         string
	SignedAt      time.Time
}

// DocumentVersion is a version row joined with the entity that owns its document.
type DocumentVersion struct {
	ID            string
	DocumentID    string
	EntityID      string
	Content       string
	Status        string
	VersionNumber int
	UpdatedAt     time.Time
	ApprovedAt    *time.Time
}

// Packet is the board packet attached to a meeting. CanonicalVersionID is only
// set once an approved version has been bound to the meeting.
type Packet struct {
	MeetingID          string
	MeetingTitle       string
	DocumentID         string
	Title              string
	Status             string
	Current            DocumentVersion
	CanonicalVersionID *string
}

// ApprovalRequest carries the metadata stamped onto an approval record. SubjectID
// is a motion, meeting or document version id depending on the procedure.
type ApprovalRequest struct {
	SubjectID     string
	ApproverID    string
	Method        string
	SignatureHash string
	RequesterIP   string
}

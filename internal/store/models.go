package store

import "time"

// Canonical field names. These are the wire-level names used for spreadsheet
// round-trips, field-subset updates, and manual edits. Milestone dates are ISO
// "YYYY-MM-DD" strings; the empty string means the date is unknown, which is
// distinct from any real (possibly past) date.
const (
	FieldKey                      = "key"
	FieldTitle                    = "title"
	FieldInstitution              = "institution"
	FieldUnit                     = "unit"
	FieldState                    = "state"
	FieldIntegrator               = "integrator"
	FieldEstimatedAmount          = "estimatedAmount"
	FieldPublicationDate          = "publicationDate"
	FieldClarificationMeetingDate = "clarificationMeetingDate"
	FieldBidOpeningDate           = "bidOpeningDate"
	FieldAwardDate                = "awardDate"
	FieldContractSignDate         = "contractSignDate"
	FieldRequestedSupport         = "requestedSupport"
	FieldLetterSent               = "letterSent"
	FieldRelatedSupportID         = "relatedSupportId"
	FieldStatus                   = "status"
	FieldOwner                    = "owner"
	FieldLink                     = "link"
	FieldNotes                    = "notes"
)

// CanonicalFields is the export column order.
var CanonicalFields = []string{
	FieldKey,
	FieldTitle,
	FieldInstitution,
	FieldUnit,
	FieldState,
	FieldIntegrator,
	FieldEstimatedAmount,
	FieldPublicationDate,
	FieldClarificationMeetingDate,
	FieldBidOpeningDate,
	FieldAwardDate,
	FieldContractSignDate,
	FieldRequestedSupport,
	FieldLetterSent,
	FieldRelatedSupportID,
	FieldStatus,
	FieldOwner,
	FieldLink,
	FieldNotes,
}

type TenderRecord struct {
	Key                      string
	Title                    string
	Institution              string
	Unit                     string
	State                    string
	Integrator               string
	EstimatedAmount          float64
	PublicationDate          string
	ClarificationMeetingDate string
	BidOpeningDate           string
	AwardDate                string
	ContractSignDate         string
	RequestedSupport         bool
	LetterSent               bool
	RelatedSupportID         string
	Status                   string
	Owner                    string
	Link                     string
	Notes                    string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

type SupportRequest struct {
	ID           string
	RegisteredAt string
	Institution  string
	Unit         string
	Contact      string
	Email        string
	Phone        string
	Kind         string
	Description  string
	Owner        string
	Status       string
	Priority     string
	DueDate      string
	ClosedDate   string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTenderRecord builds a record with defined defaults for every canonical
// field, then overlays the carried fields. Fields a batch does not carry keep
// their defaults: empty string for text and dates, zero for the amount, false
// for the flags.
func NewTenderRecord(key string, fields map[string]any) TenderRecord {
	rec := TenderRecord{Key: key, Status: "Open"}
	for field, value := range fields {
		applyField(&rec, field, value)
	}
	return rec
}

// ApplyFields overlays carried fields onto an existing record. The key is
// immutable and silently ignored here; callers validate it upstream.
func (r *TenderRecord) ApplyFields(fields map[string]any) {
	for field, value := range fields {
		applyField(r, field, value)
	}
}

func applyField(r *TenderRecord, field string, value any) {
	switch field {
	case FieldKey:
		// immutable
	case FieldTitle:
		r.Title = asString(value)
	case FieldInstitution:
		r.Institution = asString(value)
	case FieldUnit:
		r.Unit = asString(value)
	case FieldState:
		r.State = asString(value)
	case FieldIntegrator:
		r.Integrator = asString(value)
	case FieldEstimatedAmount:
		r.EstimatedAmount = asFloat(value)
	case FieldPublicationDate:
		r.PublicationDate = asString(value)
	case FieldClarificationMeetingDate:
		r.ClarificationMeetingDate = asString(value)
	case FieldBidOpeningDate:
		r.BidOpeningDate = asString(value)
	case FieldAwardDate:
		r.AwardDate = asString(value)
	case FieldContractSignDate:
		r.ContractSignDate = asString(value)
	case FieldRequestedSupport:
		r.RequestedSupport = asBool(value)
	case FieldLetterSent:
		r.LetterSent = asBool(value)
	case FieldRelatedSupportID:
		r.RelatedSupportID = asString(value)
	case FieldStatus:
		r.Status = asString(value)
	case FieldOwner:
		r.Owner = asString(value)
	case FieldLink:
		r.Link = asString(value)
	case FieldNotes:
		r.Notes = asString(value)
	}
}

// FieldValue reads one canonical field off a record, for export round-trips.
func (r TenderRecord) FieldValue(field string) any {
	switch field {
	case FieldKey:
		return r.Key
	case FieldTitle:
		return r.Title
	case FieldInstitution:
		return r.Institution
	case FieldUnit:
		return r.Unit
	case FieldState:
		return r.State
	case FieldIntegrator:
		return r.Integrator
	case FieldEstimatedAmount:
		return r.EstimatedAmount
	case FieldPublicationDate:
		return r.PublicationDate
	case FieldClarificationMeetingDate:
		return r.ClarificationMeetingDate
	case FieldBidOpeningDate:
		return r.BidOpeningDate
	case FieldAwardDate:
		return r.AwardDate
	case FieldContractSignDate:
		return r.ContractSignDate
	case FieldRequestedSupport:
		return r.RequestedSupport
	case FieldLetterSent:
		return r.LetterSent
	case FieldRelatedSupportID:
		return r.RelatedSupportID
	case FieldStatus:
		return r.Status
	case FieldOwner:
		return r.Owner
	case FieldLink:
		return r.Link
	case FieldNotes:
		return r.Notes
	}
	return nil
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asFloat(value any) float64 {
	f, _ := value.(float64)
	return f
}

func asBool(value any) bool {
	b, _ := value.(bool)
	return b
}

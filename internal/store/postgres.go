package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// tenderColumns maps mutable canonical fields onto their columns. The key is
// deliberately absent: reconciliation identity is immutable once set.
var tenderColumns = map[string]string{
	FieldTitle:                    "title",
	FieldInstitution:              "institution",
	FieldUnit:                     "unit",
	FieldState:                    "state",
	FieldIntegrator:               "integrator",
	FieldEstimatedAmount:          "estimated_amount",
	FieldPublicationDate:          "publication_date",
	FieldClarificationMeetingDate: "clarification_meeting_date",
	FieldBidOpeningDate:           "bid_opening_date",
	FieldAwardDate:                "award_date",
	FieldContractSignDate:         "contract_sign_date",
	FieldRequestedSupport:         "requested_support",
	FieldLetterSent:               "letter_sent",
	FieldRelatedSupportID:         "related_support_id",
	FieldStatus:                   "status",
	FieldOwner:                    "owner",
	FieldLink:                     "link",
	FieldNotes:                    "notes",
}

const tenderSelectColumns = `key, title, institution, unit, state, integrator, estimated_amount,
	publication_date, clarification_meeting_date, bid_opening_date, award_date, contract_sign_date,
	requested_support, letter_sent, related_support_id, status, owner, link, notes, created_at, updated_at`

func scanTender(scanner interface{ Scan(...any) error }) (TenderRecord, error) {
	var item TenderRecord
	err := scanner.Scan(
		&item.Key,
		&item.Title,
		&item.Institution,
		&item.Unit,
		&item.State,
		&item.Integrator,
		&item.EstimatedAmount,
		&item.PublicationDate,
		&item.ClarificationMeetingDate,
		&item.BidOpeningDate,
		&item.AwardDate,
		&item.ContractSignDate,
		&item.RequestedSupport,
		&item.LetterSent,
		&item.RelatedSupportID,
		&item.Status,
		&item.Owner,
		&item.Link,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListTenders(ctx context.Context) ([]TenderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tenderSelectColumns+`
		FROM tenders
		ORDER BY created_at DESC, key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	defer rows.Close()

	items := make([]TenderRecord, 0)
	for rows.Next() {
		item, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tender: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTender(ctx context.Context, key string) (TenderRecord, error) {
	item, err := scanTender(s.db.QueryRowContext(ctx, `
		SELECT `+tenderSelectColumns+`
		FROM tenders
		WHERE key=$1
	`, key))
	if err != nil {
		return TenderRecord{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertTender(ctx context.Context, item TenderRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenders (
			key, title, institution, unit, state, integrator, estimated_amount,
			publication_date, clarification_meeting_date, bid_opening_date, award_date, contract_sign_date,
			requested_support, letter_sent, related_support_id, status, owner, link, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		item.Key, item.Title, item.Institution, item.Unit, item.State, item.Integrator, item.EstimatedAmount,
		item.PublicationDate, item.ClarificationMeetingDate, item.BidOpeningDate, item.AwardDate, item.ContractSignDate,
		item.RequestedSupport, item.LetterSent, item.RelatedSupportID, item.Status, item.Owner, item.Link, item.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert tender: %w", err)
	}
	return nil
}

// UpdateTenderFields overwrites exactly the carried fields in one statement,
// so a concurrent reader never observes a half-written record and columns the
// batch does not carry are left untouched.
func (s *PostgresStore) UpdateTenderFields(ctx context.Context, key string, fields map[string]any) (bool, error) {
	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	args = append(args, key)
	for _, field := range CanonicalFields {
		value, carried := fields[field]
		if !carried {
			continue
		}
		column, ok := tenderColumns[field]
		if !ok {
			continue
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if len(setClauses) == 0 {
		return s.tenderExists(ctx, key)
	}
	setClauses = append(setClauses, "updated_at=NOW()")

	result, err := s.db.ExecContext(ctx,
		`UPDATE tenders SET `+strings.Join(setClauses, ", ")+` WHERE key=$1`, args...)
	if err != nil {
		return false, fmt.Errorf("update tender fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update tender fields rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) tenderExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tenders WHERE key=$1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tender: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) UpdateTenderStatus(ctx context.Context, key, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tenders SET status=$2, updated_at=NOW() WHERE key=$1
	`, key, status)
	if err != nil {
		return false, fmt.Errorf("update tender status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update tender status rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteTender(ctx context.Context, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tenders WHERE key=$1`, key)
	if err != nil {
		return false, fmt.Errorf("delete tender: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete tender rows: %w", err)
	}
	return affected > 0, nil
}

const supportSelectColumns = `id, registered_at, institution, unit, contact, email, phone, kind,
	description, owner, status, priority, due_date, closed_date, notes, created_at, updated_at`

func scanSupport(scanner interface{ Scan(...any) error }) (SupportRequest, error) {
	var item SupportRequest
	err := scanner.Scan(
		&item.ID,
		&item.RegisteredAt,
		&item.Institution,
		&item.Unit,
		&item.Contact,
		&item.Email,
		&item.Phone,
		&item.Kind,
		&item.Description,
		&item.Owner,
		&item.Status,
		&item.Priority,
		&item.DueDate,
		&item.ClosedDate,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListSupportRequests(ctx context.Context) ([]SupportRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supportSelectColumns+`
		FROM support_requests
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list support requests: %w", err)
	}
	defer rows.Close()

	items := make([]SupportRequest, 0)
	for rows.Next() {
		item, err := scanSupport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan support request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate support requests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSupportRequest(ctx context.Context, id string) (SupportRequest, error) {
	item, err := scanSupport(s.db.QueryRowContext(ctx, `
		SELECT `+supportSelectColumns+`
		FROM support_requests
		WHERE id=$1
	`, id))
	if err != nil {
		return SupportRequest{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertSupportRequest(ctx context.Context, item SupportRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_requests (
			id, registered_at, institution, unit, contact, email, phone, kind,
			description, owner, status, priority, due_date, closed_date, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		item.ID, item.RegisteredAt, item.Institution, item.Unit, item.Contact, item.Email, item.Phone, item.Kind,
		item.Description, item.Owner, item.Status, item.Priority, item.DueDate, item.ClosedDate, item.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert support request: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSupportRequest(ctx context.Context, item SupportRequest) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE support_requests SET
			registered_at=$2, institution=$3, unit=$4, contact=$5, email=$6, phone=$7, kind=$8,
			description=$9, owner=$10, status=$11, priority=$12, due_date=$13, closed_date=$14, notes=$15,
			updated_at=NOW()
		WHERE id=$1
	`,
		item.ID, item.RegisteredAt, item.Institution, item.Unit, item.Contact, item.Email, item.Phone, item.Kind,
		item.Description, item.Owner, item.Status, item.Priority, item.DueDate, item.ClosedDate, item.Notes,
	)
	if err != nil {
		return false, fmt.Errorf("update support request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update support request rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteSupportRequest(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM support_requests WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete support request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete support request rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SummaryCounts(ctx context.Context) (total int, withSupport int, letterSent int, open int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenders`).Scan(&total); err != nil {
		err = fmt.Errorf("count tenders: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenders WHERE requested_support`).Scan(&withSupport); err != nil {
		err = fmt.Errorf("count tenders with support: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenders WHERE letter_sent`).Scan(&letterSent); err != nil {
		err = fmt.Errorf("count tenders with letter sent: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenders WHERE status='Open'`).Scan(&open); err != nil {
		err = fmt.Errorf("count open tenders: %w", err)
		return
	}
	return
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

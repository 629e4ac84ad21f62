package ingest

import (
	"tenderdesk/api/internal/store"
)

// Row is one spreadsheet row as the tabular codec delivers it: header cell
// to raw value.
type Row map[string]any

// NormalizedRow carries a non-empty key plus exactly the canonical fields
// the row had cells for. Fields the sheet lacks are absent from the map,
// never zero-valued, so the reconciler knows not to touch them.
type NormalizedRow struct {
	Key    string
	Fields map[string]any
}

// Batch is the transient product of one ingestion pass.
type Batch struct {
	Rows             []NormalizedRow
	SkippedCount     int
	MissingKeyColumn bool
}

// NormalizeBatch resolves the sheet's columns, converts each row's cells to
// canonical typed values, and collapses rows that repeat a key. Duplicate
// keys are applied in input order: the later row's carried fields win, field
// by field, and the record keeps its first-seen position.
func NormalizeBatch(headers []string, rows []Row) Batch {
	resolution := ResolveColumns(headers)
	if resolution.MissingKey {
		return Batch{MissingKeyColumn: true}
	}

	batch := Batch{Rows: make([]NormalizedRow, 0, len(rows))}
	byKey := make(map[string]int)

	for _, row := range rows {
		key := cellString(row[resolution.Columns[store.FieldKey]])
		if key == "" {
			batch.SkippedCount++
			continue
		}

		fields := normalizeFields(resolution, row)
		if idx, seen := byKey[key]; seen {
			for field, value := range fields {
				batch.Rows[idx].Fields[field] = value
			}
			continue
		}
		byKey[key] = len(batch.Rows)
		batch.Rows = append(batch.Rows, NormalizedRow{Key: key, Fields: fields})
	}
	return batch
}

func normalizeFields(resolution Resolution, row Row) map[string]any {
	fields := make(map[string]any, len(resolution.Columns))
	for field, header := range resolution.Columns {
		if field == store.FieldKey {
			continue
		}
		raw, present := row[header]
		if !present {
			continue
		}
		switch field {
		case store.FieldEstimatedAmount:
			fields[field] = ParseAmount(raw)
		case store.FieldPublicationDate,
			store.FieldClarificationMeetingDate,
			store.FieldBidOpeningDate,
			store.FieldAwardDate,
			store.FieldContractSignDate:
			fields[field] = ParseDate(raw)
		case store.FieldRequestedSupport:
			fields[field] = DeriveSupportFlag(cellString(raw))
		case store.FieldLetterSent:
			fields[field] = DeriveLetterFlag(cellString(raw))
		default:
			fields[field] = cellString(raw)
		}
	}
	return fields
}

package ingest

import (
	"testing"

	"tenderdesk/api/internal/store"
)

func TestNormalizeBatch(t *testing.T) {
	headers := []string{"CLAVE", "TITULO", "MONTO", "FALLO", "PIDIO APOYO"}
	rows := []Row{
		{"CLAVE": "LA-019", "TITULO": " Reactivos ", "MONTO": "1,000", "FALLO": "2026-04-01", "PIDIO APOYO": "si"},
		{"CLAVE": "", "TITULO": "sin clave"},
		{"CLAVE": "SC-002", "TITULO": "Cotización", "MONTO": "n/a", "FALLO": "por definir"},
	}

	batch := NormalizeBatch(headers, rows)
	if batch.MissingKeyColumn {
		t.Fatalf("key column resolves")
	}
	if batch.SkippedCount != 1 {
		t.Fatalf("expected 1 skipped blank-key row, got %d", batch.SkippedCount)
	}
	if len(batch.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(batch.Rows))
	}

	first := batch.Rows[0]
	if first.Key != "LA-019" {
		t.Fatalf("key: %q", first.Key)
	}
	if first.Fields[store.FieldTitle] != "Reactivos" {
		t.Fatalf("title not trimmed: %v", first.Fields[store.FieldTitle])
	}
	if first.Fields[store.FieldEstimatedAmount] != 1000.0 {
		t.Fatalf("amount: %v", first.Fields[store.FieldEstimatedAmount])
	}
	if first.Fields[store.FieldRequestedSupport] != true {
		t.Fatalf("support flag: %v", first.Fields[store.FieldRequestedSupport])
	}

	second := batch.Rows[1]
	if second.Fields[store.FieldEstimatedAmount] != 0.0 {
		t.Fatalf("unparseable amount must become 0, got %v", second.Fields[store.FieldEstimatedAmount])
	}
	if second.Fields[store.FieldAwardDate] != "" {
		t.Fatalf("unparseable date must become unknown, got %v", second.Fields[store.FieldAwardDate])
	}
}

func TestNormalizeBatchMissingKeyColumn(t *testing.T) {
	batch := NormalizeBatch([]string{"TITULO", "MONTO"}, []Row{
		{"TITULO": "x", "MONTO": "100"},
	})
	if !batch.MissingKeyColumn {
		t.Fatalf("expected MissingKeyColumn")
	}
	if len(batch.Rows) != 0 || batch.SkippedCount != 0 {
		t.Fatalf("a batch without identity produces zero rows")
	}
}

func TestNormalizeBatchCollapsesDuplicateKeys(t *testing.T) {
	headers := []string{"CLAVE", "TITULO", "MONTO"}
	rows := []Row{
		{"CLAVE": "A-1", "TITULO": "X", "MONTO": "1,000"},
		{"CLAVE": "B-2", "TITULO": "other"},
		// Later duplicate carries no amount cell, so the amount must survive.
		{"CLAVE": "A-1", "TITULO": "Y"},
	}

	batch := NormalizeBatch(headers, rows)
	if len(batch.Rows) != 2 {
		t.Fatalf("duplicates collapse, got %d rows", len(batch.Rows))
	}
	if batch.Rows[0].Key != "A-1" || batch.Rows[1].Key != "B-2" {
		t.Fatalf("input order not preserved: %q, %q", batch.Rows[0].Key, batch.Rows[1].Key)
	}
	merged := batch.Rows[0]
	if merged.Fields[store.FieldTitle] != "Y" {
		t.Fatalf("later row wins per carried field, title=%v", merged.Fields[store.FieldTitle])
	}
	if merged.Fields[store.FieldEstimatedAmount] != 1000.0 {
		t.Fatalf("field the later row does not carry stays, amount=%v", merged.Fields[store.FieldEstimatedAmount])
	}
}

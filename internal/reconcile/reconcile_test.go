package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"tenderdesk/api/internal/ingest"
	"tenderdesk/api/internal/store"
)

func TestReconcileIdempotence(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	r := New(mem)

	headers := []string{"CLAVE", "TITULO", "MONTO"}
	rows := []ingest.Row{
		{"CLAVE": "LA-1", "TITULO": "Equipos", "MONTO": "1,500"},
		{"CLAVE": "LP-2", "TITULO": "Servicios", "MONTO": "900"},
		{"CLAVE": "SC-3", "TITULO": "Cotización", "MONTO": ""},
	}

	report, err := r.Reconcile(ctx, ingest.NormalizeBatch(headers, rows))
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if report.Inserted != 3 || report.Updated != 0 {
		t.Fatalf("first pass: inserted=%d updated=%d", report.Inserted, report.Updated)
	}

	report, err = r.Reconcile(ctx, ingest.NormalizeBatch(headers, rows))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if report.Inserted != 0 || report.Updated != 3 {
		t.Fatalf("second pass: inserted=%d updated=%d", report.Inserted, report.Updated)
	}
}

func TestReconcileColumnIndependence(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	r := New(mem)

	full := ingest.NormalizeBatch(
		[]string{"CLAVE", "TITULO", "MONTO", "FALLO"},
		[]ingest.Row{{"CLAVE": "LA-7", "TITULO": "Laboratorio", "MONTO": "5,000", "FALLO": "2026-10-01"}},
	)
	if _, err := r.Reconcile(ctx, full); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A later extract without the amount and award columns must not erase
	// what the first pass wrote.
	partial := ingest.NormalizeBatch(
		[]string{"CLAVE", "TITULO"},
		[]ingest.Row{{"CLAVE": "LA-7", "TITULO": "Laboratorio central"}},
	)
	if _, err := r.Reconcile(ctx, partial); err != nil {
		t.Fatalf("partial: %v", err)
	}

	rec, err := mem.GetTender(ctx, "LA-7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Title != "Laboratorio central" {
		t.Fatalf("title: %q", rec.Title)
	}
	if rec.EstimatedAmount != 5000 {
		t.Fatalf("amount erased: %v", rec.EstimatedAmount)
	}
	if rec.AwardDate != "2026-10-01" {
		t.Fatalf("award date erased: %q", rec.AwardDate)
	}
}

func TestReconcileMissingKeyColumn(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemoryStore())

	batch := ingest.NormalizeBatch([]string{"TITULO"}, []ingest.Row{{"TITULO": "x"}})
	report, err := r.Reconcile(ctx, batch)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.MissingKeyColumn {
		t.Fatalf("expected MissingKeyColumn in report")
	}
	if report.Inserted != 0 || report.Updated != 0 {
		t.Fatalf("missing key column means zero effect, got %d/%d", report.Inserted, report.Updated)
	}
}

func TestReconcileInBatchDuplicates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	r := New(mem)

	batch := ingest.NormalizeBatch(
		[]string{"CLAVE", "TITULO", "MONTO"},
		[]ingest.Row{
			{"CLAVE": "A-1", "TITULO": "X", "MONTO": "1,000"},
			{"CLAVE": "A-1", "TITULO": "Y"},
		},
	)
	report, err := r.Reconcile(ctx, batch)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Inserted != 1 || report.Updated != 0 {
		t.Fatalf("in-batch duplicate collapses before the store pass, got %d/%d", report.Inserted, report.Updated)
	}

	rec, err := mem.GetTender(ctx, "A-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Title != "Y" {
		t.Fatalf("later row's title wins, got %q", rec.Title)
	}
	if rec.EstimatedAmount != 1000 {
		t.Fatalf("amount untouched by the later row, got %v", rec.EstimatedAmount)
	}
}

func TestConcurrentReconcileAndEditsOnOneKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	r := New(mem)

	seed := ingest.NormalizeBatch(
		[]string{"CLAVE", "TITULO"},
		[]ingest.Row{{"CLAVE": "LA-77", "TITULO": "seed"}},
	)
	if _, err := r.Reconcile(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The import carries title+amount, the edit carries notes, the
	// transition carries status. Whatever the interleaving, every subset
	// must survive: no torn record, no lost update.
	batch := ingest.NormalizeBatch(
		[]string{"CLAVE", "TITULO", "MONTO"},
		[]ingest.Row{{"CLAVE": "LA-77", "TITULO": "Laboratorio", "MONTO": "4,000"}},
	)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := r.Reconcile(ctx, batch); err != nil {
				t.Errorf("reconcile: %v", err)
			}
		}()
		go func(n int) {
			defer wg.Done()
			note := fmt.Sprintf("revision %d", n)
			if ok, err := r.ApplyEdit(ctx, "LA-77", map[string]any{store.FieldNotes: note}); err != nil || !ok {
				t.Errorf("edit: ok=%v err=%v", ok, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if ok, err := r.ApplyStatus(ctx, "LA-77", "UnderReview"); err != nil || !ok {
				t.Errorf("status: ok=%v err=%v", ok, err)
			}
		}()
	}
	wg.Wait()

	rec, err := mem.GetTender(ctx, "LA-77")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Title != "Laboratorio" || rec.EstimatedAmount != 4000 {
		t.Fatalf("import subset lost: title=%q amount=%v", rec.Title, rec.EstimatedAmount)
	}
	if !strings.HasPrefix(rec.Notes, "revision ") {
		t.Fatalf("edit subset lost: notes=%q", rec.Notes)
	}
	if rec.Status != "UnderReview" {
		t.Fatalf("transition lost: status=%q", rec.Status)
	}
}

func TestApplyEditKeepsDisjointFields(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	r := New(mem)

	seed := ingest.NormalizeBatch(
		[]string{"CLAVE", "TITULO", "MONTO"},
		[]ingest.Row{{"CLAVE": "LA-9", "TITULO": "Insumos", "MONTO": "2,000"}},
	)
	if _, err := r.Reconcile(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := r.ApplyEdit(ctx, "LA-9", map[string]any{store.FieldNotes: "revisar bases"})
	if err != nil || !ok {
		t.Fatalf("edit: ok=%v err=%v", ok, err)
	}

	rec, _ := mem.GetTender(ctx, "LA-9")
	if rec.Notes != "revisar bases" || rec.Title != "Insumos" || rec.EstimatedAmount != 2000 {
		t.Fatalf("disjoint update clobbered fields: %+v", rec)
	}
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenderdesk/api/internal/cache"
	"tenderdesk/api/internal/ingest"
	"tenderdesk/api/internal/reconcile"
	"tenderdesk/api/internal/status"
	"tenderdesk/api/internal/store"
	"tenderdesk/api/internal/timeline"
	"tenderdesk/api/internal/urgency"
	"tenderdesk/api/internal/util"
)

type dataStore interface {
	ListTenders(context.Context) ([]store.TenderRecord, error)
	GetTender(context.Context, string) (store.TenderRecord, error)
	InsertTender(context.Context, store.TenderRecord) error
	UpdateTenderFields(context.Context, string, map[string]any) (bool, error)
	UpdateTenderStatus(context.Context, string, string) (bool, error)
	DeleteTender(context.Context, string) (bool, error)
	ListSupportRequests(context.Context) ([]store.SupportRequest, error)
	GetSupportRequest(context.Context, string) (store.SupportRequest, error)
	InsertSupportRequest(context.Context, store.SupportRequest) error
	UpdateSupportRequest(context.Context, store.SupportRequest) (bool, error)
	DeleteSupportRequest(context.Context, string) (bool, error)
	SummaryCounts(context.Context) (int, int, int, int, error)
	Ping(context.Context) error
}

type ListTendersInput struct {
	Query       string
	Institution string
	Integrator  string
	Status      string
	Category    string
	LetterSent  *bool
}

type ListSupportsInput struct {
	Query    string
	Status   string
	Priority string
	Kind     string
}

// SupportRequestInput uses pointers so a PATCH body only touches the fields
// it carries, matching the tender edit semantics.
type SupportRequestInput struct {
	RegisteredAt *string `json:"registeredAt"`
	Institution  *string `json:"institution"`
	Unit         *string `json:"unit"`
	Contact      *string `json:"contact"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Kind         *string `json:"kind"`
	Description  *string `json:"description"`
	Owner        *string `json:"owner"`
	Status       *string `json:"status"`
	Priority     *string `json:"priority"`
	DueDate      *string `json:"dueDate"`
	ClosedDate   *string `json:"closedDate"`
	Notes        *string `json:"notes"`
}

var supportStatuses = map[string]struct{}{
	"Pending":    {},
	"InProgress": {},
	"Closed":     {},
	"Blocked":    {},
}

var supportPriorities = map[string]struct{}{
	"Low":      {},
	"Medium":   {},
	"High":     {},
	"Critical": {},
}

type Service struct {
	store      dataStore
	reconciler *reconcile.Reconciler
	boardCache *cache.BoardCache
	windowDays int
}

// New wires the service. boardCache may be nil; every cache interaction is
// skipped then.
func New(ds dataStore, boardCache *cache.BoardCache, windowDays int) *Service {
	return &Service{
		store:      ds,
		reconciler: reconcile.New(ds),
		boardCache: boardCache,
		windowDays: windowDays,
	}
}

func (s *Service) WindowDays() int {
	return s.windowDays
}

// ImportRows runs one spreadsheet extract through normalization and
// reconciliation and reports what happened.
func (s *Service) ImportRows(ctx context.Context, headers []string, rows []ingest.Row) (map[string]any, error) {
	batch := ingest.NormalizeBatch(headers, rows)
	report, err := s.reconciler.Reconcile(ctx, batch)
	if err != nil {
		return nil, err
	}
	if report.Inserted > 0 || report.Updated > 0 {
		s.invalidateBoard(ctx)
	}
	return map[string]any{
		"batchId":          uuid.NewString(),
		"insertedCount":    report.Inserted,
		"updatedCount":     report.Updated,
		"skippedCount":     report.Skipped,
		"missingKeyColumn": report.MissingKeyColumn,
	}, nil
}

// keyCategory splits tenders by how they arrived: LA/LP/PC/LV keys are
// published bids, SC keys are direct quote requests.
func keyCategory(key string) string {
	upper := strings.ToUpper(key)
	for _, prefix := range []string{"LA-", "LP-", "PC-", "LV-"} {
		if strings.HasPrefix(upper, prefix) {
			return "bid"
		}
	}
	if strings.HasPrefix(upper, "SC-") {
		return "quote"
	}
	return "other"
}

func (s *Service) ListTenders(ctx context.Context, input ListTendersInput) ([]map[string]any, error) {
	items, err := s.store.ListTenders(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if input.Institution != "" && !strings.EqualFold(item.Institution, input.Institution) {
			continue
		}
		if input.Integrator != "" && !strings.EqualFold(item.Integrator, input.Integrator) {
			continue
		}
		if input.Status != "" && item.Status != input.Status {
			continue
		}
		if input.Category != "" && keyCategory(item.Key) != input.Category {
			continue
		}
		if input.LetterSent != nil && item.LetterSent != *input.LetterSent {
			continue
		}
		if query != "" && !matchesQuery(item, query) {
			continue
		}
		result = append(result, tenderView(item))
	}
	return result, nil
}

func matchesQuery(item store.TenderRecord, query string) bool {
	for _, field := range []string{item.Key, item.Title, item.Institution, item.Unit, item.Integrator, item.Owner} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Service) CreateTender(ctx context.Context, key string, fields map[string]any) (map[string]any, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_KEY", "Tender key is required", nil)
	}
	if err := validateFieldNames(fields); err != nil {
		return nil, err
	}
	if raw, ok := fields[store.FieldStatus]; ok {
		if value, _ := raw.(string); !status.Valid(value) {
			return nil, domainError(http.StatusUnprocessableEntity, "INVALID_STATUS", "Unrecognized status", map[string]any{"allowed": status.All})
		}
	}

	_, err := s.store.GetTender(ctx, key)
	if err == nil {
		return nil, domainError(http.StatusConflict, "KEY_EXISTS", "A tender with this key already exists", map[string]any{"key": key})
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rec := store.NewTenderRecord(key, fields)
	if err := s.store.InsertTender(ctx, rec); err != nil {
		return nil, err
	}
	s.invalidateBoard(ctx)

	created, err := s.store.GetTender(ctx, key)
	if err != nil {
		return nil, err
	}
	return tenderView(created), nil
}

func (s *Service) GetTender(ctx context.Context, key string, today time.Time, windowDays int) (map[string]any, error) {
	rec, err := s.store.GetTender(ctx, key)
	if err != nil {
		return nil, err
	}
	view := tenderView(rec)
	view["urgency"] = urgencyView(urgency.Evaluate(rec, today))
	view["timeline"] = marksView(timeline.Marks(rec, today, windowDays))
	return view, nil
}

// UpdateTender applies a manual field-subset edit. Only recognized canonical
// fields pass; the key is immutable.
func (s *Service) UpdateTender(ctx context.Context, key string, fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, domainError(http.StatusBadRequest, "EMPTY_UPDATE", "No fields to update", nil)
	}
	if err := validateFieldNames(fields); err != nil {
		return nil, err
	}
	if _, ok := fields[store.FieldStatus]; ok {
		if raw, _ := fields[store.FieldStatus].(string); !status.Valid(raw) {
			return nil, domainError(http.StatusUnprocessableEntity, "INVALID_STATUS", "Unrecognized status", map[string]any{"allowed": status.All})
		}
	}

	ok, err := s.reconciler.ApplyEdit(ctx, key, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.invalidateBoard(ctx)

	rec, err := s.store.GetTender(ctx, key)
	if err != nil {
		return nil, err
	}
	return tenderView(rec), nil
}

func validateFieldNames(fields map[string]any) error {
	known := make(map[string]struct{}, len(store.CanonicalFields))
	for _, f := range store.CanonicalFields {
		known[f] = struct{}{}
	}
	var bad []string
	for field := range fields {
		if field == store.FieldKey {
			return domainError(http.StatusBadRequest, "IMMUTABLE_KEY", "The tender key cannot be changed", nil)
		}
		if _, ok := known[field]; !ok {
			bad = append(bad, field)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return domainError(http.StatusBadRequest, "UNKNOWN_FIELD", "Unknown field names", map[string]any{"fields": bad})
	}
	return nil
}

func (s *Service) DeleteTender(ctx context.Context, key string) error {
	ok, err := s.store.DeleteTender(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	s.invalidateBoard(ctx)
	return nil
}

// TransitionStatus moves a tender to a new board lane. The target must be a
// recognized status; beyond that any move is allowed, including reopening.
func (s *Service) TransitionStatus(ctx context.Context, key, newStatus string) (map[string]any, error) {
	rec, err := s.store.GetTender(ctx, key)
	if err != nil {
		return nil, err
	}
	if !status.CanTransition(rec.Status, newStatus) {
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_STATUS", "Unrecognized status", map[string]any{"allowed": status.All})
	}

	ok, err := s.reconciler.ApplyStatus(ctx, key, newStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.invalidateBoard(ctx)
	return map[string]any{"key": key, "status": newStatus, "previousStatus": rec.Status}, nil
}

func (s *Service) TenderUrgency(ctx context.Context, key string, today time.Time, windowDays int) (map[string]any, error) {
	rec, err := s.store.GetTender(ctx, key)
	if err != nil {
		return nil, err
	}
	result := urgency.Evaluate(rec, today)
	return map[string]any{
		"key":      rec.Key,
		"today":    today.Format("2006-01-02"),
		"urgency":  urgencyView(result),
		"timeline": marksView(timeline.Marks(rec, today, windowDays)),
	}, nil
}

// Board builds the status-board snapshot: headline counts, an urgency
// ranking, and one lane per status. Snapshots are cached per (day, window)
// when Redis is configured.
func (s *Service) Board(ctx context.Context, today time.Time, windowDays int) (map[string]any, error) {
	day := today.Format("2006-01-02")
	if s.boardCache != nil {
		if snapshot, ok := s.boardCache.Get(ctx, day, windowDays); ok {
			return snapshot, nil
		}
	}

	items, err := s.store.ListTenders(ctx)
	if err != nil {
		return nil, err
	}
	total, withSupport, letterSent, open, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}

	type rankedTender struct {
		rec    store.TenderRecord
		result urgency.Result
	}
	ranked := make([]rankedTender, 0, len(items))
	bands := map[urgency.Band]int{}
	for _, item := range items {
		result := urgency.Evaluate(item, today)
		bands[result.Band]++
		ranked = append(ranked, rankedTender{rec: item, result: result})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return lessUrgent(ranked[j].result, ranked[i].result)
	})

	ranking := make([]map[string]any, 0, len(ranked))
	lanes := make(map[string][]map[string]any, len(status.All))
	for _, lane := range status.All {
		lanes[lane] = make([]map[string]any, 0)
	}
	for _, entry := range ranked {
		summary := map[string]any{
			"key":         entry.rec.Key,
			"title":       entry.rec.Title,
			"institution": entry.rec.Institution,
			"status":      entry.rec.Status,
			"band":        string(entry.result.Band),
			"overallDelta": func() any {
				if entry.result.Overall == nil {
					return nil
				}
				return *entry.result.Overall
			}(),
			"timeline": marksView(timeline.Marks(entry.rec, today, windowDays)),
		}
		ranking = append(ranking, summary)
		lane := entry.rec.Status
		if !status.Valid(lane) {
			lane = status.Open
		}
		lanes[lane] = append(lanes[lane], summary)
	}

	snapshot := map[string]any{
		"today":      day,
		"windowDays": windowDays,
		"totals": map[string]any{
			"total":       total,
			"withSupport": withSupport,
			"letterSent":  letterSent,
			"open":        open,
		},
		"kpis": map[string]any{
			"overdue":      bands[urgency.BandOverdue],
			"dueToday":     bands[urgency.BandDueToday],
			"dueSoon":      bands[urgency.BandDueSoon],
			"scheduled":    bands[urgency.BandScheduled],
			"unclassified": bands[urgency.BandUnclassified],
		},
		"ranking": ranking,
		"lanes":   lanes,
	}

	if s.boardCache != nil {
		_ = s.boardCache.Set(ctx, day, windowDays, snapshot)
	}
	return snapshot, nil
}

// lessUrgent orders a after b when a is less urgent. Records with no known
// milestone sort last.
func lessUrgent(a, b urgency.Result) bool {
	if a.Overall == nil {
		return b.Overall != nil
	}
	if b.Overall == nil {
		return false
	}
	return *a.Overall > *b.Overall
}

var calendarMilestones = []struct {
	field string
	label string
}{
	{store.FieldPublicationDate, "Publicación"},
	{store.FieldClarificationMeetingDate, "Junta de aclaraciones"},
	{store.FieldBidOpeningDate, "Apertura"},
	{store.FieldAwardDate, "Fallo"},
	{store.FieldContractSignDate, "Firma de contrato"},
}

// Calendar flattens every known milestone date into a date-sorted event list.
func (s *Service) Calendar(ctx context.Context) ([]map[string]any, error) {
	items, err := s.store.ListTenders(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]map[string]any, 0)
	for _, item := range items {
		for _, milestone := range calendarMilestones {
			date, _ := item.FieldValue(milestone.field).(string)
			if date == "" {
				continue
			}
			events = append(events, map[string]any{
				"date":      date,
				"key":       item.Key,
				"title":     item.Title,
				"milestone": milestone.field,
				"label":     milestone.label,
			})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		di, dj := events[i]["date"].(string), events[j]["date"].(string)
		if di != dj {
			return di < dj
		}
		return events[i]["key"].(string) < events[j]["key"].(string)
	})
	return events, nil
}

// ExportRows produces the canonical round-trip shape: the fixed header list
// plus one ordered value row per tender, for any tabular encoder.
func (s *Service) ExportRows(ctx context.Context) (map[string]any, error) {
	items, err := s.store.ListTenders(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		row := make([]any, 0, len(store.CanonicalFields))
		for _, field := range store.CanonicalFields {
			row = append(row, item.FieldValue(field))
		}
		rows = append(rows, row)
	}
	return map[string]any{
		"headers": store.CanonicalFields,
		"rows":    rows,
	}, nil
}

// ListSupportRequests filters the apoyos list and summarizes it: free-text
// query over institution, unit, contact, and owner, exact status, priority,
// and kind selectors, plus per-status counts of the filtered view.
func (s *Service) ListSupportRequests(ctx context.Context, input ListSupportsInput) (map[string]any, error) {
	items, err := s.store.ListSupportRequests(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	result := make([]map[string]any, 0, len(items))
	statusCounts := make(map[string]int, len(supportStatuses))
	for _, item := range items {
		if input.Status != "" && item.Status != input.Status {
			continue
		}
		if input.Priority != "" && item.Priority != input.Priority {
			continue
		}
		if input.Kind != "" && !strings.EqualFold(item.Kind, input.Kind) {
			continue
		}
		if query != "" && !matchesSupportQuery(item, query) {
			continue
		}
		result = append(result, supportView(item))
		statusCounts[item.Status]++
	}
	return map[string]any{
		"supports":     result,
		"total":        len(result),
		"statusCounts": statusCounts,
	}, nil
}

func matchesSupportQuery(item store.SupportRequest, query string) bool {
	for _, field := range []string{item.Institution, item.Unit, item.Contact, item.Owner} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Service) CreateSupportRequest(ctx context.Context, input SupportRequestInput) (map[string]any, error) {
	item := supportFromInput(store.SupportRequest{ID: util.NewID("sup")}, input)
	if item.Status == "" {
		item.Status = "Pending"
	}
	if item.Priority == "" {
		item.Priority = "Medium"
	}
	if err := validateSupport(item); err != nil {
		return nil, err
	}
	if err := s.store.InsertSupportRequest(ctx, item); err != nil {
		return nil, err
	}
	created, err := s.store.GetSupportRequest(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return supportView(created), nil
}

func (s *Service) GetSupportRequest(ctx context.Context, id string) (map[string]any, error) {
	item, err := s.store.GetSupportRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return supportView(item), nil
}

func (s *Service) UpdateSupportRequest(ctx context.Context, id string, input SupportRequestInput) (map[string]any, error) {
	existing, err := s.store.GetSupportRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	item := supportFromInput(existing, input)
	if err := validateSupport(item); err != nil {
		return nil, err
	}
	ok, err := s.store.UpdateSupportRequest(ctx, item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sql.ErrNoRows
	}
	updated, err := s.store.GetSupportRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return supportView(updated), nil
}

func (s *Service) DeleteSupportRequest(ctx context.Context, id string) error {
	ok, err := s.store.DeleteSupportRequest(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	return nil
}

func supportFromInput(base store.SupportRequest, input SupportRequestInput) store.SupportRequest {
	setString := func(target *string, value *string) {
		if value != nil {
			*target = strings.TrimSpace(*value)
		}
	}
	setString(&base.RegisteredAt, input.RegisteredAt)
	setString(&base.Institution, input.Institution)
	setString(&base.Unit, input.Unit)
	setString(&base.Contact, input.Contact)
	setString(&base.Email, input.Email)
	setString(&base.Phone, input.Phone)
	setString(&base.Kind, input.Kind)
	setString(&base.Description, input.Description)
	setString(&base.Owner, input.Owner)
	setString(&base.Status, input.Status)
	setString(&base.Priority, input.Priority)
	if input.DueDate != nil {
		base.DueDate = ingest.ParseDate(*input.DueDate)
	}
	if input.ClosedDate != nil {
		base.ClosedDate = ingest.ParseDate(*input.ClosedDate)
	}
	setString(&base.Notes, input.Notes)
	return base
}

func validateSupport(item store.SupportRequest) error {
	if _, ok := supportStatuses[item.Status]; !ok {
		return domainError(http.StatusUnprocessableEntity, "INVALID_SUPPORT_STATUS", "Unrecognized support status", map[string]any{"status": item.Status})
	}
	if _, ok := supportPriorities[item.Priority]; !ok {
		return domainError(http.StatusUnprocessableEntity, "INVALID_SUPPORT_PRIORITY", "Unrecognized support priority", map[string]any{"priority": item.Priority})
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) invalidateBoard(ctx context.Context) {
	if s.boardCache == nil {
		return
	}
	if err := s.boardCache.Invalidate(ctx); err != nil {
		log.Printf(`{"event":"board_cache_invalidate_failed","error":%q}`, err.Error())
	}
}

func tenderView(item store.TenderRecord) map[string]any {
	return map[string]any{
		"key":                      item.Key,
		"title":                    item.Title,
		"institution":              item.Institution,
		"unit":                     item.Unit,
		"state":                    item.State,
		"integrator":               item.Integrator,
		"estimatedAmount":          item.EstimatedAmount,
		"publicationDate":          item.PublicationDate,
		"clarificationMeetingDate": item.ClarificationMeetingDate,
		"bidOpeningDate":           item.BidOpeningDate,
		"awardDate":                item.AwardDate,
		"contractSignDate":         item.ContractSignDate,
		"requestedSupport":         item.RequestedSupport,
		"letterSent":               item.LetterSent,
		"relatedSupportId":         item.RelatedSupportID,
		"status":                   item.Status,
		"owner":                    item.Owner,
		"link":                     item.Link,
		"notes":                    item.Notes,
		"category":                 keyCategory(item.Key),
		"createdAt":                item.CreatedAt,
		"updatedAt":                item.UpdatedAt,
	}
}

func urgencyView(result urgency.Result) map[string]any {
	deltas := make(map[string]any, len(result.Deltas))
	for field, delta := range result.Deltas {
		if delta == nil {
			deltas[field] = nil
		} else {
			deltas[field] = *delta
		}
	}
	view := map[string]any{
		"deltas": deltas,
		"band":   string(result.Band),
	}
	if result.Overall == nil {
		view["overallDelta"] = nil
	} else {
		view["overallDelta"] = *result.Overall
	}
	return view
}

func marksView(marks []timeline.Mark) []map[string]any {
	result := make([]map[string]any, 0, len(marks))
	for _, mark := range marks {
		view := map[string]any{
			"label": mark.Label,
			"field": mark.Field,
		}
		if mark.Delta == nil {
			view["delta"] = nil
		} else {
			view["delta"] = *mark.Delta
		}
		if mark.Position == nil {
			view["position"] = nil
		} else {
			view["position"] = *mark.Position
		}
		result = append(result, view)
	}
	return result
}

func supportView(item store.SupportRequest) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"registeredAt": item.RegisteredAt,
		"institution":  item.Institution,
		"unit":         item.Unit,
		"contact":      item.Contact,
		"email":        item.Email,
		"phone":        item.Phone,
		"kind":         item.Kind,
		"description":  item.Description,
		"owner":        item.Owner,
		"status":       item.Status,
		"priority":     item.Priority,
		"dueDate":      item.DueDate,
		"closedDate":   item.ClosedDate,
		"notes":        item.Notes,
		"createdAt":    item.CreatedAt,
		"updatedAt":    item.UpdatedAt,
	}
}

package opname

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/model"

	"go.uber.org/zap"
)

// State of the reconciliation workflow
type State int

const (
	// StateScanning accepts scans and manual searches
	StateScanning State = iota
	// StateItemSelected has the count editor open for one item
	StateItemSelected
	// StateBrowsing lists multiple name matches for disambiguation
	StateBrowsing
)

// ScanOutcome classifies what a scan produced
type ScanOutcome int

const (
	// ScanIgnored means the scan arrived while the editor or browser
	// was open, or the code was empty
	ScanIgnored ScanOutcome = iota
	// ScanDebounced means the code repeated within the debounce window
	// or landed inside the post-save cooldown
	ScanDebounced
	// ScanSelected means exactly one item matched and the editor is open
	ScanSelected
	// ScanAmbiguous means several items matched by name; candidates
	// are listed for selection
	ScanAmbiguous
	// ScanNotFound means nothing matched
	ScanNotFound
	// ScanAlreadyRecorded means the matched item already has a record
	// on this rack; Existing carries it so the caller can offer an edit
	ScanAlreadyRecorded
)

// ScanResult describes the effect of one scan or search
type ScanResult struct {
	Outcome    ScanOutcome
	Item       *model.InventoryItem
	Candidates []model.InventoryItem
	Existing   *model.StockOpname
}

// Catalog supplies the item snapshot the workflow searches over
type Catalog interface {
	Items(ctx context.Context) ([]model.InventoryItem, error)
}

// Records persists audit records
type Records interface {
	ListRecords(ctx context.Context) ([]model.StockOpname, error)
	CreateRecord(ctx context.Context, rec model.StockOpname) (model.StockOpname, error)
	UpdateRecord(ctx context.Context, id string, physicalQty, difference int) (model.StockOpname, error)
}

// Activities appends workflow milestones to the activity log
type Activities interface {
	AppendActivity(ctx context.Context, typ, user, rack, message string) error
}

// ErrNoActiveSession is returned when scanning without a started session
var ErrNoActiveSession = errors.New("no active opname session")

// ErrNothingSelected is returned when confirming or canceling with no
// item under edit
var ErrNothingSelected = errors.New("no item selected")

// Config holds the workflow timing knobs
type Config struct {
	// DebounceWindow suppresses a repeat of the previously accepted
	// code within this duration
	DebounceWindow time.Duration
	// ScanCooldown suppresses all scans for this duration after a save,
	// so a trailing camera frame cannot re-trigger the same code
	ScanCooldown time.Duration
}

// Workflow is the stock-opname reconciliation state machine. It binds
// scans and searches to catalog lookups, collects physical counts and
// persists audit records. All state is explicit and owned by the
// Workflow value; it is not safe for concurrent use.
type Workflow struct {
	cfg        Config
	catalog    Catalog
	records    Records
	activities Activities
	sessions   *SessionStore
	log        *zap.Logger
	now        func() time.Time

	state   State
	session Session
	items   []model.InventoryItem
	recs    []model.StockOpname

	selected         *model.InventoryItem
	editingRecordID  string
	editingSystemQty int
	candidates       []model.InventoryItem

	lastCode      string
	lastScanAt    time.Time
	cooldownUntil time.Time
}

// NewWorkflow assembles a workflow around its stores. The session
// store may have a persisted session from a previous run; call Resume
// to pick it up.
func NewWorkflow(cfg Config, catalog Catalog, records Records, activities Activities, sessions *SessionStore, log *zap.Logger) *Workflow {
	return &Workflow{
		cfg:        cfg,
		catalog:    catalog,
		records:    records,
		activities: activities,
		sessions:   sessions,
		log:        log,
		now:        time.Now,
	}
}

// SetClock overrides the time source, used by tests
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

// State returns the current workflow state
func (w *Workflow) State() State {
	return w.state
}

// Session returns the current session
func (w *Workflow) Session() Session {
	return w.session
}

// Candidates returns the disambiguation list while browsing
func (w *Workflow) Candidates() []model.InventoryItem {
	return w.candidates
}

// Selected returns the item under edit, or nil
func (w *Workflow) Selected() *model.InventoryItem {
	return w.selected
}

// Reload fetches a fresh item snapshot and record list
func (w *Workflow) Reload(ctx context.Context) error {
	items, err := w.catalog.Items(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	recs, err := w.records.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	w.items = items
	w.recs = recs
	return nil
}

// StartSession validates and activates a session, persisting it for
// resumption
func (w *Workflow) StartSession(s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.Active = true
	if err := w.sessions.Save(s); err != nil {
		return err
	}
	w.session = s
	w.log.Info("Opname session started",
		zap.String("rack", s.RackNo),
		zap.String("user", s.UserName),
		zap.String("division", s.Division))
	return nil
}

// Resume loads a previously persisted session, if any. An active
// session missing any identifying field is discarded rather than
// resumed, so a corrupt session file cannot produce unlabeled records.
func (w *Workflow) Resume() error {
	s, err := w.sessions.Load()
	if err != nil {
		return err
	}
	if s.Active {
		if err := s.Validate(); err != nil {
			w.log.Warn("Discarding invalid persisted session", zap.Error(err))
			if err := w.sessions.Clear(); err != nil {
				return err
			}
			s = Session{}
		}
	}
	w.session = s
	return nil
}

// CloseSession tears the session down, emits the closure activity and
// clears the persisted state
func (w *Workflow) CloseSession(ctx context.Context) error {
	if !w.session.Active {
		return ErrNoActiveSession
	}
	msg := fmt.Sprintf("Session closed for rack %s by %s", w.session.RackNo, w.session.UserName)
	if err := w.activities.AppendActivity(ctx, model.ActivityTypeSessionClosed, w.session.UserName, w.session.RackNo, msg); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	if err := w.sessions.Clear(); err != nil {
		return err
	}
	w.log.Info("Opname session closed",
		zap.String("rack", w.session.RackNo),
		zap.String("user", w.session.UserName))
	w.session = Session{}
	w.state = StateScanning
	w.selected = nil
	w.editingRecordID = ""
	return nil
}

// Scan processes one decoded barcode or manual search string
func (w *Workflow) Scan(code string) (ScanResult, error) {
	if !w.session.Active {
		return ScanResult{}, ErrNoActiveSession
	}
	if w.state != StateScanning {
		return ScanResult{Outcome: ScanIgnored}, nil
	}

	query := strings.ToLower(strings.TrimSpace(code))
	if query == "" {
		return ScanResult{Outcome: ScanIgnored}, nil
	}

	now := w.now()
	if now.Before(w.cooldownUntil) {
		return ScanResult{Outcome: ScanDebounced}, nil
	}

	normalized := Normalize(query)
	if normalized == Normalize(w.lastCode) && w.lastCode != "" && now.Sub(w.lastScanAt) < w.cfg.DebounceWindow {
		return ScanResult{Outcome: ScanDebounced}, nil
	}
	w.lastCode = normalized
	w.lastScanAt = now

	// Pass one: code match on barcode or kd_brg
	found := w.findByCode(query)

	// Pass two: partial match on name
	if found == nil {
		matches := w.findByName(query)
		switch len(matches) {
		case 0:
			w.log.Info("Scan not found", zap.String("code", code))
			return ScanResult{Outcome: ScanNotFound}, nil
		case 1:
			found = &matches[0]
		default:
			w.state = StateBrowsing
			w.candidates = matches
			return ScanResult{Outcome: ScanAmbiguous, Candidates: matches}, nil
		}
	}

	return w.selectItem(*found), nil
}

// Select picks an item from the browsing candidates or a manual search
func (w *Workflow) Select(item model.InventoryItem) ScanResult {
	return w.selectItem(item)
}

// Search returns up to limit catalog items matching the query by name,
// code or barcode, for the manual browsing mode
func (w *Workflow) Search(query string, limit int) []model.InventoryItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < 2 {
		return nil
	}
	var out []model.InventoryItem
	for _, item := range w.items {
		kd := strValue(item.KdBrg)
		bc := strValue(item.Barcode)
		if strings.Contains(strings.ToLower(item.NmBrg), q) ||
			strings.Contains(strings.ToLower(kd), q) ||
			strings.Contains(strings.ToLower(bc), q) ||
			CodesMatch(kd, q) || CodesMatch(bc, q) {
			out = append(out, item)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// EditRecord reopens the editor for an existing record, pre-populated
// with its captured snapshot. The record's original system quantity is
// retained so a re-count recomputes the difference against it rather
// than the live catalog.
func (w *Workflow) EditRecord(rec model.StockOpname) {
	item := model.InventoryItem{
		ID:      rec.InventoryID,
		KdBrg:   rec.KdBrg,
		Barcode: rec.Barcode,
		NmBrg:   rec.NmBrg,
		Qty:     rec.SystemQty,
		Satuan:  rec.Satuan,
		HrgBeli: rec.HrgBeli,
	}
	w.selected = &item
	w.editingRecordID = rec.ID
	w.editingSystemQty = rec.SystemQty
	w.state = StateItemSelected
	w.candidates = nil
}

// Confirm persists the count for the selected item and returns to
// scanning after arming the cooldown
func (w *Workflow) Confirm(ctx context.Context, physicalQty int) (model.StockOpname, error) {
	if w.state != StateItemSelected || w.selected == nil {
		return model.StockOpname{}, ErrNothingSelected
	}

	var saved model.StockOpname
	var err error
	if w.editingRecordID != "" {
		saved, err = w.records.UpdateRecord(ctx, w.editingRecordID, physicalQty, physicalQty-w.editingSystemQty)
	} else {
		saved, err = w.records.CreateRecord(ctx, model.StockOpname{
			InventoryID: w.selected.ID,
			KdBrg:       w.selected.KdBrg,
			Barcode:     w.selected.Barcode,
			NmBrg:       w.selected.NmBrg,
			SystemQty:   w.selected.Qty,
			PhysicalQty: physicalQty,
			Difference:  physicalQty - w.selected.Qty,
			Satuan:      w.selected.Satuan,
			HrgBeli:     w.selected.HrgBeli,
			RackNo:      w.session.RackNo,
			UserName:    w.session.UserName,
			Division:    &w.session.Division,
		})
	}
	if err != nil {
		return model.StockOpname{}, fmt.Errorf("save record: %w", err)
	}

	// Arm debounce against the just-saved code and the cooldown so the
	// next camera frame cannot re-open the editor immediately
	lastCode := strValue(w.selected.Barcode)
	if lastCode == "" {
		lastCode = strValue(w.selected.KdBrg)
	}
	now := w.now()
	w.lastCode = Normalize(lastCode)
	w.lastScanAt = now
	w.cooldownUntil = now.Add(w.cfg.ScanCooldown)

	w.updateRecordCache(saved)
	w.selected = nil
	w.editingRecordID = ""
	w.state = StateScanning

	w.log.Info("Opname record saved",
		zap.String("record_id", saved.ID),
		zap.String("item", saved.NmBrg),
		zap.Int("system_qty", saved.SystemQty),
		zap.Int("physical_qty", saved.PhysicalQty),
		zap.Int("difference", saved.Difference))
	return saved, nil
}

// Cancel closes the editor or browser without persisting anything
func (w *Workflow) Cancel() {
	w.selected = nil
	w.editingRecordID = ""
	w.candidates = nil
	w.state = StateScanning
}

func (w *Workflow) selectItem(item model.InventoryItem) ScanResult {
	// A record for the same item on this rack means the operator
	// already counted it; offer a re-count instead of a duplicate
	if existing := w.existingRecord(item); existing != nil {
		w.state = StateScanning
		w.candidates = nil
		return ScanResult{Outcome: ScanAlreadyRecorded, Item: &item, Existing: existing}
	}

	w.selected = &item
	w.editingRecordID = ""
	w.state = StateItemSelected
	w.candidates = nil
	return ScanResult{Outcome: ScanSelected, Item: &item}
}

func (w *Workflow) existingRecord(item model.InventoryItem) *model.StockOpname {
	for i := range w.recs {
		r := &w.recs[i]
		if r.RackNo != w.session.RackNo {
			continue
		}
		if item.KdBrg != nil && r.KdBrg != nil && *item.KdBrg == *r.KdBrg {
			return r
		}
		if item.Barcode != nil && r.Barcode != nil && *item.Barcode != "" && *item.Barcode == *r.Barcode {
			return r
		}
	}
	return nil
}

func (w *Workflow) findByCode(query string) *model.InventoryItem {
	for i := range w.items {
		item := &w.items[i]
		if CodesMatch(strValue(item.Barcode), query) || CodesMatch(strValue(item.KdBrg), query) {
			return item
		}
	}
	return nil
}

func (w *Workflow) findByName(query string) []model.InventoryItem {
	var matches []model.InventoryItem
	for _, item := range w.items {
		if strings.Contains(strings.ToLower(item.NmBrg), query) {
			matches = append(matches, item)
		}
	}
	return matches
}

func (w *Workflow) updateRecordCache(saved model.StockOpname) {
	for i := range w.recs {
		if w.recs[i].ID == saved.ID {
			w.recs[i] = saved
			return
		}
	}
	w.recs = append([]model.StockOpname{saved}, w.recs...)
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

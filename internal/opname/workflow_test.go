package opname

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"inventory-service/internal/model"

	"go.uber.org/zap"
)

type fakeCatalog struct {
	items []model.InventoryItem
}

func (f *fakeCatalog) Items(ctx context.Context) ([]model.InventoryItem, error) {
	return f.items, nil
}

type fakeRecords struct {
	records []model.StockOpname
	nextID  int
}

func (f *fakeRecords) ListRecords(ctx context.Context) ([]model.StockOpname, error) {
	return f.records, nil
}

func (f *fakeRecords) CreateRecord(ctx context.Context, rec model.StockOpname) (model.StockOpname, error) {
	f.nextID++
	rec.ID = fmt.Sprintf("rec-%d", f.nextID)
	f.records = append([]model.StockOpname{rec}, f.records...)
	return rec, nil
}

func (f *fakeRecords) UpdateRecord(ctx context.Context, id string, physicalQty, difference int) (model.StockOpname, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].PhysicalQty = physicalQty
			f.records[i].Difference = difference
			return f.records[i], nil
		}
	}
	return model.StockOpname{}, fmt.Errorf("record %s not found", id)
}

type fakeActivities struct {
	entries []model.Activity
}

func (f *fakeActivities) AppendActivity(ctx context.Context, typ, user, rack, message string) error {
	f.entries = append(f.entries, model.Activity{Type: typ, User: user, Rack: rack, Message: message})
	return nil
}

func strPtr(s string) *string { return &s }

func testItems() []model.InventoryItem {
	return []model.InventoryItem{
		{ID: "i1", KdBrg: strPtr("001"), Barcode: strPtr("899111"), NmBrg: "Kopi Hitam", Qty: 5},
		{ID: "i2", KdBrg: strPtr("002"), Barcode: strPtr("899222"), NmBrg: "Kopi Susu", Qty: 8},
		{ID: "i3", KdBrg: strPtr("003"), Barcode: strPtr("899333"), NmBrg: "Teh Manis", Qty: 3},
	}
}

func newTestWorkflow(t *testing.T, items []model.InventoryItem) (*Workflow, *fakeRecords, *fakeActivities, *time.Time) {
	t.Helper()
	records := &fakeRecords{}
	activities := &fakeActivities{}
	sessions := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	wf := NewWorkflow(Config{
		DebounceWindow: 3 * time.Second,
		ScanCooldown:   800 * time.Millisecond,
	}, &fakeCatalog{items: items}, records, activities, sessions, zap.NewNop())

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	wf.SetClock(func() time.Time { return now })

	if err := wf.StartSession(Session{RackNo: "R1", UserName: "andi", Division: "gudang"}); err != nil {
		t.Fatalf("StartSession error: %v", err)
	}
	if err := wf.Reload(context.Background()); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	return wf, records, activities, &now
}

func TestScanRequiresActiveSession(t *testing.T) {
	sessions := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	wf := NewWorkflow(Config{}, &fakeCatalog{}, &fakeRecords{}, &fakeActivities{}, sessions, zap.NewNop())
	if _, err := wf.Scan("899111"); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestScanSelectsByBarcode(t *testing.T) {
	wf, _, _, _ := newTestWorkflow(t, testItems())

	res, err := wf.Scan("899111")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Outcome != ScanSelected {
		t.Fatalf("expected ScanSelected, got %v", res.Outcome)
	}
	if res.Item.NmBrg != "Kopi Hitam" {
		t.Fatalf("expected Kopi Hitam, got %s", res.Item.NmBrg)
	}
	if wf.State() != StateItemSelected {
		t.Fatalf("expected StateItemSelected, got %v", wf.State())
	}
}

func TestScanMatchesCodeWithLeadingZeros(t *testing.T) {
	wf, _, _, _ := newTestWorkflow(t, testItems())

	res, err := wf.Scan("1")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Outcome != ScanSelected || res.Item.ID != "i1" {
		t.Fatalf("expected i1 selected for query 1 against stored 001, got %+v", res)
	}
}

func TestScanDebouncesRepeatedCode(t *testing.T) {
	wf, _, _, now := newTestWorkflow(t, testItems())

	if res, _ := wf.Scan("899111"); res.Outcome != ScanSelected {
		t.Fatalf("first scan expected ScanSelected, got %v", res.Outcome)
	}
	wf.Cancel()

	*now = now.Add(1 * time.Second)
	if res, _ := wf.Scan("899111"); res.Outcome != ScanDebounced {
		t.Fatalf("repeat within window expected ScanDebounced, got %v", res.Outcome)
	}

	*now = now.Add(5 * time.Second)
	if res, _ := wf.Scan("899111"); res.Outcome != ScanSelected {
		t.Fatalf("repeat after window expected ScanSelected, got %v", res.Outcome)
	}
}

func TestScanIgnoredWhileEditorOpen(t *testing.T) {
	wf, _, _, _ := newTestWorkflow(t, testItems())

	if res, _ := wf.Scan("899111"); res.Outcome != ScanSelected {
		t.Fatal("setup scan failed")
	}
	if res, _ := wf.Scan("899222"); res.Outcome != ScanIgnored {
		t.Fatalf("scan with editor open expected ScanIgnored, got %v", res.Outcome)
	}
}

func TestScanAmbiguousByName(t *testing.T) {
	wf, _, _, _ := newTestWorkflow(t, testItems())

	res, err := wf.Scan("kopi")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Outcome != ScanAmbiguous {
		t.Fatalf("expected ScanAmbiguous, got %v", res.Outcome)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
	if wf.State() != StateBrowsing {
		t.Fatalf("expected StateBrowsing, got %v", wf.State())
	}

	sel := wf.Select(res.Candidates[1])
	if sel.Outcome != ScanSelected || sel.Item.ID != "i2" {
		t.Fatalf("expected i2 selected, got %+v", sel)
	}
}

func TestScanNotFound(t *testing.T) {
	wf, _, _, _ := newTestWorkflow(t, testItems())

	res, err := wf.Scan("nonexistent")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Outcome != ScanNotFound {
		t.Fatalf("expected ScanNotFound, got %v", res.Outcome)
	}
	if wf.State() != StateScanning {
		t.Fatalf("expected StateScanning, got %v", wf.State())
	}
}

func TestConfirmComputesDifference(t *testing.T) {
	wf, records, _, _ := newTestWorkflow(t, testItems())

	if res, _ := wf.Scan("899111"); res.Outcome != ScanSelected {
		t.Fatal("setup scan failed")
	}
	saved, err := wf.Confirm(context.Background(), 2)
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if saved.SystemQty != 5 || saved.PhysicalQty != 2 || saved.Difference != -3 {
		t.Fatalf("expected system 5 physical 2 difference -3, got %+v", saved)
	}
	if saved.RackNo != "R1" || saved.UserName != "andi" {
		t.Fatalf("record did not carry session identity: %+v", saved)
	}
	if len(records.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(records.records))
	}
	if wf.State() != StateScanning {
		t.Fatalf("expected StateScanning after confirm, got %v", wf.State())
	}
}

func TestConfirmArmsCooldown(t *testing.T) {
	wf, _, _, now := newTestWorkflow(t, testItems())

	wf.Scan("899111")
	if _, err := wf.Confirm(context.Background(), 5); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	// Any code inside the cooldown is suppressed, not just the saved one
	*now = now.Add(500 * time.Millisecond)
	if res, _ := wf.Scan("899222"); res.Outcome != ScanDebounced {
		t.Fatalf("scan inside cooldown expected ScanDebounced, got %v", res.Outcome)
	}

	*now = now.Add(1 * time.Second)
	if res, _ := wf.Scan("899222"); res.Outcome != ScanSelected {
		t.Fatalf("scan after cooldown expected ScanSelected, got %v", res.Outcome)
	}
}

func TestRescanOfCountedItemOffersEdit(t *testing.T) {
	wf, _, _, now := newTestWorkflow(t, testItems())

	wf.Scan("899111")
	if _, err := wf.Confirm(context.Background(), 2); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	*now = now.Add(10 * time.Second)
	res, err := wf.Scan("899111")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Outcome != ScanAlreadyRecorded {
		t.Fatalf("expected ScanAlreadyRecorded, got %v", res.Outcome)
	}
	if res.Existing == nil || res.Existing.PhysicalQty != 2 {
		t.Fatalf("expected existing record with physical 2, got %+v", res.Existing)
	}
}

func TestRescanExistingRecordCanBeCorrected(t *testing.T) {
	wf, records, _, now := newTestWorkflow(t, testItems())

	wf.Scan("899111")
	if _, err := wf.Confirm(context.Background(), 2); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	// The rescan hands back the existing record; reopening it must
	// re-enter the editor pre-populated so the next count updates in
	// place instead of duplicating
	*now = now.Add(10 * time.Second)
	res, err := wf.Scan("899111")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Outcome != ScanAlreadyRecorded {
		t.Fatalf("expected ScanAlreadyRecorded, got %v", res.Outcome)
	}

	wf.EditRecord(*res.Existing)
	if wf.State() != StateItemSelected {
		t.Fatalf("expected StateItemSelected after EditRecord, got %v", wf.State())
	}
	if sel := wf.Selected(); sel == nil || sel.NmBrg != "Kopi Hitam" || sel.Qty != 5 {
		t.Fatalf("editor should be pre-populated with the record snapshot, got %+v", sel)
	}

	corrected, err := wf.Confirm(context.Background(), 4)
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if corrected.PhysicalQty != 4 || corrected.Difference != -1 {
		t.Fatalf("expected physical 4 difference -1, got %+v", corrected)
	}
	if len(records.records) != 1 {
		t.Fatalf("correction must update in place, got %d records", len(records.records))
	}
}

func TestResumeDropsInvalidPersistedSession(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save(Session{Active: true, UserName: "andi"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	wf := NewWorkflow(Config{}, &fakeCatalog{}, &fakeRecords{}, &fakeActivities{}, store, zap.NewNop())
	if err := wf.Resume(); err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if wf.Session().Active {
		t.Fatal("session without a rack must not resume as active")
	}
	if _, err := wf.Scan("899111"); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession after discarded resume, got %v", err)
	}

	// The bad file is gone too, not just ignored this run
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Active {
		t.Fatal("discarded session must be cleared from disk")
	}
}

func TestEditRecordRecomputesAgainstCapturedQty(t *testing.T) {
	wf, records, _, now := newTestWorkflow(t, testItems())

	wf.Scan("899111")
	saved, err := wf.Confirm(context.Background(), 2)
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if saved.Difference != -3 {
		t.Fatalf("expected difference -3, got %d", saved.Difference)
	}

	// Re-count to the captured system quantity: the difference goes to
	// zero even if the live catalog qty has drifted meanwhile
	*now = now.Add(time.Minute)
	wf.EditRecord(saved)
	corrected, err := wf.Confirm(context.Background(), 5)
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if corrected.PhysicalQty != 5 || corrected.Difference != 0 {
		t.Fatalf("expected physical 5 difference 0, got %+v", corrected)
	}
	if len(records.records) != 1 {
		t.Fatalf("edit must update in place, got %d records", len(records.records))
	}
}

func TestCloseSessionEmitsActivity(t *testing.T) {
	wf, _, activities, _ := newTestWorkflow(t, testItems())

	if err := wf.CloseSession(context.Background()); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}
	if len(activities.entries) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities.entries))
	}
	entry := activities.entries[0]
	if entry.Type != model.ActivityTypeSessionClosed || entry.Rack != "R1" || entry.User != "andi" {
		t.Fatalf("unexpected closure activity: %+v", entry)
	}
	if wf.Session().Active {
		t.Fatal("session should be inactive after close")
	}
	if err := wf.CloseSession(context.Background()); err != ErrNoActiveSession {
		t.Fatalf("second close expected ErrNoActiveSession, got %v", err)
	}
}

func TestSearchMatchesNameAndCode(t *testing.T) {
	wf, _, _, _ := newTestWorkflow(t, testItems())

	if got := wf.Search("teh", 10); len(got) != 1 || got[0].ID != "i3" {
		t.Fatalf("search teh expected i3, got %+v", got)
	}
	if got := wf.Search("899", 2); len(got) != 2 {
		t.Fatalf("search 899 with limit 2 expected 2 results, got %d", len(got))
	}
	if got := wf.Search("x", 10); got != nil {
		t.Fatalf("single-character query should return nothing, got %+v", got)
	}
}

package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inventory-service/internal/model"

	"go.uber.org/zap"
)

type fakeSource struct {
	records    []model.StockOpname
	activities []model.Activity
}

func (f *fakeSource) LatestRecords(ctx context.Context) ([]model.StockOpname, error) {
	return f.records, nil
}

func (f *fakeSource) LatestActivities(ctx context.Context) ([]model.Activity, error) {
	return f.activities, nil
}

func (f *fakeSource) pushActivity(typ, message string) {
	a := model.Activity{
		ID:      fmt.Sprintf("act-%d", len(f.activities)+1),
		Type:    typ,
		Message: message,
	}
	f.activities = append([]model.Activity{a}, f.activities...)
}

func (f *fakeSource) pushRecord() {
	r := model.StockOpname{ID: fmt.Sprintf("rec-%d", len(f.records)+1)}
	f.records = append([]model.StockOpname{r}, f.records...)
}

func newTestPoller(src *fakeSource) (*Poller, *int, *[]Notification) {
	refreshes := 0
	var notified []Notification
	p := New(Config{
		Interval:     time.Second,
		MaxVisible:   3,
		ActivityType: model.ActivityTypeSessionClosed,
	}, src, zap.NewNop(), func() {
		refreshes++
	}, func(n Notification) {
		notified = append(notified, n)
	})
	return p, &refreshes, &notified
}

func TestFirstPollOnlyBaselines(t *testing.T) {
	src := &fakeSource{}
	src.pushActivity(model.ActivityTypeSessionClosed, "old closure")
	src.pushRecord()
	p, refreshes, notified := newTestPoller(src)

	p.Poll(context.Background())

	if *refreshes != 0 || len(*notified) != 0 {
		t.Fatalf("pre-existing data must not notify: refreshes=%d notified=%d", *refreshes, len(*notified))
	}
}

func TestNewClosureActivityNotifies(t *testing.T) {
	src := &fakeSource{}
	p, refreshes, notified := newTestPoller(src)

	src.pushActivity("IMPORT", "seed")
	p.Poll(context.Background()) // baseline

	src.pushActivity(model.ActivityTypeSessionClosed, "Session closed for rack R1 by andi")
	p.Poll(context.Background())

	if len(*notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(*notified))
	}
	if (*notified)[0].Message != "Session closed for rack R1 by andi" {
		t.Fatalf("unexpected notification: %+v", (*notified)[0])
	}
	if *refreshes != 1 {
		t.Fatalf("expected 1 refresh, got %d", *refreshes)
	}
}

func TestNonClosureActivityStaysQuiet(t *testing.T) {
	src := &fakeSource{}
	p, _, notified := newTestPoller(src)

	src.pushActivity("IMPORT", "seed")
	p.Poll(context.Background()) // baseline

	src.pushActivity("IMPORT", "catalog replaced")
	p.Poll(context.Background())

	if len(*notified) != 0 {
		t.Fatalf("non-closure activity must not notify, got %d", len(*notified))
	}

	// The high-water mark still advanced: a repeat poll stays quiet too
	p.Poll(context.Background())
	if len(*notified) != 0 {
		t.Fatalf("repeat poll must not notify, got %d", len(*notified))
	}
}

func TestNewRecordTriggersRefresh(t *testing.T) {
	src := &fakeSource{}
	p, refreshes, notified := newTestPoller(src)

	src.pushRecord()
	p.Poll(context.Background()) // baseline

	src.pushRecord()
	p.Poll(context.Background())

	if *refreshes != 1 {
		t.Fatalf("expected 1 refresh for new record, got %d", *refreshes)
	}
	if len(*notified) != 0 {
		t.Fatalf("records never raise notifications, got %d", len(*notified))
	}
}

func TestVisibleCappedAndDismissable(t *testing.T) {
	src := &fakeSource{}
	p, _, _ := newTestPoller(src)

	src.pushActivity("IMPORT", "seed")
	p.Poll(context.Background()) // baseline

	for i := 0; i < 5; i++ {
		src.pushActivity(model.ActivityTypeSessionClosed, fmt.Sprintf("closure %d", i+1))
		p.Poll(context.Background())
	}

	visible := p.Visible()
	if len(visible) != 3 {
		t.Fatalf("expected visible set capped at 3, got %d", len(visible))
	}
	if visible[0].Message != "closure 5" {
		t.Fatalf("newest notification should lead, got %s", visible[0].Message)
	}

	p.Dismiss(visible[0].ID)
	if got := p.Visible(); len(got) != 2 || got[0].Message != "closure 4" {
		t.Fatalf("dismiss did not drop the head: %+v", got)
	}
}

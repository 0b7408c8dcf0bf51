// Package notify raises best-effort freshness notifications by
// polling the audit and activity stores. Nothing is persisted or
// acknowledged; a dropped poll is simply retried on the next tick.
package notify

import (
	"context"
	"time"

	"inventory-service/internal/model"

	"go.uber.org/zap"
)

// Notification is one transient toast raised from a new activity
type Notification struct {
	ID      string
	Message string
	User    string
	Rack    string
	Type    string
}

// Source supplies the newest-first record and activity lists
type Source interface {
	LatestRecords(ctx context.Context) ([]model.StockOpname, error)
	LatestActivities(ctx context.Context) ([]model.Activity, error)
}

// Config holds the polling knobs. ActivityType selects which activity
// entries raise a notification; everything else only updates the
// high-water mark.
type Config struct {
	Interval     time.Duration
	MaxVisible   int
	ActivityType string
}

// Poller tracks a high-water mark per store and fires callbacks when
// the head moves. The first successful fetch of each store only
// establishes the baseline; pre-existing data never notifies.
type Poller struct {
	cfg       Config
	src       Source
	log       *zap.Logger
	onRefresh func()
	onNotify  func(Notification)

	lastRecordID      string
	lastActivityID    string
	recordBaselined   bool
	activityBaselined bool
	visible           []Notification
}

// New assembles a poller. onRefresh fires when the audit list changed;
// onNotify fires per raised notification. Either may be nil.
func New(cfg Config, src Source, log *zap.Logger, onRefresh func(), onNotify func(Notification)) *Poller {
	if cfg.MaxVisible <= 0 {
		cfg.MaxVisible = 3
	}
	if cfg.ActivityType == "" {
		cfg.ActivityType = model.ActivityTypeSessionClosed
	}
	return &Poller{
		cfg:       cfg,
		src:       src,
		log:       log,
		onRefresh: onRefresh,
		onNotify:  onNotify,
	}
}

// Run polls until ctx is canceled
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one polling round. Exposed so tests and callers can
// drive the loop manually.
func (p *Poller) Poll(ctx context.Context) {
	p.pollRecords(ctx)
	p.pollActivities(ctx)
}

// Visible returns the currently displayed notifications, newest first
func (p *Poller) Visible() []Notification {
	return p.visible
}

// Dismiss drops a notification from the visible set
func (p *Poller) Dismiss(id string) {
	out := p.visible[:0]
	for _, n := range p.visible {
		if n.ID != id {
			out = append(out, n)
		}
	}
	p.visible = out
}

func (p *Poller) pollRecords(ctx context.Context) {
	records, err := p.src.LatestRecords(ctx)
	if err != nil {
		p.log.Debug("Record poll failed", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}

	head := records[0].ID
	if !p.recordBaselined {
		p.lastRecordID = head
		p.recordBaselined = true
		return
	}
	if head != p.lastRecordID {
		p.lastRecordID = head
		p.refresh()
	}
}

func (p *Poller) pollActivities(ctx context.Context) {
	activities, err := p.src.LatestActivities(ctx)
	if err != nil {
		p.log.Debug("Activity poll failed", zap.Error(err))
		return
	}
	if len(activities) == 0 {
		return
	}

	head := activities[0].ID
	if !p.activityBaselined {
		p.lastActivityID = head
		p.activityBaselined = true
		return
	}
	if head == p.lastActivityID {
		return
	}

	// Entries ahead of the last-known id are new
	fresh := activities
	for i, a := range activities {
		if a.ID == p.lastActivityID {
			fresh = activities[:i]
			break
		}
	}
	p.lastActivityID = head

	if len(fresh) == 0 {
		return
	}
	latest := fresh[0]
	if latest.Type != p.cfg.ActivityType {
		return
	}

	n := Notification{
		ID:      latest.ID,
		Message: latest.Message,
		User:    latest.User,
		Rack:    latest.Rack,
		Type:    latest.Type,
	}
	p.visible = append([]Notification{n}, p.visible...)
	if len(p.visible) > p.cfg.MaxVisible {
		p.visible = p.visible[:p.cfg.MaxVisible]
	}
	if p.onNotify != nil {
		p.onNotify(n)
	}
	p.refresh()
}

func (p *Poller) refresh() {
	if p.onRefresh != nil {
		p.onRefresh()
	}
}

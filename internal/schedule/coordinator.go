package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/database"
	"github.com/ArturZurawski/ecoharmonogram/internal/ecoharmonogram"
	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// State is the coordinator's refresh lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// RefreshTimeout bounds one full refresh (all resolution steps plus the
// schedule fetch).
const RefreshTimeout = 5 * time.Minute

// Fetcher is the slice of the remote client the coordinator drives.
type Fetcher interface {
	SchedulePeriods(ctx context.Context, communityID string) ([]ecoharmonogram.SchedulePeriod, error)
	StreetsForTown(ctx context.Context, townID, periodID string) ([]ecoharmonogram.Street, error)
	BuildingGroups(ctx context.Context, choosedStreetIDs, number, townID, streetName, periodID string) ([]ecoharmonogram.BuildingGroup, error)
	Schedules(ctx context.Context, number, streetID, townID, streetName, periodID string) ([]model.RawScheduleRecord, error)
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State               State     `json:"state"`
	RetrievedAt         time.Time `json:"retrieved_at"`
	ScheduleLastChanged string    `json:"schedule_last_changed,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// Coordinator owns the refresh lifecycle: it runs the remote resolution
// sequence, aggregates the payload, and publishes the result as the
// current snapshot. At most one refresh is in flight; concurrent callers
// join it and observe the same outcome. A failed refresh never touches
// the previously published snapshot.
type Coordinator struct {
	db     database.Store
	client Fetcher

	mu       sync.RWMutex
	snapshot *model.ScheduleSnapshot
	state    State
	lastErr  error
	inflight *refreshCall
}

// NewCoordinator builds a coordinator and warm-starts it from the last
// snapshot persisted in the store, if any.
func NewCoordinator(db database.Store, client Fetcher) *Coordinator {
	c := &Coordinator{db: db, client: client, state: StateIdle}
	snap, err := db.Snapshot()
	if err != nil {
		log.Printf("Warning: could not load persisted snapshot: %v", err)
	} else if snap != nil {
		c.snapshot = snap
		log.Printf("Loaded persisted snapshot: %d waste types, retrieved %s",
			len(snap.Types), snap.RetrievedAt.Format(time.RFC3339))
	}
	return c
}

// Current returns the last good snapshot, or nil before the first
// success. The snapshot is immutable; readers need no locking beyond
// this call.
func (c *Coordinator) Current() *model.ScheduleSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Status reports the coordinator state and last outcome.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{State: c.state}
	if c.snapshot != nil {
		st.RetrievedAt = c.snapshot.RetrievedAt
		st.ScheduleLastChanged = c.snapshot.ScheduleLastChanged
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Refresh runs one refresh attempt. If a refresh is already in flight the
// call joins it instead of starting a second network sequence, and all
// joined callers receive that attempt's result.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.state = StateFetching
	c.mu.Unlock()

	snap, err := c.fetch(ctx)

	c.mu.Lock()
	c.inflight = nil
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
	} else {
		// Atomic publish: the new snapshot wholly replaces the old one.
		c.snapshot = snap
		c.state = StateSucceeded
		c.lastErr = nil
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("Refresh failed: %v", err)
		if derr := c.db.SetSetting(model.SettingLastRefreshError, err.Error()); derr != nil {
			log.Printf("Warning: could not record refresh error: %v", derr)
		}
	} else {
		log.Printf("Refresh succeeded: %d waste types", len(snap.Types))
		if derr := c.db.SetSetting(model.SettingLastRefreshError, ""); derr != nil {
			log.Printf("Warning: could not clear refresh error: %v", derr)
		}
		if derr := c.db.SaveSnapshot(snap); derr != nil {
			log.Printf("Warning: could not persist snapshot: %v", derr)
		}
	}

	call.err = err
	close(call.done)
	return err
}

// fetch performs the remote sequence and aggregation without publishing
// anything; publish happens only after full success.
func (c *Coordinator) fetch(ctx context.Context) (*model.ScheduleSnapshot, error) {
	loc, err := c.db.Location()
	if err != nil {
		return nil, fmt.Errorf("loading location: %w", err)
	}
	if loc == nil {
		return nil, errors.New("no location configured")
	}

	periods, err := c.client.SchedulePeriods(ctx, loc.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("fetching schedule periods: %w", err)
	}
	period := ActivePeriod(periods, time.Now())
	if period == nil {
		return nil, errors.New("no active schedule period found")
	}

	if period.ID != loc.PeriodID {
		log.Printf("Schedule period changed from %s to %s (%s - %s)",
			loc.PeriodID, period.ID, period.StartDate, period.EndDate)
		c.resolveForPeriod(ctx, loc, period)
	}

	records, err := c.client.Schedules(ctx, loc.Number, loc.StreetID, loc.TownID, loc.StreetName, period.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching schedules: %w", err)
	}

	snap := BuildSnapshot(records, nil, time.Now(), period.ChangeDate)
	if len(snap.Types) == 0 {
		// A period can be published before data exists for it; keep the
		// previous snapshot rather than replacing it with nothing.
		return nil, fmt.Errorf("%w: schedule payload contained no waste types", ecoharmonogram.ErrRemoteMalformed)
	}
	return snap, nil
}

// resolveForPeriod re-resolves the street and building group ids for a
// new schedule period, since they change between periods. Resolution is
// best-effort: on any failure the old ids are kept and the fetch proceeds
// with them against the new period.
func (c *Coordinator) resolveForPeriod(ctx context.Context, loc *model.Location, period *ecoharmonogram.SchedulePeriod) {
	streets, err := c.client.StreetsForTown(ctx, loc.TownID, period.ID)
	if err != nil {
		log.Printf("Warning: street re-resolution failed, keeping street id %s: %v", loc.StreetID, err)
		return
	}
	var street *ecoharmonogram.Street
	for i := range streets {
		if streets[i].Name == loc.StreetName {
			street = &streets[i]
			break
		}
	}
	if street == nil {
		log.Printf("Warning: street %q not found in new period, keeping street id %s", loc.StreetName, loc.StreetID)
		return
	}

	groups, err := c.client.BuildingGroups(ctx, street.ChoosedStreetIDs, loc.Number, loc.TownID, loc.StreetName, period.ID)
	if err != nil {
		log.Printf("Warning: building group re-resolution failed, keeping street id %s: %v", loc.StreetID, err)
		return
	}

	loc.StreetChoosedIDs = street.ChoosedStreetIDs
	switch {
	case len(groups) == 0:
		// Single building type on this street.
		loc.StreetID = street.ChoosedStreetIDs
	default:
		group := groups[0]
		for _, g := range groups {
			if g.Name == loc.GroupName {
				group = g
				break
			}
		}
		if group.Name != loc.GroupName {
			log.Printf("Warning: building group %q not found in new period, using %q", loc.GroupName, group.Name)
		}
		loc.StreetID = group.ChoosedStreetIDs
		loc.GroupName = group.Name
	}
	loc.PeriodID = period.ID
	loc.PeriodStart = period.StartDate
	loc.PeriodEnd = period.EndDate
	loc.PeriodChangeDate = period.ChangeDate

	if err := c.db.SaveLocation(loc); err != nil {
		log.Printf("Warning: could not persist re-resolved location: %v", err)
	} else {
		log.Printf("Re-resolved location for period %s: street id %s", period.ID, loc.StreetID)
	}
}

// ActivePeriod picks the schedule period covering now, or failing that
// the one starting soonest after now. Returns nil when neither exists.
func ActivePeriod(periods []ecoharmonogram.SchedulePeriod, now time.Time) *ecoharmonogram.SchedulePeriod {
	today := ToDay(now)
	var next *ecoharmonogram.SchedulePeriod
	var nextStart time.Time
	for i := range periods {
		p := &periods[i]
		start, err1 := parseAPIDate(p.StartDate)
		end, err2 := parseAPIDate(p.EndDate)
		if err1 != nil || err2 != nil {
			log.Printf("Warning: skipping period %s with unparseable dates %q - %q", p.ID, p.StartDate, p.EndDate)
			continue
		}
		if !today.Before(start) && !today.After(end) {
			return p
		}
		if start.After(today) && (next == nil || start.Before(nextStart)) {
			next = p
			nextStart = start
		}
	}
	return next
}

// parseAPIDate accepts the API's date strings, which are ISO dates with
// an optional time part.
func parseAPIDate(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

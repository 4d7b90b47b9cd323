package schedule

import (
	"sort"
	"strconv"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// maxUpcoming is how many upcoming dates are reported per type.
const maxUpcoming = 3

// defaultOrder sorts types without a usable order value last, matching
// the source's own fallback.
const defaultOrder = 999

// ComputeFacts derives per-type and cross-type values from a snapshot
// relative to the given reference date. The caller supplies today already
// localized; only its calendar date is used. Cross-type aggregates (today,
// tomorrow, next collection) consider only types whose id is in
// monitoredIDs. ComputeFacts never fails: missing data yields nil/empty
// fields.
func ComputeFacts(snap *model.ScheduleSnapshot, today time.Time, monitoredIDs []string) model.DerivedFacts {
	day := ToDay(today)
	tomorrow := day.AddDate(0, 0, 1)

	facts := model.DerivedFacts{
		Today: day,
		Types: make(map[string]model.TypeFacts),
	}
	if snap == nil {
		return facts
	}

	monitored := make(map[string]bool, len(monitoredIDs))
	for _, id := range monitoredIDs {
		monitored[id] = true
	}

	type candidate struct {
		ws   *model.WasteTypeSchedule
		next time.Time
	}
	var candidates []candidate

	for name, ws := range snap.Types {
		tf := model.TypeFacts{ID: ws.ID, Name: name}
		for _, d := range ws.Dates {
			if d.Before(day) {
				continue
			}
			if len(tf.UpcomingDates) < maxUpcoming {
				tf.UpcomingDates = append(tf.UpcomingDates, d)
			} else {
				break
			}
		}
		if len(tf.UpcomingDates) > 0 {
			next := tf.UpcomingDates[0]
			until := daysBetween(day, next)
			tf.NextDate = &next
			tf.DaysUntil = &until
			tf.IsToday = next.Equal(day)
			tf.IsTomorrow = next.Equal(tomorrow)
		}
		facts.Types[name] = tf

		if !monitored[ws.ID] {
			continue
		}
		if tf.IsToday {
			facts.TodayTypes = append(facts.TodayTypes, name)
		}
		if hasDate(ws.Dates, tomorrow) {
			facts.TomorrowTypes = append(facts.TomorrowTypes, name)
		}
		if tf.NextDate != nil {
			candidates = append(candidates, candidate{ws: ws, next: *tf.NextDate})
		}
	}

	sort.Strings(facts.TodayTypes)
	sort.Strings(facts.TomorrowTypes)
	facts.AnyToday = len(facts.TodayTypes) > 0
	facts.AnyTomorrow = len(facts.TomorrowTypes) > 0

	if len(candidates) > 0 {
		// Nearest date wins; ties break on the source's display order,
		// then name, so the result is deterministic.
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if !a.next.Equal(b.next) {
				return a.next.Before(b.next)
			}
			ao, bo := orderValue(a.ws.Order), orderValue(b.ws.Order)
			if ao != bo {
				return ao < bo
			}
			return a.ws.Name < b.ws.Name
		})

		nearest := candidates[0].next
		nc := &model.NextCollection{
			Date:       nearest,
			DaysUntil:  daysBetween(day, nearest),
			IsToday:    nearest.Equal(day),
			IsTomorrow: nearest.Equal(tomorrow),
		}
		for _, c := range candidates {
			if c.next.Equal(nearest) {
				nc.Types = append(nc.Types, c.ws.Name)
			}
		}
		facts.NextCollection = nc
	}

	return facts
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

func hasDate(dates []time.Time, want time.Time) bool {
	for _, d := range dates {
		if d.Equal(want) {
			return true
		}
		if d.After(want) {
			break
		}
	}
	return false
}

func orderValue(order string) int {
	if n, err := strconv.Atoi(order); err == nil {
		return n
	}
	return defaultOrder
}

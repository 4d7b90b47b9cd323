package schedule

import (
	"sort"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// BuildSnapshot groups raw per-month records into a snapshot keyed by
// waste type name. Grouping is case-sensitive, exactly as the source
// reports names. Metadata (color, description, type id, order) is taken
// from the first record seen for a type; the source repeats it on every
// month record and it is assumed constant within one fetch.
//
// When selectedTypeIDs is non-empty, types whose id is not in the set are
// dropped entirely. A type whose records yield no parseable dates is kept
// with an empty date list: it is known, it just has no upcoming
// collection.
func BuildSnapshot(records []model.RawScheduleRecord, selectedTypeIDs []string, retrievedAt time.Time, lastChanged string) *model.ScheduleSnapshot {
	selected := make(map[string]bool, len(selectedTypeIDs))
	for _, id := range selectedTypeIDs {
		selected[id] = true
	}

	types := make(map[string]*model.WasteTypeSchedule)
	for _, rec := range records {
		ws, ok := types[rec.Name]
		if !ok {
			ws = &model.WasteTypeSchedule{
				ID:          rec.ID,
				Name:        rec.Name,
				Color:       rec.Color,
				Description: rec.Description,
				TypeID:      rec.TypeID,
				Order:       rec.Order,
			}
			types[rec.Name] = ws
		}
		ws.Dates = append(ws.Dates, ParseDays(rec.Days, rec.Month, rec.Year)...)
	}

	for name, ws := range types {
		if len(selected) > 0 && !selected[ws.ID] {
			delete(types, name)
			continue
		}
		ws.Dates = sortedUnique(ws.Dates)
	}

	return &model.ScheduleSnapshot{
		Types:               types,
		RetrievedAt:         retrievedAt,
		ScheduleLastChanged: lastChanged,
	}
}

func sortedUnique(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := dates[:1]
	for _, d := range dates[1:] {
		if !d.Equal(out[len(out)-1]) {
			out = append(out, d)
		}
	}
	return out
}

package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/ecoharmonogram"
	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// fakeStore is an in-memory database.Store for coordinator tests.
type fakeStore struct {
	mu       sync.Mutex
	loc      *model.Location
	ids      []string
	snap     *model.ScheduleSnapshot
	settings map[string]string
}

func newFakeStore(loc *model.Location) *fakeStore {
	return &fakeStore{loc: loc, settings: make(map[string]string)}
}

func (s *fakeStore) Close() error         { return nil }
func (s *fakeStore) DatabaseType() string { return "fake" }

func (s *fakeStore) Location() (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return nil, nil
	}
	cp := *s.loc
	return &cp, nil
}

func (s *fakeStore) SaveLocation(loc *model.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *loc
	s.loc = &cp
	return nil
}

func (s *fakeStore) MonitoredTypes() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids, nil
}

func (s *fakeStore) SetMonitoredTypes(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = ids
	return nil
}

func (s *fakeStore) Snapshot() (*model.ScheduleSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *fakeStore) SaveSnapshot(snap *model.ScheduleSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

func (s *fakeStore) GetSetting(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[key], nil
}

func (s *fakeStore) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// fakeClient is a scriptable Fetcher.
type fakeClient struct {
	mu         sync.Mutex
	periods    []ecoharmonogram.SchedulePeriod
	streets    []ecoharmonogram.Street
	groups     []ecoharmonogram.BuildingGroup
	records    []model.RawScheduleRecord
	schedErr   error
	schedCalls int
	lastPeriod string

	entered chan struct{} // closed when Schedules is first entered
	block   chan struct{} // if non-nil, Schedules blocks until closed
}

func (f *fakeClient) SchedulePeriods(ctx context.Context, communityID string) ([]ecoharmonogram.SchedulePeriod, error) {
	return f.periods, nil
}

func (f *fakeClient) StreetsForTown(ctx context.Context, townID, periodID string) ([]ecoharmonogram.Street, error) {
	return f.streets, nil
}

func (f *fakeClient) BuildingGroups(ctx context.Context, choosedStreetIDs, number, townID, streetName, periodID string) ([]ecoharmonogram.BuildingGroup, error) {
	return f.groups, nil
}

func (f *fakeClient) Schedules(ctx context.Context, number, streetID, townID, streetName, periodID string) ([]model.RawScheduleRecord, error) {
	f.mu.Lock()
	f.schedCalls++
	f.lastPeriod = periodID
	entered := f.entered
	block := f.block
	f.mu.Unlock()

	if entered != nil {
		select {
		case <-entered:
		default:
			close(entered)
		}
	}
	if block != nil {
		<-block
	}
	if f.schedErr != nil {
		return nil, f.schedErr
	}
	return f.records, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedCalls
}

func testLocation() *model.Location {
	return &model.Location{
		CommunityID: "108",
		TownID:      "210",
		TownName:    "Testowo",
		PeriodID:    "p1",
		StreetName:  "Polna",
		StreetID:    "901",
		Number:      "7",
	}
}

func currentPeriod(id string) ecoharmonogram.SchedulePeriod {
	today := ToDay(time.Now())
	return ecoharmonogram.SchedulePeriod{
		ID:         id,
		StartDate:  today.AddDate(0, 0, -60).Format("2006-01-02"),
		EndDate:    today.AddDate(0, 0, 120).Format("2006-01-02"),
		ChangeDate: "2025-01-01",
	}
}

func testRecords() []model.RawScheduleRecord {
	future := ToDay(time.Now()).AddDate(0, 1, 0)
	return []model.RawScheduleRecord{{
		ID: "11", Name: "BIO", Color: "#ae6f46", Order: "2",
		Month: int(future.Month()), Year: future.Year(), Days: "15",
	}}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	db := newFakeStore(testLocation())
	client := &fakeClient{periods: []ecoharmonogram.SchedulePeriod{currentPeriod("p1")}, records: testRecords()}
	coord := NewCoordinator(db, client)

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap := coord.Current()
	if snap == nil {
		t.Fatal("no snapshot published")
	}
	if _, ok := snap.Types["BIO"]; !ok {
		t.Error("BIO missing from published snapshot")
	}
	if snap.ScheduleLastChanged != "2025-01-01" {
		t.Errorf("schedule_last_changed = %q, want 2025-01-01", snap.ScheduleLastChanged)
	}
	if st := coord.Status(); st.State != StateSucceeded {
		t.Errorf("state = %s, want %s", st.State, StateSucceeded)
	}
	if persisted, _ := db.Snapshot(); persisted == nil {
		t.Error("snapshot was not persisted to the store")
	}
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	db := newFakeStore(testLocation())
	client := &fakeClient{periods: []ecoharmonogram.SchedulePeriod{currentPeriod("p1")}, records: testRecords()}
	coord := NewCoordinator(db, client)

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	before := coord.Current()

	client.schedErr = ecoharmonogram.ErrRemoteRejected
	err := coord.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if !errors.Is(err, ecoharmonogram.ErrRemoteRejected) {
		t.Errorf("error = %v, want ErrRemoteRejected", err)
	}

	if coord.Current() != before {
		t.Error("failed refresh must not replace the previous snapshot")
	}
	st := coord.Status()
	if st.State != StateFailed {
		t.Errorf("state = %s, want %s", st.State, StateFailed)
	}
	if st.LastError == "" {
		t.Error("status should report the failure")
	}
}

func TestEmptyPayloadFailsRefresh(t *testing.T) {
	db := newFakeStore(testLocation())
	client := &fakeClient{periods: []ecoharmonogram.SchedulePeriod{currentPeriod("p1")}}
	coord := NewCoordinator(db, client)

	err := coord.Refresh(context.Background())
	if !errors.Is(err, ecoharmonogram.ErrRemoteMalformed) {
		t.Errorf("error = %v, want ErrRemoteMalformed", err)
	}
	if coord.Current() != nil {
		t.Error("empty payload must not be published")
	}
}

func TestRefreshWithoutLocation(t *testing.T) {
	coord := NewCoordinator(newFakeStore(nil), &fakeClient{})
	if err := coord.Refresh(context.Background()); err == nil {
		t.Fatal("expected error with no configured location")
	}
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	db := newFakeStore(testLocation())
	client := &fakeClient{
		periods: []ecoharmonogram.SchedulePeriod{currentPeriod("p1")},
		records: testRecords(),
		entered: make(chan struct{}),
		block:   make(chan struct{}),
	}
	coord := NewCoordinator(db, client)

	errs := make(chan error, 2)
	go func() { errs <- coord.Refresh(context.Background()) }()
	<-client.entered

	// Second caller arrives while the fetch is blocked; it must join the
	// in-flight attempt, not start a second sequence.
	go func() { errs <- coord.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(client.block)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if n := client.calls(); n != 1 {
		t.Errorf("schedules fetched %d times, want 1", n)
	}
	if coord.Current() == nil {
		t.Error("both callers should observe the published snapshot")
	}
}

func TestPeriodChangeReresolvesStreet(t *testing.T) {
	loc := testLocation()
	loc.PeriodID = "old"
	loc.GroupName = "Zabudowa jednorodzinna"
	db := newFakeStore(loc)

	client := &fakeClient{
		periods: []ecoharmonogram.SchedulePeriod{currentPeriod("new")},
		streets: []ecoharmonogram.Street{
			{Name: "Inna", ChoosedStreetIDs: "555"},
			{Name: "Polna", ChoosedStreetIDs: "777,778"},
		},
		groups: []ecoharmonogram.BuildingGroup{
			{Name: "Zabudowa wielorodzinna", ChoosedStreetIDs: "778"},
			{Name: "Zabudowa jednorodzinna", ChoosedStreetIDs: "777"},
		},
		records: testRecords(),
	}
	coord := NewCoordinator(db, client)

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if client.lastPeriod != "new" {
		t.Errorf("schedules fetched for period %q, want new", client.lastPeriod)
	}
	stored, _ := db.Location()
	if stored.PeriodID != "new" {
		t.Errorf("stored period = %q, want new", stored.PeriodID)
	}
	if stored.StreetID != "777" {
		t.Errorf("stored street id = %q, want the matching group's 777", stored.StreetID)
	}
	if stored.StreetChoosedIDs != "777,778" {
		t.Errorf("stored choosed ids = %q, want 777,778", stored.StreetChoosedIDs)
	}
}

func TestActivePeriod(t *testing.T) {
	mk := func(id, start, end string) ecoharmonogram.SchedulePeriod {
		return ecoharmonogram.SchedulePeriod{ID: id, StartDate: start, EndDate: end}
	}
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		periods []ecoharmonogram.SchedulePeriod
		wantID  string
	}{
		{"covering period wins", []ecoharmonogram.SchedulePeriod{
			mk("a", "2024-01-01", "2024-12-31"),
			mk("b", "2025-01-01", "2025-12-31"),
		}, "b"},
		{"nearest future when none covers", []ecoharmonogram.SchedulePeriod{
			mk("a", "2024-01-01", "2024-12-31"),
			mk("c", "2026-01-01", "2026-12-31"),
			mk("b", "2025-07-01", "2025-12-31"),
		}, "b"},
		{"unparseable dates skipped", []ecoharmonogram.SchedulePeriod{
			mk("x", "soon", "later"),
			mk("b", "2025-01-01", "2025-12-31"),
		}, "b"},
		{"all past", []ecoharmonogram.SchedulePeriod{
			mk("a", "2023-01-01", "2023-12-31"),
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActivePeriod(tt.periods, now)
			switch {
			case tt.wantID == "" && got != nil:
				t.Errorf("got period %s, want none", got.ID)
			case tt.wantID != "" && (got == nil || got.ID != tt.wantID):
				t.Errorf("got %+v, want id %s", got, tt.wantID)
			}
		})
	}
}

// Package ecoharmonogram talks to the ecoharmonogram.pl plugin API.
//
// Resolving a schedule is a sequential protocol: community -> towns and
// schedule periods, then streets for a town, then building groups for a
// street (one street name can hide several location records told apart by
// building number), and finally the schedule payload itself. Each step is
// a plain function of the previous step's chosen identifiers; the client
// performs no retries, that policy belongs to the caller.
package ecoharmonogram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/model"
)

// DefaultBaseURL is the production plugin API endpoint.
const DefaultBaseURL = "https://pluginecoapi.ecoharmonogram.pl/v1"

// DefaultTimeout bounds every remote call. The upstream service mandates
// no timeout, but an unbounded hang would stall the whole refresh.
const DefaultTimeout = 30 * time.Second

// The API expects browser-flavored multipart posts; these match what the
// web plugin sends.
const (
	formBoundary = "----WebKitFormBoundary7MA4YWxkTrZu0gW"
	originHeader = "https://pluginv1.dtsolution.pl"
)

// Error taxonomy for remote calls. Callers match with errors.Is.
var (
	// ErrRemoteUnavailable covers transport failures and timeouts.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrRemoteRejected means the response carried success=false.
	ErrRemoteRejected = errors.New("remote service rejected request")
	// ErrRemoteMalformed means the response decoded but required fields
	// were missing or unusable.
	ErrRemoteMalformed = errors.New("remote response malformed")
)

// Town is one town within a community.
type Town struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CommunityID string `json:"communityId"`
}

// SchedulePeriod is a published date range a schedule exists for,
// typically one calendar year.
type SchedulePeriod struct {
	ID         string `json:"id"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	ChangeDate string `json:"changeDate"`
}

// Street is a candidate street; ChoosedStreetIDs is a comma-joined set of
// underlying location record ids.
type Street struct {
	Name             string `json:"name"`
	ChoosedStreetIDs string `json:"choosedStreetIds"`
}

// BuildingGroup disambiguates a street that maps to several location
// records (e.g. single-family vs apartment buildings).
type BuildingGroup struct {
	Name             string `json:"name"`
	ChoosedStreetIDs string `json:"choosedStreetIds"`
}

// Client is the remote API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given base URL. Empty baseURL selects
// the production endpoint; a non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the common response wrapper of every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Towns lists the towns of a community.
func (c *Client) Towns(ctx context.Context, communityID string) ([]Town, error) {
	raw, err := c.get(ctx, "/townsForCommunity", url.Values{"communityId": {communityID}})
	if err != nil {
		return nil, err
	}
	var data struct {
		Towns []Town `json:"towns"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.Towns == nil {
		return nil, fmt.Errorf("%w: missing towns list", ErrRemoteMalformed)
	}
	return data.Towns, nil
}

// SchedulePeriods lists the schedule periods published for a community.
func (c *Client) SchedulePeriods(ctx context.Context, communityID string) ([]SchedulePeriod, error) {
	raw, err := c.get(ctx, "/schedulePeriodsWithDataForCommunity", url.Values{"communityId": {communityID}})
	if err != nil {
		return nil, err
	}
	var data struct {
		SchedulePeriods []SchedulePeriod `json:"schedulePeriods"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.SchedulePeriods == nil {
		return nil, fmt.Errorf("%w: missing schedulePeriods list", ErrRemoteMalformed)
	}
	return data.SchedulePeriods, nil
}

// StreetsForTown lists candidate streets for a town within a period.
func (c *Client) StreetsForTown(ctx context.Context, townID, periodID string) ([]Street, error) {
	raw, err := c.postForm(ctx, "/streetsForTown", map[string]string{
		"townId":   townID,
		"periodId": periodID,
	})
	if err != nil {
		return nil, err
	}
	var streets []Street
	if err := json.Unmarshal(raw, &streets); err != nil {
		return nil, fmt.Errorf("%w: street list: %v", ErrRemoteMalformed, err)
	}
	return streets, nil
}

// BuildingGroups resolves the building groups behind a chosen street.
func (c *Client) BuildingGroups(ctx context.Context, choosedStreetIDs, number, townID, streetName, periodID string) ([]BuildingGroup, error) {
	raw, err := c.postForm(ctx, "/streets", map[string]string{
		"choosedStreetIds": choosedStreetIDs,
		"number":           number,
		"townId":           townID,
		"streetName":       streetName,
		"schedulePeriodId": periodID,
		"groupId":          "1",
	})
	if err != nil {
		return nil, err
	}
	var data struct {
		Groups struct {
			Items []BuildingGroup `json:"items"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: building groups: %v", ErrRemoteMalformed, err)
	}
	return data.Groups.Items, nil
}

// scheduleEntry is the wire form of one per-type-per-month record; month
// and year arrive as strings.
type scheduleEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
	TypeID      string `json:"typeId"`
	Order       string `json:"order"`
	Month       string `json:"month"`
	Year        string `json:"year"`
	Days        string `json:"days"`
}

// Schedules fetches the raw schedule payload for a fully resolved
// location. Entries with an unusable month or year are logged and
// dropped; the rest of the payload survives.
func (c *Client) Schedules(ctx context.Context, number, streetID, townID, streetName, periodID string) ([]model.RawScheduleRecord, error) {
	raw, err := c.postForm(ctx, "/schedules", map[string]string{
		"number":           number,
		"streetId":         streetID,
		"townId":           townID,
		"streetName":       streetName,
		"schedulePeriodId": periodID,
		"lng":              "pl",
	})
	if err != nil {
		return nil, err
	}
	var data struct {
		ScheduleDescription []scheduleEntry `json:"scheduleDescription"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.ScheduleDescription == nil {
		return nil, fmt.Errorf("%w: missing scheduleDescription list", ErrRemoteMalformed)
	}

	records := make([]model.RawScheduleRecord, 0, len(data.ScheduleDescription))
	for _, e := range data.ScheduleDescription {
		month, merr := strconv.Atoi(strings.TrimSpace(e.Month))
		year, yerr := strconv.Atoi(strings.TrimSpace(e.Year))
		if merr != nil || yerr != nil {
			log.Printf("Warning: skipping schedule entry %q: bad month/year %q/%q", e.Name, e.Month, e.Year)
			continue
		}
		records = append(records, model.RawScheduleRecord{
			ID:          e.ID,
			Name:        e.Name,
			Color:       e.Color,
			Description: e.Description,
			TypeID:      e.TypeID,
			Order:       e.Order,
			Month:       month,
			Year:        year,
			Days:        e.Days,
		})
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, path string, fields map[string]string) (json.RawMessage, error) {
	var body strings.Builder
	for k, v := range fields {
		fmt.Fprintf(&body, "------%s\r\nContent-Disposition: form-data; name=%q\r\n\r\n%s\r\n", formBoundary, k, v)
	}
	fmt.Fprintf(&body, "------%s--\r\n", formBoundary)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body.String()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----"+formBoundary)
	req.Header.Set("Origin", originHeader)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRemoteUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteMalformed, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", ErrRemoteRejected, req.URL.Path)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: empty data", ErrRemoteMalformed)
	}
	return env.Data, nil
}

package obis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

// defaultPageSize matches the OBIS API maximum.
const defaultPageSize = 5000

// Client fetches occurrence records from the OBIS v3 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	pageSize   int
}

// NewClient creates an OBIS occurrence client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:   logger,
		pageSize: defaultPageSize,
	}
}

// FetchOccurrences returns every known occurrence record for the scientific
// name, draining the paged endpoint. Records without usable coordinates or
// an event date are skipped with a debug log.
func (c *Client) FetchOccurrences(ctx context.Context, scientificName string) ([]domain.Occurrence, error) {
	var out []domain.Occurrence
	after := ""

	for {
		page, err := c.fetchPage(ctx, scientificName, after)
		if err != nil {
			return nil, err
		}
		if len(page.Results) == 0 {
			break
		}

		for _, rec := range page.Results {
			occ, ok := c.toOccurrence(rec)
			if !ok {
				continue
			}
			out = append(out, occ)
		}
		after = page.Results[len(page.Results)-1].ID

		if len(page.Results) < c.pageSize {
			break
		}
	}

	c.logger.Info("occurrences fetched", "species", scientificName, "records", len(out))
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, scientificName, after string) (*response, error) {
	params := url.Values{
		"scientificname": {scientificName},
		"size":           {strconv.Itoa(c.pageSize)},
	}
	if after != "" {
		params.Set("after", after)
	}
	fullURL := c.baseURL + "/v3/occurrence?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("occurrence request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("obis API error: status %d: %s", resp.StatusCode, body)
	}

	var page response
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &page, nil
}

func (c *Client) toOccurrence(rec record) (domain.Occurrence, bool) {
	if rec.DecimalLongitude == nil || rec.DecimalLatitude == nil {
		c.logger.Debug("skipping record without coordinates", "id", rec.ID)
		return domain.Occurrence{}, false
	}
	date, ok := parseEventDate(rec.EventDate)
	if !ok {
		c.logger.Debug("skipping record without parseable date", "id", rec.ID, "event_date", rec.EventDate)
		return domain.Occurrence{}, false
	}
	return domain.Occurrence{
		TaxonID:        strconv.Itoa(rec.TaxonID),
		ScientificName: rec.ScientificName,
		Lon:            *rec.DecimalLongitude,
		Lat:            *rec.DecimalLatitude,
		EventDate:      date,
	}, true
}

// parseEventDate handles the date shapes OBIS emits: full timestamps, plain
// dates, year-months, and "start/end" intervals (the start is used).
func parseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// OBIS API response types.

type response struct {
	Total   int      `json:"total"`
	Results []record `json:"results"`
}

type record struct {
	ID               string   `json:"id"`
	ScientificName   string   `json:"scientificName"`
	TaxonID          int      `json:"taxonID"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	EventDate        string   `json:"eventDate"`
}

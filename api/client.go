// Package api implements a client for the Congress.gov v3 member endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Leveneer/congress-member-data/config"
	"github.com/Leveneer/congress-member-data/congress"
	"github.com/Leveneer/congress-member-data/models"
	"github.com/go-resty/resty/v2"
)

// pageLimitMax is the largest page size the API accepts.
const pageLimitMax = 250

// Client issues paged requests against the member-list endpoint. It keeps no
// pagination state; the caller owns the offset.
type Client struct {
	http    *resty.Client
	Metrics *Metrics

	// now is swappable for tests that pin the current congress.
	now func() time.Time
}

// NewClient builds a client configured from cfg. Retry behavior is off unless
// cfg.MaxRetries is set; retries trigger only on throttling and server errors.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("X-Api-Key", cfg.APIKey)

	if cfg.MaxRetries > 0 {
		client.SetRetryCount(cfg.MaxRetries)
		client.SetRetryWaitTime(cfg.RetryBackoff)
		client.SetRetryMaxWaitTime(cfg.RetryBackoffMax)
		client.AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	}

	return &Client{
		http:    client,
		Metrics: NewMetrics(),
		now:     time.Now,
	}, nil
}

// HTTPClient exposes the underlying transport client for test doubles.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

// PageRequest identifies one page of the member list for a congress.
type PageRequest struct {
	Congress int
	Offset   int
	Limit    int
	// Chamber is passed through as a server-side hint when set. Filtering
	// is still applied client-side because the hint is not authoritative.
	Chamber string
}

// MemberPage is one parsed page of results.
type MemberPage struct {
	Members []*models.Member
	Count   int
	HasNext bool
}

// FetchPage issues one request for the given page and parses the results.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*MemberPage, error) {
	limit := req.Limit
	if limit <= 0 || limit > pageLimitMax {
		limit = pageLimitMax
	}

	current := req.Congress == congress.NumberForDate(c.now())
	params := map[string]string{
		"format":        "json",
		"limit":         strconv.Itoa(limit),
		"offset":        strconv.Itoa(req.Offset),
		"currentMember": strconv.FormatBool(current),
	}
	if req.Chamber != "" {
		params["chamber"] = req.Chamber
	}

	c.Metrics.IncRequest("started")
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(fmt.Sprintf("/member/congress/%d", req.Congress))

	c.Metrics.ObserveDuration(time.Since(start))

	if err != nil {
		classified := classifyTransportError(err)
		c.Metrics.IncError(errorTypeLabel(classified))
		return nil, classified
	}

	if err := statusError(resp.StatusCode()); err != nil {
		c.Metrics.IncError(errorTypeLabel(err))
		slog.Error("non-200 response",
			slog.Int("status", resp.StatusCode()),
			slog.Int("congress", req.Congress),
			slog.Int("offset", req.Offset),
		)
		return nil, err
	}

	var payload memberListResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		malformed := ErrMalformedResponse{Err: err}
		c.Metrics.IncError(errorTypeLabel(malformed))
		return nil, malformed
	}

	page := &MemberPage{
		Members: make([]*models.Member, 0, len(payload.Members)),
		Count:   payload.Pagination.Count,
		HasNext: payload.Pagination.Next != "",
	}
	for i := range payload.Members {
		page.Members = append(page.Members, payload.Members[i].toMember(req.Congress, current))
	}

	c.Metrics.IncPages()
	c.Metrics.AddMembers(len(page.Members))

	slog.Debug("fetched member page",
		slog.Int("congress", req.Congress),
		slog.Int("offset", req.Offset),
		slog.Int("members", len(page.Members)),
		slog.Bool("has_next", page.HasNext),
	)
	return page, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrConnection{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return err
}

func statusError(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized{Err: fmt.Errorf("http status %d", status)}
	case status == http.StatusTooManyRequests:
		return ErrRateLimited{Err: fmt.Errorf("http status %d", status)}
	default:
		return fmt.Errorf("unexpected http status %d", status)
	}
}

// memberListResponse mirrors the member-list payload shape.
type memberListResponse struct {
	Members    []rawMember   `json:"members"`
	Pagination rawPagination `json:"pagination"`
}

type rawPagination struct {
	Count int    `json:"count"`
	Next  string `json:"next"`
}

type rawMember struct {
	BioguideID    string   `json:"bioguideId"`
	Name          string   `json:"name"`
	Party         string   `json:"party"`
	PartyName     string   `json:"partyName"`
	State         string   `json:"state"`
	District      *int     `json:"district"`
	URL           string   `json:"url"`
	CurrentMember *bool    `json:"currentMember"`
	Terms         rawTerms `json:"terms"`
}

type rawTerms struct {
	Item []rawTerm `json:"item"`
}

type rawTerm struct {
	Chamber   string  `json:"chamber"`
	Congress  flexInt `json:"congress"`
	District  *int    `json:"district"`
	StartYear flexInt `json:"startYear"`
	EndYear   flexInt `json:"endYear"`
}

// flexInt tolerates the API serving numbers as either JSON numbers or
// strings; both occur in member term data.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("flexible int %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// toMember converts a raw API record into the normalized model. The state
// name is mapped to its postal code and the chamber is taken from the most
// recent term, with "House of Representatives" collapsed to "House". The
// top-level district reflects the member's seat today, so it only joins the
// per-congress district set when the requested congress is the current one.
func (rm *rawMember) toMember(congressNum int, current bool) *models.Member {
	m := &models.Member{
		BioguideID:    rm.BioguideID,
		Name:          rm.Name,
		Party:         rm.Party,
		State:         models.StateCode(rm.State),
		URL:           rm.URL,
		CurrentMember: true,
		FullTerm:      true,
	}
	if m.Party == "" {
		m.Party = rm.PartyName
	}
	if rm.CurrentMember != nil {
		m.CurrentMember = *rm.CurrentMember
	}

	if len(rm.Terms.Item) > 0 {
		last := rm.Terms.Item[len(rm.Terms.Item)-1]
		m.Chamber = normalizeTermChamber(last.Chamber)
	}

	seen := make(map[int]struct{})
	addDistrict := func(d int) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		m.Districts = append(m.Districts, d)
	}
	if current && rm.District != nil {
		addDistrict(*rm.District)
	}

	for _, term := range rm.Terms.Item {
		if int(term.Congress) != congressNum {
			continue
		}
		if term.District != nil {
			addDistrict(*term.District)
			if m.District == nil {
				d := *term.District
				m.District = &d
			}
		}
		if int(term.EndYear) != int(term.StartYear)+2 {
			m.FullTerm = false
		}
	}
	if m.District == nil {
		m.District = rm.District
	}

	return m
}

func normalizeTermChamber(chamber string) string {
	if chamber == "House of Representatives" {
		return models.ChamberHouse
	}
	return chamber
}

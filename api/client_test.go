package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Leveneer/congress-member-data/config"
	"github.com/jarcoal/httpmock"
)

const testBaseURL = "https://api.congress.example/v3"

func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.APIKey = "test-key"

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	// Pin "now" inside the 118th Congress so currentMember is stable.
	client.now = func() time.Time {
		return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
	return client
}

func memberListBody(hasNext bool) string {
	pagination := `{"count": 2}`
	if hasNext {
		pagination = `{"count": 2, "next": "` + testBaseURL + `/member/congress/118?offset=250&limit=250"}`
	}
	return `{
		"members": [
			{
				"bioguideId": "S000148",
				"name": "Schumer, Charles E.",
				"partyName": "Democratic",
				"state": "New York",
				"currentMember": true,
				"url": "https://api.congress.gov/v3/member/S000148",
				"terms": {
					"item": [
						{"chamber": "Senate", "congress": "118", "startYear": "2023", "endYear": "2025"}
					]
				}
			},
			{
				"bioguideId": "O000172",
				"name": "Ocasio-Cortez, Alexandria",
				"partyName": "Democratic",
				"state": "New York",
				"district": 14,
				"currentMember": true,
				"url": "https://api.congress.gov/v3/member/O000172",
				"terms": {
					"item": [
						{"chamber": "House of Representatives", "congress": 118, "district": 14, "startYear": 2023, "endYear": 2025}
					]
				}
			}
		],
		"pagination": ` + pagination + `
	}`
}

func TestFetchPageParsesMembers(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/118",
		httpmock.NewStringResponder(200, memberListBody(false)))

	page, err := client.FetchPage(context.Background(), PageRequest{Congress: 118, Offset: 0, Limit: 250})
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}

	if len(page.Members) != 2 {
		t.Fatalf("members=%d, want 2", len(page.Members))
	}
	if page.HasNext {
		t.Fatalf("HasNext should be false without a pagination.next link")
	}
	if page.Count != 2 {
		t.Fatalf("count=%d, want 2", page.Count)
	}

	senator := page.Members[0]
	if senator.BioguideID != "S000148" {
		t.Fatalf("bioguideId=%q", senator.BioguideID)
	}
	if senator.State != "NY" {
		t.Fatalf("state=%q, want NY (normalized from full name)", senator.State)
	}
	if senator.Chamber != "Senate" {
		t.Fatalf("chamber=%q, want Senate", senator.Chamber)
	}
	if senator.Party != "Democratic" {
		t.Fatalf("party=%q, want Democratic", senator.Party)
	}
	if senator.District != nil {
		t.Fatalf("senator district should be nil, got %d", *senator.District)
	}
	if !senator.FullTerm {
		t.Fatalf("2023-2025 term should count as a full term")
	}

	rep := page.Members[1]
	if rep.Chamber != "House" {
		t.Fatalf("chamber=%q, want House (normalized)", rep.Chamber)
	}
	if rep.District == nil || *rep.District != 14 {
		t.Fatalf("district=%v, want 14", rep.District)
	}
	if len(rep.Districts) != 1 || rep.Districts[0] != 14 {
		t.Fatalf("districts=%v, want [14]", rep.Districts)
	}
}

func TestFetchPageHasNext(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/118",
		httpmock.NewStringResponder(200, memberListBody(true)))

	page, err := client.FetchPage(context.Background(), PageRequest{Congress: 118})
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if !page.HasNext {
		t.Fatalf("HasNext should be true when pagination.next is present")
	}
}

func TestFetchPageQueryParams(t *testing.T) {
	client := newTestClient(t)

	var gotQuery map[string]string
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/117",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = map[string]string{}
			for k := range req.URL.Query() {
				gotQuery[k] = req.URL.Query().Get(k)
			}
			return httpmock.NewStringResponse(200, `{"members": [], "pagination": {"count": 0}}`), nil
		})

	_, err := client.FetchPage(context.Background(), PageRequest{
		Congress: 117,
		Offset:   250,
		Limit:    100,
		Chamber:  "House",
	})
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}

	want := map[string]string{
		"format":        "json",
		"limit":         "100",
		"offset":        "250",
		"currentMember": "false", // 117th is historical relative to the pinned clock
		"chamber":       "House",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Fatalf("query %s=%q, want %q (full query: %v)", k, gotQuery[k], v, gotQuery)
		}
	}
}

func TestFetchPageCurrentCongress(t *testing.T) {
	client := newTestClient(t)

	var current string
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/118",
		func(req *http.Request) (*http.Response, error) {
			current = req.URL.Query().Get("currentMember")
			return httpmock.NewStringResponse(200, `{"members": [], "pagination": {"count": 0}}`), nil
		})

	if _, err := client.FetchPage(context.Background(), PageRequest{Congress: 118}); err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if current != "true" {
		t.Fatalf("currentMember=%q, want true for the congress in session", current)
	}
}

func TestFetchPageHistoricalDistrictScoping(t *testing.T) {
	client := newTestClient(t)

	// A representative who moved from district 14 to 12 after redistricting.
	// The top-level district reflects the current seat.
	body := `{
		"members": [
			{
				"bioguideId": "M000001",
				"name": "Mobile, Mary",
				"partyName": "Democratic",
				"state": "New York",
				"district": 12,
				"currentMember": true,
				"url": "https://api.congress.gov/v3/member/M000001",
				"terms": {
					"item": [
						{"chamber": "House of Representatives", "congress": 117, "district": 14, "startYear": 2021, "endYear": 2023},
						{"chamber": "House of Representatives", "congress": 118, "district": 12, "startYear": 2023, "endYear": 2025}
					]
				}
			}
		],
		"pagination": {"count": 1}
	}`
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/117",
		httpmock.NewStringResponder(200, body))

	page, err := client.FetchPage(context.Background(), PageRequest{Congress: 117})
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if len(page.Members) != 1 {
		t.Fatalf("members=%d, want 1", len(page.Members))
	}

	m := page.Members[0]
	// For a past congress only the term's district counts; the current seat
	// must not make the member look redistricted.
	if len(m.Districts) != 1 || m.Districts[0] != 14 {
		t.Fatalf("districts=%v, want [14]", m.Districts)
	}
	if m.District == nil || *m.District != 14 {
		t.Fatalf("district=%v, want 14 (the seat held in the requested congress)", m.District)
	}
}

func TestFetchPageStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		label  string
	}{
		{http.StatusUnauthorized, func(err error) bool { var e ErrUnauthorized; return errors.As(err, &e) }, "ErrUnauthorized"},
		{http.StatusForbidden, func(err error) bool { var e ErrUnauthorized; return errors.As(err, &e) }, "ErrUnauthorized"},
		{http.StatusTooManyRequests, func(err error) bool { var e ErrRateLimited; return errors.As(err, &e) }, "ErrRateLimited"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			client := newTestClient(t)
			httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/118",
				httpmock.NewStringResponder(tt.status, ""))

			page, err := client.FetchPage(context.Background(), PageRequest{Congress: 118})
			if page != nil {
				t.Fatalf("page should be nil on error")
			}
			if !tt.check(err) {
				t.Fatalf("error = %v, want %s", err, tt.label)
			}
		})
	}
}

func TestFetchPageMalformedResponse(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/118",
		httpmock.NewStringResponder(200, "<html>maintenance page</html>"))

	_, err := client.FetchPage(context.Background(), PageRequest{Congress: 118})
	var malformed ErrMalformedResponse
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchPageConnectionError(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", testBaseURL+"/member/congress/118",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := client.FetchPage(context.Background(), PageRequest{Congress: 118})
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("error = %v, want ErrConnection", err)
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "unauthorized", err: ErrUnauthorized{Err: errors.New("401")}, expected: "unauthorized"},
		{name: "rate limited", err: ErrRateLimited{Err: errors.New("429")}, expected: "rate_limited"},
		{name: "timeout", err: ErrTimeout{Err: context.DeadlineExceeded}, expected: "timeout"},
		{name: "connection", err: ErrConnection{Err: errors.New("refused")}, expected: "connection"},
		{name: "malformed", err: ErrMalformedResponse{Err: errors.New("bad json")}, expected: "malformed_response"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestFlexIntAcceptsStringsAndNumbers(t *testing.T) {
	var term rawTerm
	for _, body := range []string{
		`{"congress": "118", "startYear": "2023", "endYear": "2025"}`,
		`{"congress": 118, "startYear": 2023, "endYear": 2025}`,
	} {
		if err := json.Unmarshal([]byte(body), &term); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if term.Congress != 118 || term.StartYear != 2023 || term.EndYear != 2025 {
			t.Fatalf("parsed term = %+v from %s", term, body)
		}
	}
}

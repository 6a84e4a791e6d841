// Package models defines data structures shared across the retrieval tool.
package models

import "time"

// Chamber values after normalization.
const (
	ChamberHouse  = "House"
	ChamberSenate = "Senate"
)

// Member represents one congressional member record.
type Member struct {
	BioguideID string `csv:"bioguideId" json:"bioguideId"`
	Name       string `csv:"name" json:"name"`
	Party      string `csv:"party" json:"party"`
	State      string `csv:"state" json:"state"` // two-letter postal code
	District   *int   `csv:"district" json:"district,omitempty"`
	Chamber    string `csv:"chamber" json:"chamber"`
	URL        string `csv:"url" json:"url"`

	// CurrentMember mirrors the source flag; false marks a former member
	// when the requested congress is the one currently in session.
	CurrentMember bool `csv:"-" json:"-"`

	// Districts holds every district observed for this member within the
	// requested congress, across terms and across pages. More than one
	// entry means the member was redistricted.
	Districts []int `csv:"-" json:"-"`

	// FullTerm is false when any of the member's terms for the requested
	// congress ended short of the regular two years.
	FullTerm bool `csv:"-" json:"-"`
}

// RetrievalStats summarizes a retrieval run after filtering.
type RetrievalStats struct {
	Total        int `json:"total"`
	Former       int `json:"former"`
	Redistricted int `json:"redistricted"`
}

// RetrievalResult holds the outcome of one retrieval run.
type RetrievalResult struct {
	Members      []*Member
	Stats        RetrievalStats
	Congress     int
	RequestCount int
	PageCount    int
	StartTime    time.Time
	EndTime      time.Time
}

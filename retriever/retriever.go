// Package retriever drives paged member retrieval with filtering and stats.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Leveneer/congress-member-data/api"
	"github.com/Leveneer/congress-member-data/config"
	"github.com/Leveneer/congress-member-data/congress"
	"github.com/Leveneer/congress-member-data/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// PageFetcher issues one paged request to the member-list endpoint. The
// retriever owns all pagination state.
type PageFetcher interface {
	FetchPage(ctx context.Context, req api.PageRequest) (*api.MemberPage, error)
}

// ErrInvalidFilter indicates a congress, chamber, or state filter that
// cannot be normalized.
type ErrInvalidFilter struct {
	Err error
}

func (e ErrInvalidFilter) Error() string {
	return fmt.Errorf("invalid_filter: %w", e.Err).Error()
}

func (e ErrInvalidFilter) Unwrap() error {
	return e.Err
}

// ErrTooManyPages indicates the pagination loop hit its defensive bound
// while the endpoint kept reporting further pages.
type ErrTooManyPages struct {
	Pages int
}

func (e ErrTooManyPages) Error() string {
	return fmt.Sprintf("pagination exceeded %d pages without terminating", e.Pages)
}

// Options carries the optional client-side filters for a retrieval run.
type Options struct {
	Chamber string // House or Senate, case-insensitive, H/S accepted
	State   string // two-letter postal code
}

// Retriever accumulates member records across pages.
type Retriever struct {
	fetcher    PageFetcher
	pageSize   int
	maxPages   int
	dedupeSize int

	// now is swappable for tests that pin the current congress.
	now func() time.Time
}

// New builds a retriever on top of fetcher using cfg's pagination bounds.
func New(fetcher PageFetcher, cfg *config.Config) *Retriever {
	return &Retriever{
		fetcher:    fetcher,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		dedupeSize: cfg.DedupeMaxSize,
		now:        time.Now,
	}
}

// Retrieve fetches every member of the given congress, applies the filters,
// and computes summary statistics. Any page error aborts the run with no
// partial result.
func (r *Retriever) Retrieve(ctx context.Context, congressNum int, opts Options) (*models.RetrievalResult, error) {
	if congressNum < 1 {
		return nil, ErrInvalidFilter{Err: fmt.Errorf("congress number must be positive, got %d", congressNum)}
	}
	chamber, err := NormalizeChamber(opts.Chamber)
	if err != nil {
		return nil, err
	}
	state, err := normalizeState(opts.State)
	if err != nil {
		return nil, err
	}

	// Index from bioguideId to accumulator position. The cache is bounded
	// the same way the upstream rate limits bound a run; a single congress
	// holds well under a thousand members.
	index, err := lru.New[string, int](r.dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe index: %w", err)
	}

	result := &models.RetrievalResult{
		Congress:  congressNum,
		StartTime: r.now(),
	}

	var members []*models.Member
	offset := 0
	hasNext := true

	for page := 0; hasNext; page++ {
		if page >= r.maxPages {
			return nil, ErrTooManyPages{Pages: r.maxPages}
		}

		fetched, err := r.fetcher.FetchPage(ctx, api.PageRequest{
			Congress: congressNum,
			Offset:   offset,
			Limit:    r.pageSize,
			Chamber:  chamber,
		})
		if err != nil {
			return nil, err
		}
		result.RequestCount++

		if len(fetched.Members) == 0 {
			break
		}
		result.PageCount++

		for _, m := range fetched.Members {
			if idx, ok := index.Get(m.BioguideID); ok {
				// Last-seen record wins; keep the first-seen position
				// and the union of observed districts.
				m.Districts = mergeDistricts(members[idx].Districts, m.Districts)
				members[idx] = m
				continue
			}
			index.Add(m.BioguideID, len(members))
			members = append(members, m)
		}

		hasNext = fetched.HasNext
		offset += r.pageSize
	}

	members = filterMembers(members, chamber, state)

	result.Members = members
	result.Stats = computeStats(members, congressNum == congress.NumberForDate(r.now()))
	result.EndTime = r.now()

	slog.Debug("retrieval complete",
		slog.Int("congress", congressNum),
		slog.Int("pages", result.PageCount),
		slog.Int("members", result.Stats.Total),
	)
	return result, nil
}

// NormalizeChamber maps chamber spellings to their canonical form. Empty
// input means no filter and normalizes to empty.
func NormalizeChamber(chamber string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(chamber)) {
	case "":
		return "", nil
	case "house", "h":
		return models.ChamberHouse, nil
	case "senate", "s":
		return models.ChamberSenate, nil
	default:
		return "", ErrInvalidFilter{Err: fmt.Errorf("invalid chamber %q, use House/Senate or H/S", chamber)}
	}
}

func normalizeState(state string) (string, error) {
	trimmed := strings.TrimSpace(state)
	if state != "" && trimmed == "" {
		return "", ErrInvalidFilter{Err: fmt.Errorf("state code cannot be blank")}
	}
	if trimmed == "" {
		return "", nil
	}
	code := strings.ToUpper(trimmed)
	if !models.ValidStateCode(code) {
		return "", ErrInvalidFilter{Err: fmt.Errorf("invalid state code %q", state)}
	}
	return code, nil
}

// filterMembers narrows the set by chamber and state. Both filters are pure
// narrowing, so their order does not matter.
func filterMembers(members []*models.Member, chamber, state string) []*models.Member {
	if chamber == "" && state == "" {
		return members
	}
	filtered := members[:0]
	for _, m := range members {
		if chamber != "" && m.Chamber != chamber {
			continue
		}
		if state != "" && m.State != state {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}

// computeStats derives the run statistics from the final filtered set. For
// the congress currently in session the source's currentMember flag marks
// former members; for historical congresses a term shorter than two years
// does.
func computeStats(members []*models.Member, isCurrent bool) models.RetrievalStats {
	stats := models.RetrievalStats{Total: len(members)}
	for _, m := range members {
		if isCurrent {
			if !m.CurrentMember {
				stats.Former++
			}
		} else if !m.FullTerm {
			stats.Former++
		}
		if len(m.Districts) > 1 {
			stats.Redistricted++
		}
	}
	return stats
}

func mergeDistricts(prev, next []int) []int {
	seen := make(map[int]struct{}, len(prev)+len(next))
	merged := make([]int, 0, len(prev)+len(next))
	for _, d := range prev {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			merged = append(merged, d)
		}
	}
	for _, d := range next {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			merged = append(merged, d)
		}
	}
	return merged
}

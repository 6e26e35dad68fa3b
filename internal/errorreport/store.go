package errorreport

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrReportNotFound is returned when a report id is unknown
var ErrReportNotFound = errors.New("error report not found")

// Filter selects reports. Zero values match everything.
type Filter struct {
	Category Category
	Severity Severity
	Resolved *bool
	From     time.Time
	To       time.Time
	Page     int // 1-based
	PageSize int
}

// Statistics summarizes the stored reports
type Statistics struct {
	Total      int              `json:"total"`
	Unresolved int              `json:"unresolved"`
	ByCategory map[Category]int `json:"by_category"`
	BySeverity map[Severity]int `json:"by_severity"`
}

const defaultPageSize = 50

// Store keeps reports in memory, newest first. Durable mirroring is the
// reporter's sink concern, not the store's.
type Store struct {
	mu      sync.RWMutex
	reports []*Report
	byID    map[string]*Report
}

// NewStore creates an empty report store
func NewStore() *Store {
	return &Store{byID: make(map[string]*Report)}
}

// Add records a report
func (s *Store) Add(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	s.byID[r.ID] = r
}

// Get returns one report by id
func (s *Store) Get(id string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	return *r, nil
}

// List returns the filtered, paginated reports (newest first) and the
// total number of matches before pagination.
func (s *Store) List(f Filter) ([]Report, int) {
	s.mu.RLock()
	matched := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		if matches(r, f) {
			matched = append(matched, *r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start >= total {
		return []Report{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total
}

// Resolve marks a report resolved by the named actor. Resolving an
// already-resolved report is a no-op that keeps the original resolver.
func (s *Store) Resolve(id, resolvedBy string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	if !r.Resolved {
		now := time.Now()
		r.Resolved = true
		r.ResolvedBy = resolvedBy
		r.ResolvedAt = &now
	}
	return *r, nil
}

// Prune drops resolved reports whose resolution is older than cutoff
// and returns how many were removed. Unresolved reports are never
// pruned.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.reports[:0]
	removed := 0
	for _, r := range s.reports {
		if r.Resolved && r.ResolvedAt != nil && r.ResolvedAt.Before(cutoff) {
			delete(s.byID, r.ID)
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.reports = kept
	return removed
}

// Stats computes category and severity counts across all reports
func (s *Store) Stats() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{
		Total:      len(s.reports),
		ByCategory: make(map[Category]int),
		BySeverity: make(map[Severity]int),
	}
	for _, r := range s.reports {
		stats.ByCategory[r.Category]++
		stats.BySeverity[r.Severity]++
		if !r.Resolved {
			stats.Unresolved++
		}
	}
	return stats
}

func matches(r *Report, f Filter) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.Resolved != nil && r.Resolved != *f.Resolved {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Package stain implements the content-addressed IOC store: dedup-on-insert
// upserts, typed queries, symmetric linkage, free-text search, and
// aggregate stats.
package stain

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/internal/lock"
)

// Store is the in-memory stain store. Reads take a shared lock; upserts
// serialize per tag_id via an internal striped lock before taking the
// write lock to mutate the index.
type Store struct {
	mu      sync.RWMutex
	byTag   map[string]domain.Stain
	links   map[string]map[string]struct{}
	stripes *lock.Striped
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		byTag:   make(map[string]domain.Stain),
		links:   make(map[string]map[string]struct{}),
		stripes: lock.NewStriped(),
	}
}

// Upsert inserts stain, or merges it into the existing record sharing its
// tag_id, and returns the stored record after dedup.
func (s *Store) Upsert(in domain.Stain) domain.Stain {
	unlock := s.stripes.Lock(in.TagID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byTag[in.TagID]
	if !ok {
		if in.HitCount < 1 {
			in.HitCount = 1
		}
		if in.LastSeen.Before(in.FirstSeen) {
			in.LastSeen = in.FirstSeen
		}
		if in.LinkedTags == nil {
			in.LinkedTags = make(map[string]struct{})
		}
		s.byTag[in.TagID] = in
		return in.Clone()
	}

	merged := existing
	merged.HitCount = existing.HitCount + 1
	if in.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = in.LastSeen
	}
	merged.Evidence = mergeUnique(existing.Evidence, in.Evidence)
	merged.LinkedTags = unionTags(existing.LinkedTags, in.LinkedTags)
	if in.Confidence > merged.Confidence {
		merged.Confidence = in.Confidence
	}
	if in.ThreatScore > merged.ThreatScore {
		merged.ThreatScore = in.ThreatScore
	}

	s.byTag[in.TagID] = merged
	return merged.Clone()
}

func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, e := range append(append([]string(nil), existing...), incoming...) {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func unionTags(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// Get returns the stain for tagID, or false if no such record exists.
func (s *Store) Get(tagID string) (domain.Stain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byTag[tagID]
	if !ok {
		return domain.Stain{}, false
	}
	return st.Clone(), true
}

// QueryByType returns every stain whose marker_type matches.
func (s *Store) QueryByType(t domain.MarkerType) []domain.Stain {
	return s.filter(func(st domain.Stain) bool { return st.MarkerType == t })
}

// QueryByColor returns every stain tagged with color.
func (s *Store) QueryByColor(c domain.ColorTag) []domain.Stain {
	return s.filter(func(st domain.Stain) bool { return st.Color == c })
}

// QueryByIP returns every stain whose target IP matches.
func (s *Store) QueryByIP(ip string) []domain.Stain {
	return s.filter(func(st domain.Stain) bool { return st.Target.IP == ip })
}

// QueryByScoreRange returns every stain with threat_score in [min, max],
// ordered by descending threat_score rather than the default recency order.
func (s *Store) QueryByScoreRange(min, max float64) []domain.Stain {
	out := s.filter(func(st domain.Stain) bool {
		return st.ThreatScore >= min && st.ThreatScore <= max
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ThreatScore > out[j].ThreatScore })
	return out
}

// filter returns every stain matching pred, ordered by descending
// first_seen (most recent first).
func (s *Store) filter(pred func(domain.Stain) bool) []domain.Stain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Stain, 0)
	for _, st := range s.byTag {
		if pred(st) {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.After(out[j].FirstSeen) })
	return out
}

// Link records a symmetric linkage edge between tagA and tagB. Both sides
// must exist for the link to take effect; a missing tag is a no-op rather
// than a failure.
func (s *Store) Link(tagA, tagB string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTag[tagA]; !ok {
		return
	}
	if _, ok := s.byTag[tagB]; !ok {
		return
	}

	s.addEdge(tagA, tagB)
	s.addEdge(tagB, tagA)

	a := s.byTag[tagA]
	if a.LinkedTags == nil {
		a.LinkedTags = make(map[string]struct{})
	}
	a.LinkedTags[tagB] = struct{}{}
	s.byTag[tagA] = a

	b := s.byTag[tagB]
	if b.LinkedTags == nil {
		b.LinkedTags = make(map[string]struct{})
	}
	b.LinkedTags[tagA] = struct{}{}
	s.byTag[tagB] = b
}

func (s *Store) addEdge(from, to string) {
	if s.links[from] == nil {
		s.links[from] = make(map[string]struct{})
	}
	s.links[from][to] = struct{}{}
}

// Links returns the adjacency set for tagID, used by the correlation
// engine's graph traversal.
func (s *Store) Links(tagID string) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.links[tagID]))
	for k := range s.links[tagID] {
		out[k] = struct{}{}
	}
	return out
}

// All returns every stored stain, for use by the correlation engine when
// building a fresh graph.
func (s *Store) All() []domain.Stain {
	return s.filter(func(domain.Stain) bool { return true })
}

// Search performs a case-insensitive substring match over tag_id,
// marker_type, color, target ip/hostname/hash, and evidence.
func (s *Store) Search(freeText string) []domain.Stain {
	needle := strings.ToLower(freeText)
	return s.filter(func(st domain.Stain) bool {
		if strings.Contains(strings.ToLower(st.TagID), needle) ||
			strings.Contains(strings.ToLower(string(st.MarkerType)), needle) ||
			strings.Contains(strings.ToLower(string(st.Color)), needle) ||
			strings.Contains(strings.ToLower(st.Target.IP), needle) ||
			strings.Contains(strings.ToLower(st.Target.Hostname), needle) ||
			strings.Contains(strings.ToLower(st.Target.Hash), needle) {
			return true
		}
		for _, e := range st.Evidence {
			if strings.Contains(strings.ToLower(e), needle) {
				return true
			}
		}
		return false
	})
}

// Stats is the store's aggregate summary.
type Stats struct {
	Total           int
	ByType          map[domain.MarkerType]int
	ByColor         map[domain.ColorTag]int
	ByStatus        map[domain.StainStatus]int
	AvgThreatScore  float64
	HighThreatCount int
}

// highThreatThreshold matches the decision tier's propose boundary (0.70)
// expressed on the 0-10 threat_score scale.
const highThreatThreshold = 7.0

// Stats computes totals by type/color/status, the average threat score, and
// the count of stains above the high-threat threshold.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		ByType:   make(map[domain.MarkerType]int),
		ByColor:  make(map[domain.ColorTag]int),
		ByStatus: make(map[domain.StainStatus]int),
	}

	var sum float64
	for _, st := range s.byTag {
		stats.Total++
		stats.ByType[st.MarkerType]++
		stats.ByColor[st.Color]++
		stats.ByStatus[st.Status]++
		sum += st.ThreatScore
		if st.ThreatScore >= highThreatThreshold {
			stats.HighThreatCount++
		}
	}
	if stats.Total > 0 {
		stats.AvgThreatScore = sum / float64(stats.Total)
	}
	return stats
}

// Now returns the current time; factored out so callers needing a
// FirstSeen/LastSeen default share one clock source.
var Now = time.Now

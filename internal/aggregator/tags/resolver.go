package tags

import (
	"sort"
	"strings"

	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/entity"
)

// Resolved is a validated tag assignment ready to persist.
type Resolved struct {
	TagID      uint
	Name       string
	Confidence float64
}

// Taxonomy is the canonical tag set indexed for case-insensitive exact
// lookup. The taxonomy is closed: unrecognized labels are dropped, never
// auto-created.
type Taxonomy struct {
	byName map[string]entity.Tag
	byID   map[uint]entity.Tag
}

// NewTaxonomy indexes the given canonical tags.
func NewTaxonomy(all []entity.Tag) *Taxonomy {
	t := &Taxonomy{
		byName: make(map[string]entity.Tag, len(all)),
		byID:   make(map[uint]entity.Tag, len(all)),
	}
	for _, tag := range all {
		t.byName[strings.ToLower(tag.Name)] = tag
		t.byID[tag.ID] = tag
	}
	return t
}

// Lookup finds a canonical tag by label, case-insensitively.
func (t *Taxonomy) Lookup(label string) (entity.Tag, bool) {
	tag, ok := t.byName[strings.ToLower(strings.TrimSpace(label))]
	return tag, ok
}

// WouldCreateCycle reports whether setting parentID as the parent of tagID
// would close a cycle in the hierarchy. The schema does not constrain the
// self-reference, so every parent edge goes through this check before being
// written.
func (t *Taxonomy) WouldCreateCycle(tagID uint, parentID uint) bool {
	seen := map[uint]struct{}{tagID: {}}
	current := parentID
	for {
		if _, hit := seen[current]; hit {
			return true
		}
		seen[current] = struct{}{}
		tag, ok := t.byID[current]
		if !ok || tag.ParentID == nil {
			return false
		}
		current = *tag.ParentID
	}
}

// Resolver merges tagger output against the canonical taxonomy with the
// configured threshold and cap.
type Resolver struct {
	minConfidence float64
	maxPerArticle int
}

// NewResolver creates a resolver with the given tag configuration.
func NewResolver(cfg config.Tags) *Resolver {
	return &Resolver{
		minConfidence: cfg.MinConfidence,
		maxPerArticle: cfg.MaxPerArticle,
	}
}

// Resolve validates raw (label, confidence) pairs: unknown labels are
// dropped, confidences clamped into [0,1], pairs below the minimum
// confidence dropped, and at most maxPerArticle survivors kept by descending
// confidence. Confidence in a child never implies confidence in its parent;
// only explicitly returned labels are assigned.
func (r *Resolver) Resolve(raw []dto.RawTag, taxonomy *Taxonomy) []Resolved {
	best := make(map[uint]Resolved, len(raw))

	for _, rt := range raw {
		tag, ok := taxonomy.Lookup(rt.Label)
		if !ok {
			continue
		}
		confidence := clamp(rt.Confidence)
		if confidence < r.minConfidence {
			continue
		}
		if prev, seen := best[tag.ID]; !seen || confidence > prev.Confidence {
			best[tag.ID] = Resolved{TagID: tag.ID, Name: tag.Name, Confidence: confidence}
		}
	}

	resolved := make([]Resolved, 0, len(best))
	for _, v := range best {
		resolved = append(resolved, v)
	}
	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].Confidence != resolved[j].Confidence {
			return resolved[i].Confidence > resolved[j].Confidence
		}
		return resolved[i].Name < resolved[j].Name
	})

	if r.maxPerArticle > 0 && len(resolved) > r.maxPerArticle {
		resolved = resolved[:r.maxPerArticle]
	}
	return resolved
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

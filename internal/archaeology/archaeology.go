// Package archaeology reconstructs when a topic was active in the vault: a
// monthly timeline of semantically related notes, with peak and dormant
// periods.
package archaeology

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vaultmcp/vaultmcp/internal/embed"
	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/store"
)

// TopK is how many rows the semantic scan feeds into the timeline.
const TopK = 50

// PeakIntensity is the mean-similarity floor for a month to count as a peak.
const PeakIntensity = 0.5

// monthLayout formats bucket keys as YYYY-MM.
const monthLayout = "2006-01"

// Month is one bucket of the timeline.
type Month struct {
	// Month is the YYYY-MM bucket key.
	Month string `json:"month"`

	// Activity is the number of matching notes dated in this month.
	Activity int `json:"activity"`

	// Intensity is the mean similarity of those notes.
	Intensity float64 `json:"intensity"`

	// Notes lists the matching paths, sorted.
	Notes []string `json:"notes,omitempty"`
}

// Timeline is the structured trace result. Rendering (ASCII bars etc.) is a
// view over this record, not part of it.
type Timeline struct {
	Topic string `json:"topic"`

	// Months holds the active buckets in ascending order.
	Months []Month `json:"months"`

	// PeakPeriods are months with intensity >= 0.5, most intense first.
	PeakPeriods []Month `json:"peak_periods,omitempty"`

	// DormantPeriods are months inside [first, last] with zero activity.
	DormantPeriods []string `json:"dormant_periods,omitempty"`
}

// SnapshotSource hands the tracer the current index generation.
type SnapshotSource interface {
	Snapshot() *store.Snapshot
}

// Tracer runs archaeology queries. Safe for concurrent use.
type Tracer struct {
	source  SnapshotSource
	encoder embed.Encoder
	logger  *slog.Logger
}

// NewTracer creates a Tracer.
func NewTracer(source SnapshotSource, encoder embed.Encoder, logger *slog.Logger) (*Tracer, error) {
	if source == nil || encoder == nil {
		return nil, vmcperrors.ConfigError("tracer requires a snapshot source and encoder", nil)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Tracer{source: source, encoder: encoder, logger: logger}, nil
}

// Trace builds the monthly timeline for a topic. Notes scoring below
// threshold are dropped; excludeDaily removes notes tagged "daily" (journal
// noise drowns out real activity).
func (t *Tracer) Trace(ctx context.Context, topic string, threshold float64, excludeDaily bool) (*Timeline, error) {
	snap := t.source.Snapshot()
	if snap == nil || snap.Vectors == nil {
		return nil, vmcperrors.IndexUnavailableError("dense index is not loaded")
	}

	timeline := &Timeline{Topic: topic, Months: []Month{}}
	if snap.Empty() || len(store.Tokenize(topic)) == 0 {
		return timeline, nil
	}

	queryVec, err := t.encoder.Embed(ctx, topic)
	if err != nil {
		return nil, err
	}
	hits := snap.SemanticSearch(queryVec, TopK)

	// Collapse chunks to one entry per note, keeping the best similarity.
	type noteHit struct {
		row int
		sim float64
	}
	best := make(map[string]noteHit)
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		row := snap.Row(h.Row)
		if excludeDaily && hasTag(row.Tags, "daily") {
			continue
		}
		if prev, ok := best[row.RelativePath]; !ok || h.Score > prev.sim {
			best[row.RelativePath] = noteHit{row: h.Row, sim: h.Score}
		}
	}
	if len(best) == 0 {
		return timeline, nil
	}

	type bucket struct {
		sum   float64
		notes []string
	}
	buckets := make(map[string]*bucket)
	for path, hit := range best {
		key := effectiveDate(snap.Row(hit.row)).Format(monthLayout)
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += hit.sim
		b.notes = append(b.notes, path)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b := buckets[k]
		sort.Strings(b.notes)
		timeline.Months = append(timeline.Months, Month{
			Month:     k,
			Activity:  len(b.notes),
			Intensity: b.sum / float64(len(b.notes)),
			Notes:     b.notes,
		})
	}

	for _, m := range timeline.Months {
		if m.Intensity >= PeakIntensity {
			timeline.PeakPeriods = append(timeline.PeakPeriods, m)
		}
	}
	sort.Slice(timeline.PeakPeriods, func(a, b int) bool {
		pa, pb := timeline.PeakPeriods[a], timeline.PeakPeriods[b]
		if pa.Intensity != pb.Intensity {
			return pa.Intensity > pb.Intensity
		}
		return pa.Month < pb.Month
	})

	timeline.DormantPeriods = dormantMonths(keys)

	t.logger.Debug("Archaeology trace complete",
		slog.String("topic", topic),
		slog.Int("months", len(timeline.Months)),
		slog.Int("peaks", len(timeline.PeakPeriods)))
	return timeline, nil
}

// effectiveDate picks the note's creation date, falling back to mtime.
func effectiveDate(row store.RowMetadata) time.Time {
	if !row.CreatedDate.IsZero() {
		return row.CreatedDate
	}
	return row.ModifiedTime
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// dormantMonths walks month by month from the first active bucket to the
// last and collects the gaps.
func dormantMonths(activeKeys []string) []string {
	if len(activeKeys) < 2 {
		return nil
	}
	active := make(map[string]bool, len(activeKeys))
	for _, k := range activeKeys {
		active[k] = true
	}

	first, err := time.Parse(monthLayout, activeKeys[0])
	if err != nil {
		return nil
	}
	last, err := time.Parse(monthLayout, activeKeys[len(activeKeys)-1])
	if err != nil {
		return nil
	}

	var dormant []string
	for m := first.AddDate(0, 1, 0); m.Before(last); m = m.AddDate(0, 1, 0) {
		if key := m.Format(monthLayout); !active[key] {
			dormant = append(dormant, key)
		}
	}
	return dormant
}

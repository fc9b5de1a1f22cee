// Package episode collapses repeated contacts about the same reference into
// episodes using a time-gap rule with a productivity-credit overlay.
package episode

import (
	"sort"
	"strings"
	"time"

	"contact-metrics/models"
)

// Config controls where one episode ends and the next begins.
type Config struct {
	// GapThreshold is the largest silence that still continues an episode.
	GapThreshold time.Duration
	// NoInvoiceMarker flags invoice numbers of orders shipped without one.
	NoInvoiceMarker string
	// ComplaintSiteMarker flags reasons raised through the public complaint site.
	ComplaintSiteMarker string
}

// DefaultConfig returns the configuration of the reference deployment.
func DefaultConfig() Config {
	return Config{
		GapThreshold:        2 * time.Hour,
		NoInvoiceMarker:     "SEM NF",
		ComplaintSiteMarker: "RECLAME AQUI",
	}
}

// Segment flags every record that starts a new episode and aggregates the
// episodes of each known reference. The input slice is not modified; the
// returned records keep the input order. Episodes are sorted by reference id.
//
// Records sharing a reference are ordered by timestamp with a stable sort, so
// among simultaneous records the one seen first starts the episode. Records
// with an unknown reference are segmented as one group under the same rules,
// so a burst of unidentified contacts counts once. They are left out of the
// episode table.
func Segment(records []models.EventRecord, cfg Config) ([]models.EventRecord, []models.Episode) {
	out := make([]models.EventRecord, len(records))
	copy(out, records)

	order := make([]int, len(out))
	for i := range out {
		order[i] = i
	}

	// O(n log n): stable sort by (reference, timestamp); unknowns sort first
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := &out[order[a]], &out[order[b]]
		if ka, kb := groupKey(ra.Reference), groupKey(rb.Reference); ka != kb {
			return ka < kb
		}
		return ra.Timestamp.Before(rb.Timestamp)
	})

	episodes := make([]models.Episode, 0)
	var prev *models.EventRecord
	for _, i := range order {
		rec := &out[i]
		sameReference := prev != nil && groupKey(prev.Reference) == groupKey(rec.Reference)

		if sameReference {
			gap := rec.Timestamp.Sub(prev.Timestamp)
			rec.IsNewEpisode = gap > cfg.GapThreshold || cfg.creditsSeparately(rec.ContactEvent)
		} else {
			rec.IsNewEpisode = true
		}
		prev = rec
		if !rec.Reference.Known() {
			continue
		}

		if !sameReference {
			episodes = append(episodes, models.Episode{
				ReferenceID:     rec.Reference.ID,
				FirstContact:    rec.Timestamp,
				DistinctReasons: make([]string, 0, 1),
				ReasonHistory:   make([]string, 0, 1),
				Carrier:         rec.Carrier,
				Channel:         rec.Channel,
			})
		}

		ep := &episodes[len(episodes)-1]
		ep.TotalRawContacts++
		if rec.IsNewEpisode {
			ep.EpisodeCount++
		}
		ep.LastContact = rec.Timestamp
		ep.LastReason = rec.Reason
		ep.ReasonHistory = append(ep.ReasonHistory, rec.Reason)
	}

	for i := range episodes {
		episodes[i].DistinctReasons = distinct(episodes[i].ReasonHistory)
	}
	return out, episodes
}

// groupKey is empty for every unknown reference; known ids are never empty.
func groupKey(ref models.Reference) string {
	return ref.String()
}

// creditsSeparately reports whether a repeat contact on a customer-service
// sector still counts as its own unit of work regardless of the gap.
func (c Config) creditsSeparately(ev models.ContactEvent) bool {
	if !strings.Contains(strings.ToUpper(ev.SectorLabel), "SAC") {
		return false
	}
	return containsFold(ev.InvoiceNumber, c.NoInvoiceMarker) ||
		containsFold(ev.Reason, c.ComplaintSiteMarker)
}

func containsFold(value, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(value), strings.ToUpper(marker))
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

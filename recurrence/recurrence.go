// Package recurrence classifies references by how their episodes recur and
// summarizes the cost of repeat contacts.
package recurrence

import (
	"sort"
	"strconv"
	"strings"

	"contact-metrics/models"
)

// HistorySeparator joins the reason history of a reference.
const HistorySeparator = " → "

// Config holds the classifier thresholds.
type Config struct {
	// CancellationKeywords are matched case-insensitively against the latest reason.
	CancellationKeywords []string
	// AnxiousWithinDays and AnxiousMinEpisodes define a burst of contacts.
	AnxiousWithinDays  float64
	AnxiousMinEpisodes int
	// ChronicAfterDays is exclusive: a reference open longer than this is chronic.
	ChronicAfterDays float64
	// MinutesPerExcessContact prices every contact beyond the first.
	MinutesPerExcessContact float64
	// TopN bounds the offender table. Zero or less keeps every recurring reference.
	TopN int
}

// DefaultConfig returns the thresholds of the reference deployment.
func DefaultConfig() Config {
	return Config{
		CancellationKeywords:    []string{"cancelamento", "cancellation"},
		AnxiousWithinDays:       2,
		AnxiousMinEpisodes:      3,
		ChronicAfterDays:        5,
		MinutesPerExcessContact: 15,
		TopN:                    50,
	}
}

// DaysOpen returns the span between the first and last contact in days,
// rounded to one decimal. Rounding goes through the shortest decimal form of
// the stored value, so 2.05 days (held as 2.04999...) rounds to 2.0.
func DaysOpen(ep models.Episode) float64 {
	days := ep.LastContact.Sub(ep.FirstContact).Seconds() / 86400
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(days, 'f', 1, 64), 64)
	return rounded
}

// Classify assigns a profile to one reference. Rules apply in order:
//
//  1. at most one episode: resolved first time
//  2. open AnxiousWithinDays or less with AnxiousMinEpisodes or more: anxious
//  3. open more than ChronicAfterDays: chronic
//  4. otherwise: standard rework
func Classify(ep models.Episode, cfg Config) models.RecurrenceProfile {
	days := DaysOpen(ep)

	var profile models.Profile
	switch {
	case ep.EpisodeCount <= 1:
		profile = models.ProfileResolvedFirstTime
	case days <= cfg.AnxiousWithinDays && ep.EpisodeCount >= cfg.AnxiousMinEpisodes:
		profile = models.ProfileAnxious
	case days > cfg.ChronicAfterDays:
		profile = models.ProfileChronic
	default:
		profile = models.ProfileStandardRework
	}

	risk := cfg.cancellationRisk(ep.LastReason)
	status := models.CaseInProgress
	if risk {
		status = models.CaseCancellationRisk
	}

	return models.RecurrenceProfile{
		ReferenceID:      ep.ReferenceID,
		Profile:          profile,
		EpisodeCount:     ep.EpisodeCount,
		TotalRawContacts: ep.TotalRawContacts,
		DaysOpen:         days,
		CancellationRisk: risk,
		Status:           status,
		FirstContact:     ep.FirstContact,
		LastContact:      ep.LastContact,
		LastReason:       ep.LastReason,
		Reasons:          ep.DistinctReasons,
		History:          strings.Join(ep.ReasonHistory, HistorySeparator),
		Carrier:          ep.Carrier,
		Channel:          ep.Channel,
	}
}

func (c Config) cancellationRisk(reason string) bool {
	lower := strings.ToLower(reason)
	for _, kw := range c.CancellationKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Analyze classifies every episode and builds the recurrence tables. Only
// references with more than one episode are listed, most episodes first, then
// longest open, then by reference id.
func Analyze(episodes []models.Episode, cfg Config) models.RecurrenceReport {
	summary := models.RecurrenceSummary{
		UniqueReferences: len(episodes),
		ProfileCounts:    make(map[models.Profile]int),
	}
	recurring := make([]models.RecurrenceProfile, 0)

	var rawContacts int
	var daysOpen float64
	for _, ep := range episodes {
		p := Classify(ep, cfg)
		summary.ProfileCounts[p.Profile]++
		if p.EpisodeCount <= 1 {
			continue
		}
		recurring = append(recurring, p)
		rawContacts += p.TotalRawContacts
		daysOpen += p.DaysOpen
		if p.CancellationRisk {
			summary.CancellationRiskCount++
		}
	}

	sort.SliceStable(recurring, func(i, j int) bool {
		a, b := recurring[i], recurring[j]
		if a.EpisodeCount != b.EpisodeCount {
			return a.EpisodeCount > b.EpisodeCount
		}
		if a.DaysOpen != b.DaysOpen {
			return a.DaysOpen > b.DaysOpen
		}
		return a.ReferenceID < b.ReferenceID
	})

	summary.RecurringReferences = len(recurring)
	if summary.UniqueReferences > 0 {
		summary.RecurrenceRatePercent = float64(summary.RecurringReferences) / float64(summary.UniqueReferences) * 100
	}
	if len(recurring) > 0 {
		summary.ExcessContacts = rawContacts - len(recurring)
		summary.WastedHours = float64(summary.ExcessContacts) * cfg.MinutesPerExcessContact / 60
		summary.MeanDaysOpen = daysOpen / float64(len(recurring))
	}

	top := recurring
	if cfg.TopN > 0 && len(top) > cfg.TopN {
		top = top[:cfg.TopN]
	}

	return models.RecurrenceReport{
		Summary:      summary,
		Profiles:     recurring,
		TopOffenders: top,
		ByCarrier:    rank(recurring, func(p models.RecurrenceProfile) string { return p.Carrier }),
		ByChannel:    rank(recurring, func(p models.RecurrenceProfile) string { return p.Channel }),
	}
}

// rank counts recurring references per label, largest first.
func rank(profiles []models.RecurrenceProfile, label func(models.RecurrenceProfile) string) []models.RankedCount {
	counts := make(map[string]int)
	for _, p := range profiles {
		counts[label(p)]++
	}
	return Ranked(counts)
}

// Ranked sorts label counts by count descending, then label.
func Ranked(counts map[string]int) []models.RankedCount {
	out := make([]models.RankedCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, models.RankedCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

package recurrence_test

import (
	"testing"
	"time"

	"contact-metrics/models"
	"contact-metrics/recurrence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func episode(ref string, episodes, raw int, span time.Duration, reasons ...string) models.Episode {
	last := ""
	if len(reasons) > 0 {
		last = reasons[len(reasons)-1]
	}
	return models.Episode{
		ReferenceID:      ref,
		EpisodeCount:     episodes,
		TotalRawContacts: raw,
		FirstContact:     start,
		LastContact:      start.Add(span),
		DistinctReasons:  reasons,
		ReasonHistory:    reasons,
		LastReason:       last,
		Carrier:          "Correios",
		Channel:          "Site",
	}
}

func TestClassify(t *testing.T) {
	day := 24 * time.Hour

	tests := map[string]struct {
		episode  models.Episode
		expected models.Profile
		days     float64
	}{
		"SingleEvent": {
			episode:  episode("R1", 1, 1, 0),
			expected: models.ProfileResolvedFirstTime,
			days:     0,
		},
		"OneEpisodeManyContacts": {
			episode:  episode("R1", 1, 4, 9*day),
			expected: models.ProfileResolvedFirstTime,
			days:     9,
		},
		"BurstIsAnxious": {
			episode:  episode("R1", 4, 6, 36*time.Hour),
			expected: models.ProfileAnxious,
			days:     1.5,
		},
		"LongIsChronic": {
			episode:  episode("R1", 4, 6, 6*day),
			expected: models.ProfileChronic,
			days:     6,
		},
		"TwoEpisodesQuickIsStandard": {
			episode:  episode("R1", 2, 2, day),
			expected: models.ProfileStandardRework,
			days:     1,
		},
		"AnxiousBoundaryInclusive": {
			episode:  episode("R1", 3, 3, 2*day),
			expected: models.ProfileAnxious,
			days:     2,
		},
		"ChronicBoundaryExclusive": {
			episode:  episode("R1", 2, 2, 5*day),
			expected: models.ProfileStandardRework,
			days:     5,
		},
		"RoundedBeforeComparison": {
			// 5.04 days rounds to 5.0, which is not chronic
			episode:  episode("R1", 2, 2, 5*day+time.Hour),
			expected: models.ProfileStandardRework,
			days:     5,
		},
		"HalfwayBelowAnxiousLimit": {
			// 177120s is 2.05 days, stored just below the midpoint
			episode:  episode("R1", 3, 3, 177120*time.Second),
			expected: models.ProfileAnxious,
			days:     2,
		},
		"HalfwayAboveChronicLimit": {
			// 436320s is 5.05 days, stored just below the midpoint
			episode:  episode("R1", 2, 2, 436320*time.Second),
			expected: models.ProfileStandardRework,
			days:     5,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := recurrence.Classify(tt.episode, recurrence.DefaultConfig())
			assert.Equal(t, tt.expected, got.Profile)
			assert.Equal(t, tt.days, got.DaysOpen)
		})
	}
}

func TestClassify_CancellationRisk(t *testing.T) {
	tests := map[string]struct {
		reasons  []string
		expected bool
	}{
		"LatestMatches":         {reasons: []string{"Atraso", "Pedido de CANCELLATION"}, expected: true},
		"PortugueseKeyword":     {reasons: []string{"Atraso", "Solicitou Cancelamento"}, expected: true},
		"OnlyEarlierMatches":    {reasons: []string{"cancellation", "Atraso"}, expected: false},
		"NoReasonsIsNoRisk":     {reasons: nil, expected: false},
		"UnrelatedLatestReason": {reasons: []string{"Troca"}, expected: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := recurrence.Classify(episode("R1", 2, 2, time.Hour, tt.reasons...), recurrence.DefaultConfig())
			assert.Equal(t, tt.expected, got.CancellationRisk)
			if tt.expected {
				assert.Equal(t, models.CaseCancellationRisk, got.Status)
			} else {
				assert.Equal(t, models.CaseInProgress, got.Status)
			}
		})
	}
}

func TestClassify_CustomKeywords(t *testing.T) {
	cfg := recurrence.DefaultConfig()
	cfg.CancellationKeywords = []string{"estorno"}

	got := recurrence.Classify(episode("R1", 2, 2, time.Hour, "Pediu ESTORNO"), cfg)
	assert.True(t, got.CancellationRisk)

	got = recurrence.Classify(episode("R1", 2, 2, time.Hour, "cancelamento"), cfg)
	assert.False(t, got.CancellationRisk)
}

func TestClassify_History(t *testing.T) {
	got := recurrence.Classify(episode("R1", 2, 3, time.Hour, "Atraso", "Atraso", "Extravio"), recurrence.DefaultConfig())
	assert.Equal(t, "Atraso → Atraso → Extravio", got.History)
}

func TestAnalyze(t *testing.T) {
	day := 24 * time.Hour
	episodes := []models.Episode{
		episode("A", 1, 1, 0, "Troca"),
		episode("B", 3, 5, 3*day, "Atraso", "Cancelamento"),
		episode("C", 3, 4, 7*day, "Atraso"),
		episode("D", 2, 2, day, "Atraso"),
		episode("E", 1, 3, day, "Atraso"),
	}
	episodes[3].Carrier = "Jadlog"
	episodes[3].Channel = "Mercado Livre"

	report := recurrence.Analyze(episodes, recurrence.DefaultConfig())

	require.Len(t, report.Profiles, 3)
	assert.Equal(t, []string{"C", "B", "D"}, []string{
		report.Profiles[0].ReferenceID, report.Profiles[1].ReferenceID, report.Profiles[2].ReferenceID,
	})

	s := report.Summary
	assert.Equal(t, 5, s.UniqueReferences)
	assert.Equal(t, 3, s.RecurringReferences)
	assert.InDelta(t, 60.0, s.RecurrenceRatePercent, 1e-9)
	assert.Equal(t, 8, s.ExcessContacts)
	assert.InDelta(t, 2.0, s.WastedHours, 1e-9)
	assert.InDelta(t, 11.0/3, s.MeanDaysOpen, 1e-9)
	assert.Equal(t, 1, s.CancellationRiskCount)
	assert.Equal(t, 2, s.ProfileCounts[models.ProfileResolvedFirstTime])
	assert.Equal(t, 1, s.ProfileCounts[models.ProfileChronic])
	assert.Equal(t, 2, s.ProfileCounts[models.ProfileStandardRework])

	assert.Equal(t, []models.RankedCount{{Label: "Correios", Count: 2}, {Label: "Jadlog", Count: 1}}, report.ByCarrier)
	assert.Equal(t, []models.RankedCount{{Label: "Site", Count: 2}, {Label: "Mercado Livre", Count: 1}}, report.ByChannel)
	assert.Len(t, report.TopOffenders, 3)
}

func TestAnalyze_TopN(t *testing.T) {
	var episodes []models.Episode
	for _, ref := range []string{"A", "B", "C", "D"} {
		episodes = append(episodes, episode(ref, 2, 2, time.Hour, "Atraso"))
	}

	cfg := recurrence.DefaultConfig()
	cfg.TopN = 2
	report := recurrence.Analyze(episodes, cfg)
	assert.Len(t, report.Profiles, 4)
	require.Len(t, report.TopOffenders, 2)
	assert.Equal(t, "A", report.TopOffenders[0].ReferenceID)
	assert.Equal(t, "B", report.TopOffenders[1].ReferenceID)
}

func TestAnalyze_Empty(t *testing.T) {
	report := recurrence.Analyze(nil, recurrence.DefaultConfig())
	assert.NotNil(t, report.Profiles)
	assert.Empty(t, report.Profiles)
	assert.Empty(t, report.ByCarrier)
	assert.Equal(t, 0.0, report.Summary.RecurrenceRatePercent)
	assert.Equal(t, 0.0, report.Summary.MeanDaysOpen)
	assert.Equal(t, 0, report.Summary.ExcessContacts)
}

package storage

import (
	"strings"
	"time"

	"contact-metrics/models"
)

// CapacityItem is one persisted capacity row. Items are keyed by agent so
// an agent's history is a single partition query.
type CapacityItem struct {
	AgentID            string   `dynamodbav:"AgentID" json:"agent_id"`
	RowKey             string   `dynamodbav:"RowKey" json:"row_key"`
	RunID              string   `dynamodbav:"RunID" json:"run_id"`
	Date               string   `dynamodbav:"Date" json:"date"`
	Sector             string   `dynamodbav:"Sector" json:"sector"`
	MinutesAvailable   float64  `dynamodbav:"MinutesAvailable" json:"minutes_available"`
	TargetHandleTime   float64  `dynamodbav:"TargetHandleTime" json:"target_handle_time"`
	FallbackHandleTime bool     `dynamodbav:"FallbackHandleTime" json:"fallback_handle_time"`
	TargetCount        int      `dynamodbav:"TargetCount" json:"target_count"`
	Realized           int      `dynamodbav:"Realized" json:"realized"`
	AttainmentPercent  float64  `dynamodbav:"AttainmentPercent" json:"attainment_percent"`
	MeasuredHandleTime *float64 `dynamodbav:"MeasuredHandleTime,omitempty" json:"measured_handle_time,omitempty"`
	StoredAt           string   `dynamodbav:"StoredAt" json:"stored_at"`
}

// RecurrenceItem is one persisted recurrence profile, keyed by run.
type RecurrenceItem struct {
	RunID            string  `dynamodbav:"RunID"`
	ReferenceID      string  `dynamodbav:"ReferenceID"`
	Profile          string  `dynamodbav:"Profile"`
	EpisodeCount     int     `dynamodbav:"EpisodeCount"`
	TotalRawContacts int     `dynamodbav:"TotalRawContacts"`
	DaysOpen         float64 `dynamodbav:"DaysOpen"`
	CancellationRisk bool    `dynamodbav:"CancellationRisk"`
	Status           string  `dynamodbav:"Status"`
	LastReason       string  `dynamodbav:"LastReason"`
	History          string  `dynamodbav:"History"`
	Carrier          string  `dynamodbav:"Carrier"`
	Channel          string  `dynamodbav:"Channel"`
	StoredAt         string  `dynamodbav:"StoredAt"`
}

// RowKey builds the sort key of a capacity item. Later runs over the same
// agent, day and sector overwrite earlier ones.
func RowKey(date string, sector models.Sector) string {
	return date + "#" + string(sector)
}

// CapacityItems converts capacity rows into store items.
func CapacityItems(runID string, targets []models.CapacityTarget, storedAt time.Time) []CapacityItem {
	items := make([]CapacityItem, 0, len(targets))
	stamp := storedAt.UTC().Format(time.RFC3339)
	for _, t := range targets {
		items = append(items, CapacityItem{
			AgentID:            t.AgentID,
			RowKey:             RowKey(t.Date, t.Sector),
			RunID:              runID,
			Date:               t.Date,
			Sector:             string(t.Sector),
			MinutesAvailable:   t.MinutesAvailable,
			TargetHandleTime:   t.TargetHandleTime,
			FallbackHandleTime: t.FallbackHandleTime,
			TargetCount:        t.TargetCount,
			Realized:           t.Realized,
			AttainmentPercent:  t.AttainmentPercent,
			MeasuredHandleTime: t.MeasuredHandleTime,
			StoredAt:           stamp,
		})
	}
	return items
}

// RecurrenceItems converts recurring references into store items.
func RecurrenceItems(runID string, profiles []models.RecurrenceProfile, storedAt time.Time) []RecurrenceItem {
	items := make([]RecurrenceItem, 0, len(profiles))
	stamp := storedAt.UTC().Format(time.RFC3339)
	for _, p := range profiles {
		items = append(items, RecurrenceItem{
			RunID:            runID,
			ReferenceID:      p.ReferenceID,
			Profile:          string(p.Profile),
			EpisodeCount:     p.EpisodeCount,
			TotalRawContacts: p.TotalRawContacts,
			DaysOpen:         p.DaysOpen,
			CancellationRisk: p.CancellationRisk,
			Status:           string(p.Status),
			LastReason:       p.LastReason,
			History:          p.History,
			Carrier:          p.Carrier,
			Channel:          p.Channel,
			StoredAt:         stamp,
		})
	}
	return items
}

// batches splits n items into index ranges of at most size.
func batches(n, size int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i += size {
		end := min(i+size, n)
		out = append(out, [2]int{i, end})
	}
	return out
}

func normalizeAgent(agentID string) string {
	return strings.TrimSpace(agentID)
}

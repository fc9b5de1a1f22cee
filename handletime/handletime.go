// Package handletime infers per-event work duration from the gap between an
// agent's consecutive events, since the data carries no task-end timestamp.
package handletime

import (
	"sort"
	"time"

	"contact-metrics/models"
)

// Config bounds which gaps count as handle-time samples.
type Config struct {
	// MinGap is exclusive: a gap must be strictly longer to count.
	MinGap time.Duration
	// MaxGap is inclusive.
	MaxGap time.Duration
	// MinSamples is the sample count an agent needs before its mean is reliable.
	MinSamples int
}

// DefaultConfig returns the (0.5, 40] minute window with a floor of six samples.
func DefaultConfig() Config {
	return Config{
		MinGap:     30 * time.Second,
		MaxGap:     40 * time.Minute,
		MinSamples: 6,
	}
}

// Infer sets HandleTimeMinutes on every record that has a valid sample and
// aggregates the samples per agent. The input slice is not modified and the
// returned records keep the input order. Agents are sorted by id.
//
// An agent's last event never has a sample. Gaps outside the window leave the
// sample undefined; they are not counted as zero.
func Infer(records []models.EventRecord, cfg Config) ([]models.EventRecord, []models.AgentHandleTime) {
	out := make([]models.EventRecord, len(records))
	copy(out, records)

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
		out[i].HandleTimeMinutes = nil
	}

	// O(n log n): stable sort by (agent, timestamp)
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := &out[order[a]], &out[order[b]]
		if ra.AgentID != rb.AgentID {
			return ra.AgentID < rb.AgentID
		}
		return ra.Timestamp.Before(rb.Timestamp)
	})

	agents := make([]models.AgentHandleTime, 0)
	var sum float64
	closeAgent := func() {
		if len(agents) == 0 {
			return
		}
		agent := &agents[len(agents)-1]
		if agent.SampleCount > 0 {
			mean := sum / float64(agent.SampleCount)
			agent.MeanMinutes = &mean
		}
		agent.Reliable = agent.SampleCount >= cfg.MinSamples
	}

	for pos, i := range order {
		rec := &out[i]
		if len(agents) == 0 || agents[len(agents)-1].AgentID != rec.AgentID {
			closeAgent()
			agents = append(agents, models.AgentHandleTime{AgentID: rec.AgentID})
			sum = 0
		}
		agent := &agents[len(agents)-1]
		agent.EventCount++

		if pos+1 >= len(order) {
			continue
		}
		next := &out[order[pos+1]]
		if next.AgentID != rec.AgentID {
			continue
		}
		gap := next.Timestamp.Sub(rec.Timestamp)
		if gap <= cfg.MinGap || gap > cfg.MaxGap {
			continue
		}
		minutes := gap.Minutes()
		rec.HandleTimeMinutes = &minutes
		agent.SampleCount++
		sum += minutes
	}
	closeAgent()

	return out, agents
}

// Reliable indexes the mean handle time of every reliable agent by id.
func Reliable(agents []models.AgentHandleTime) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range agents {
		if a.Reliable && a.MeanMinutes != nil {
			out[a.AgentID] = *a.MeanMinutes
		}
	}
	return out
}

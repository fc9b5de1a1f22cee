// Package capacity turns agent arrival times into daily quotas and projects
// team attainment against them.
package capacity

import (
	"math"
	"sort"
	"time"

	"contact-metrics/models"
)

// DateLayout formats the agent-day key of a capacity row.
const DateLayout = "2006-01-02"

// Policy holds the shift and productivity assumptions behind every target.
type Policy struct {
	// ShiftStart and ShiftEnd are offsets from local midnight.
	ShiftStart  time.Duration
	ShiftEnd    time.Duration
	Utilization float64
	// TargetHandleTime is the expected minutes per contact for each sector.
	TargetHandleTime        map[models.Sector]float64
	DefaultTargetHandleTime float64
}

// DefaultPolicy returns the 07:30-17:18 shift at 70% utilization.
func DefaultPolicy() Policy {
	return Policy{
		ShiftStart:  7*time.Hour + 30*time.Minute,
		ShiftEnd:    17*time.Hour + 18*time.Minute,
		Utilization: 0.70,
		TargetHandleTime: map[models.Sector]float64{
			models.SectorSAC:     5 + 23.0/60,
			models.SectorBacklog: 5 + 8.0/60,
			models.SectorOther:   5 + 23.0/60,
		},
		DefaultTargetHandleTime: 5 + 23.0/60,
	}
}

// HandleTimeFor returns the target handle time of a sector. The second value
// is true when the sector had no positive target and the default was used.
func (p Policy) HandleTimeFor(sector models.Sector) (float64, bool) {
	if tht, ok := p.TargetHandleTime[sector]; ok && tht > 0 {
		return tht, false
	}
	return p.DefaultTargetHandleTime, true
}

func (p Policy) shiftBounds(day time.Time) (time.Time, time.Time) {
	return clockOn(day, p.ShiftStart), clockOn(day, p.ShiftEnd)
}

func clockOn(day time.Time, offset time.Duration) time.Time {
	minutes := int(offset / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// TargetFor computes the quota of an agent arriving at the given time.
//
//	effective_start   = max(shift_start, arrival)
//	minutes_available = max(0, shift_end - effective_start)
//	target            = floor(minutes_available * utilization / handle_time)
//
// Arrival is taken to the minute. A non-positive handle time yields a zero
// target rather than a division.
func TargetFor(arrival time.Time, sector models.Sector, p Policy) models.CapacityTarget {
	shiftStart, shiftEnd := p.shiftBounds(arrival)

	effective := arrival.Truncate(time.Minute)
	if effective.Before(shiftStart) {
		effective = shiftStart
	}

	available := shiftEnd.Sub(effective).Minutes()
	if available < 0 {
		available = 0
	}
	productive := available * p.Utilization

	tht, fallback := p.HandleTimeFor(sector)
	target := 0
	if tht > 0 {
		target = int(math.Floor(productive / tht))
	}

	return models.CapacityTarget{
		Date:               arrival.Format(DateLayout),
		Sector:             sector,
		Arrival:            arrival,
		EffectiveStart:     effective,
		MinutesAvailable:   available,
		ProductiveMinutes:  productive,
		TargetHandleTime:   tht,
		FallbackHandleTime: fallback,
		TargetCount:        target,
	}
}

type agentDay struct {
	agent  string
	date   string
	sector models.Sector
}

// Compute builds one capacity row per agent, day and sector. Arrival is the
// first event of the group and Realized counts the new episodes in it.
// Reliable measured handle times are attached when available. Rows are
// sorted by date, agent and sector.
func Compute(records []models.EventRecord, handleTimes []models.AgentHandleTime, p Policy) []models.CapacityTarget {
	measured := make(map[string]float64)
	for _, a := range handleTimes {
		if a.Reliable && a.MeanMinutes != nil {
			measured[a.AgentID] = *a.MeanMinutes
		}
	}

	arrivals := make(map[agentDay]time.Time)
	realized := make(map[agentDay]int)
	keys := make([]agentDay, 0)
	for _, rec := range records {
		key := agentDay{agent: rec.AgentID, date: rec.Timestamp.Format(DateLayout), sector: rec.Sector}
		first, seen := arrivals[key]
		if !seen {
			keys = append(keys, key)
		}
		if !seen || rec.Timestamp.Before(first) {
			arrivals[key] = rec.Timestamp
		}
		if rec.IsNewEpisode {
			realized[key]++
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		if keys[i].agent != keys[j].agent {
			return keys[i].agent < keys[j].agent
		}
		return sectorRank(keys[i].sector) < sectorRank(keys[j].sector)
	})

	targets := make([]models.CapacityTarget, 0, len(keys))
	for _, key := range keys {
		t := TargetFor(arrivals[key], key.sector, p)
		t.AgentID = key.agent
		t.Realized = realized[key]
		t.AttainmentPercent = percent(t.Realized, t.TargetCount)
		if mean, ok := measured[key.agent]; ok {
			m := mean
			t.MeasuredHandleTime = &m
		}
		targets = append(targets, t)
	}
	return targets
}

func sectorRank(s models.Sector) int {
	for i, known := range models.Sectors {
		if known == s {
			return i
		}
	}
	return len(models.Sectors)
}

func percent(realized, target int) float64 {
	if target <= 0 {
		return 0
	}
	return float64(realized) / float64(target) * 100
}

package capacity

import (
	"time"

	"contact-metrics/models"
)

// Clock carries the only wall-clock input of the engine.
type Clock struct {
	// Now is the current time. The zero value disables projection.
	Now time.Time
	// PeriodEnd is the last day of the queried period. The zero value means today.
	PeriodEnd time.Time
}

// projecting reports whether the period reaches the current day, in which case
// realized counts are extrapolated to the end of the shift.
func (c Clock) projecting() bool {
	if c.Now.IsZero() {
		return false
	}
	if c.PeriodEnd.IsZero() {
		return true
	}
	end := c.PeriodEnd.In(c.Now.Location()).Format(DateLayout)
	return end >= c.Now.Format(DateLayout)
}

// Project aggregates capacity rows and realized episodes per sector.
//
// Realized is the number of new episodes among the records of a sector and
// the team target is the sum of the individual targets. When the period
// reaches today the remaining shift is extrapolated:
//
//	projected = realized + active_agents * hours_remaining * 60 * utilization / handle_time
//
// where active agents are today's rows with a positive target. Otherwise the
// realized count is compared with the target directly. Sectors with a zero
// target report StatusNoTarget.
func Project(targets []models.CapacityTarget, records []models.EventRecord, p Policy, clock Clock) ([]models.SectorSummary, models.TeamSummary) {
	type totals struct {
		target   int
		realized int
	}
	bySector := make(map[models.Sector]*totals)
	get := func(s models.Sector) *totals {
		t, ok := bySector[s]
		if !ok {
			t = &totals{}
			bySector[s] = t
		}
		return t
	}

	for _, t := range targets {
		get(t.Sector).target += t.TargetCount
	}
	for _, rec := range records {
		t := get(rec.Sector)
		if rec.IsNewEpisode {
			t.realized++
		}
	}

	projecting := clock.projecting()
	var hoursRemaining float64
	today := ""
	if projecting {
		_, shiftEnd := p.shiftBounds(clock.Now)
		if remaining := shiftEnd.Sub(clock.Now).Hours(); remaining > 0 {
			hoursRemaining = remaining
		}
		today = clock.Now.Format(DateLayout)
	}

	summaries := make([]models.SectorSummary, 0, len(bySector))
	team := models.TeamSummary{}
	var teamProjected float64

	for _, sector := range orderedSectors(bySector) {
		tot := bySector[sector]
		summary := models.SectorSummary{
			Sector:            sector,
			TeamTarget:        tot.target,
			TeamRealized:      tot.realized,
			AttainmentPercent: percent(tot.realized, tot.target),
		}

		compared := float64(tot.realized)
		if projecting {
			active := 0
			for _, t := range targets {
				if t.Sector == sector && t.Date == today && t.TargetCount > 0 {
					active++
				}
			}
			summary.ActiveAgents = active

			var additional float64
			if tht, _ := p.HandleTimeFor(sector); tht > 0 {
				additional = float64(active) * hoursRemaining * 60 * p.Utilization / tht
			}
			compared = float64(tot.realized) + additional
			summary.Projection = &models.Projection{
				Now:             clock.Now,
				HoursRemaining:  hoursRemaining,
				ActiveAgents:    active,
				AdditionalCount: additional,
				ProjectedTotal:  compared,
			}
		} else {
			summary.ActiveAgents = activeAgents(targets, sector)
		}
		summary.Status = status(compared, tot.target)

		team.TeamTarget += tot.target
		team.TeamRealized += tot.realized
		teamProjected += compared
		summaries = append(summaries, summary)
	}

	team.AttainmentPercent = percent(team.TeamRealized, team.TeamTarget)
	if projecting {
		team.ProjectedTotal = &teamProjected
	}
	team.Status = status(teamProjected, team.TeamTarget)
	return summaries, team
}

func status(value float64, target int) models.AttainmentStatus {
	switch {
	case target <= 0:
		return models.StatusNoTarget
	case value >= float64(target):
		return models.StatusOnTrack
	default:
		return models.StatusBehind
	}
}

// activeAgents counts distinct agents with a positive target in a sector.
func activeAgents(targets []models.CapacityTarget, sector models.Sector) int {
	agents := make(map[string]struct{})
	for _, t := range targets {
		if t.Sector == sector && t.TargetCount > 0 {
			agents[t.AgentID] = struct{}{}
		}
	}
	return len(agents)
}

func orderedSectors[V any](m map[models.Sector]V) []models.Sector {
	out := make([]models.Sector, 0, len(m))
	for _, s := range models.Sectors {
		if _, ok := m[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

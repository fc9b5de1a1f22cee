package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contact-metrics/models"
)

// Table names accepted by FormatCSV.
const (
	TableEvents      = "events"
	TableEpisodes    = "episodes"
	TableHandleTimes = "handle_times"
	TableCapacity    = "capacity"
	TableSectors     = "sectors"
	TableRecurrence  = "recurrence"
	TableOffenders   = "offenders"
	TableChannels    = "channels"
)

// Tables lists every exportable table.
var Tables = []string{
	TableEvents, TableEpisodes, TableHandleTimes, TableCapacity,
	TableSectors, TableRecurrence, TableOffenders, TableChannels,
}

// ErrUnknownTable is returned for a table name not in Tables.
var ErrUnknownTable = errors.New("unknown table")

// FormatText returns a human-readable summary of the report.
func FormatText(report *models.Report) string {
	var sb strings.Builder

	in := report.Input
	sb.WriteString(fmt.Sprintf("INPUT : rows=%d dropped=%d events=%d filtered=%d unknown_references=%d\n",
		in.TotalRows, in.DroppedRows, in.Events, in.FilteredEvents, in.UnknownReferences))

	team := report.Team
	sb.WriteString(fmt.Sprintf("TEAM : target=%d realized=%d attainment=%s%% status=%s%s\n",
		team.TeamTarget, team.TeamRealized, decimal(team.AttainmentPercent, 1), team.Status,
		projectedSuffix(team.ProjectedTotal)))

	for _, s := range report.Sectors {
		var projected *float64
		if s.Projection != nil {
			projected = &s.Projection.ProjectedTotal
		}
		sb.WriteString(fmt.Sprintf("SECTOR %s : target=%d realized=%d active=%d attainment=%s%% status=%s%s\n",
			s.Sector, s.TeamTarget, s.TeamRealized, s.ActiveAgents, decimal(s.AttainmentPercent, 1), s.Status,
			projectedSuffix(projected)))
	}

	sb.WriteString("\nCAPACITY\n")
	if len(report.Capacity) == 0 {
		sb.WriteString("  none\n")
	}
	for _, c := range report.Capacity {
		sb.WriteString(fmt.Sprintf("  %s %s [%s] arrival=%s available=%s target=%d realized=%d (%s%%)\n",
			c.Date, c.AgentID, c.Sector, c.Arrival.Format("15:04"), decimal(c.MinutesAvailable, 0),
			c.TargetCount, c.Realized, decimal(c.AttainmentPercent, 1)))
		if c.FallbackHandleTime {
			sb.WriteString(fmt.Sprintf("    ⚠️  default target handle time used: %s min\n", decimal(c.TargetHandleTime, 2)))
		}
	}

	sb.WriteString("\nHANDLE TIME\n")
	if len(report.HandleTimes) == 0 {
		sb.WriteString("  none\n")
	}
	for _, a := range report.HandleTimes {
		mean := "n/a"
		if a.MeanMinutes != nil {
			mean = decimal(*a.MeanMinutes, 2) + " min"
		}
		line := fmt.Sprintf("  %s : mean=%s samples=%d events=%d", a.AgentID, mean, a.SampleCount, a.EventCount)
		if !a.Reliable {
			line += " ⚠️  insufficient sample"
		}
		sb.WriteString(line + "\n")
	}

	rs := report.Recurrence.Summary
	sb.WriteString(fmt.Sprintf("\nRECURRENCE : unique=%d recurring=%d rate=%s%% excess_contacts=%d wasted_hours=%s mean_days_open=%s cancellation_risk=%d\n",
		rs.UniqueReferences, rs.RecurringReferences, decimal(rs.RecurrenceRatePercent, 1), rs.ExcessContacts,
		decimal(rs.WastedHours, 1), decimal(rs.MeanDaysOpen, 1), rs.CancellationRiskCount))
	for _, p := range report.Recurrence.TopOffenders {
		sb.WriteString(fmt.Sprintf("  %s [%s] episodes=%d contacts=%d days_open=%s status=%s history=%s\n",
			p.ReferenceID, p.Profile, p.EpisodeCount, p.TotalRawContacts, decimal(p.DaysOpen, 1), p.Status, p.History))
	}
	sb.WriteString(fmt.Sprintf("  by carrier: %s\n", rankedList(report.Recurrence.ByCarrier)))
	sb.WriteString(fmt.Sprintf("  by channel: %s\n", rankedList(report.Recurrence.ByChannel)))

	sb.WriteString("\nCHANNELS\n")
	if len(report.Channels) == 0 {
		sb.WriteString("  none\n")
	}
	for _, c := range report.Channels {
		sb.WriteString(fmt.Sprintf("  %s : new_episodes=%d top_reasons=[%s]\n", c.Channel, c.NewEpisodes, rankedList(c.TopReasons)))
	}

	return sb.String()
}

// FormatJSON returns the JSON representation of the report
func FormatJSON(report *models.Report) (string, error) {
	jsonBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(jsonBytes), nil
}

// FormatCSV returns one table of the report as delimited text.
func FormatCSV(report *models.Report, table string, comma rune) (string, error) {
	header, rows, err := prepareTable(report, table)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	if comma != 0 {
		writer.Comma = comma
	}

	writer.Write(header)
	for _, row := range rows {
		writer.Write(row)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("write %s table: %w", table, err)
	}
	return sb.String(), nil
}

// prepareTable flattens one report table into a header and string rows
func prepareTable(report *models.Report, table string) ([]string, [][]string, error) {
	var rows [][]string

	switch table {
	case TableEvents:
		for _, e := range report.Events {
			rows = append(rows, []string{
				timestamp(e.Timestamp), e.Reference.String(), string(e.Reference.Source), e.AgentID,
				e.SectorLabel, string(e.Sector), e.Reason, e.CRMReason, e.Carrier, e.Channel,
				strconv.FormatBool(e.IsNewEpisode), optional(e.HandleTimeMinutes, 2),
			})
		}
		return []string{
			"timestamp", "reference_id", "reference_source", "agent_id", "sector_label", "sector",
			"reason", "crm_reason", "carrier", "channel", "is_new_episode", "handle_time_minutes",
		}, rows, nil

	case TableEpisodes:
		for _, e := range report.Episodes {
			rows = append(rows, []string{
				e.ReferenceID, strconv.Itoa(e.EpisodeCount), strconv.Itoa(e.TotalRawContacts),
				timestamp(e.FirstContact), timestamp(e.LastContact),
				strings.Join(e.DistinctReasons, ", "), e.LastReason, e.Carrier, e.Channel,
			})
		}
		return []string{
			"reference_id", "episode_count", "total_raw_contacts", "first_contact", "last_contact",
			"distinct_reasons", "last_reason", "carrier", "channel",
		}, rows, nil

	case TableHandleTimes:
		for _, a := range report.HandleTimes {
			rows = append(rows, []string{
				a.AgentID, strconv.Itoa(a.EventCount), strconv.Itoa(a.SampleCount),
				optional(a.MeanMinutes, 2), strconv.FormatBool(a.Reliable),
			})
		}
		return []string{"agent_id", "event_count", "sample_count", "mean_minutes", "reliable"}, rows, nil

	case TableCapacity:
		for _, c := range report.Capacity {
			rows = append(rows, []string{
				c.Date, c.AgentID, string(c.Sector), timestamp(c.Arrival), timestamp(c.EffectiveStart),
				decimal(c.MinutesAvailable, 2), decimal(c.ProductiveMinutes, 2), decimal(c.TargetHandleTime, 4),
				strconv.FormatBool(c.FallbackHandleTime), strconv.Itoa(c.TargetCount), strconv.Itoa(c.Realized),
				decimal(c.AttainmentPercent, 1), optional(c.MeasuredHandleTime, 2),
			})
		}
		return []string{
			"date", "agent_id", "sector", "arrival", "effective_start", "minutes_available",
			"productive_minutes", "target_handle_time", "fallback_handle_time", "target_count",
			"realized", "attainment_percent", "measured_handle_time",
		}, rows, nil

	case TableSectors:
		for _, s := range report.Sectors {
			projected, remaining := "", ""
			if s.Projection != nil {
				projected = decimal(s.Projection.ProjectedTotal, 1)
				remaining = decimal(s.Projection.HoursRemaining, 2)
			}
			rows = append(rows, []string{
				string(s.Sector), strconv.Itoa(s.TeamTarget), strconv.Itoa(s.TeamRealized),
				strconv.Itoa(s.ActiveAgents), decimal(s.AttainmentPercent, 1), remaining, projected, string(s.Status),
			})
		}
		return []string{
			"sector", "team_target", "team_realized", "active_agents", "attainment_percent",
			"hours_remaining", "projected_total", "status",
		}, rows, nil

	case TableRecurrence, TableOffenders:
		profiles := report.Recurrence.Profiles
		if table == TableOffenders {
			profiles = report.Recurrence.TopOffenders
		}
		for _, p := range profiles {
			rows = append(rows, []string{
				p.ReferenceID, string(p.Profile), strconv.Itoa(p.EpisodeCount), strconv.Itoa(p.TotalRawContacts),
				decimal(p.DaysOpen, 1), strconv.FormatBool(p.CancellationRisk), string(p.Status),
				p.LastReason, strings.Join(p.Reasons, ", "), p.History, p.Carrier, p.Channel,
			})
		}
		return []string{
			"reference_id", "profile", "episode_count", "total_raw_contacts", "days_open",
			"cancellation_risk", "status", "last_reason", "reasons", "history", "carrier", "channel",
		}, rows, nil

	case TableChannels:
		for _, c := range report.Channels {
			rows = append(rows, []string{c.Channel, strconv.Itoa(c.NewEpisodes), rankedList(c.TopReasons)})
		}
		return []string{"channel", "new_episodes", "top_reasons"}, rows, nil
	}

	return nil, nil, fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownTable, table, strings.Join(Tables, ", "))
}

func decimal(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

// optional renders an undefined value as an empty field.
func optional(v *float64, places int) string {
	if v == nil {
		return ""
	}
	return decimal(*v, places)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func projectedSuffix(projected *float64) string {
	if projected == nil {
		return ""
	}
	return " projected=" + decimal(*projected, 1)
}

func rankedList(counts []models.RankedCount) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Label, c.Count))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// ParseDelimiter reads a single-character delimiter. "tab" and "\t" select a tab.
func ParseDelimiter(value string) (rune, error) {
	switch value {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	runes := []rune(value)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\r' || runes[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", value)
	}
	return runes[0], nil
}

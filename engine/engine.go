// Package engine runs the full metric pipeline over a set of contact events:
// segmentation, handle-time inference, capacity targets with projection, and
// recurrence classification. Every run recomputes all tables from scratch.
package engine

import (
	"fmt"
	"sync"
	"time"

	"contact-metrics/capacity"
	"contact-metrics/config"
	"contact-metrics/episode"
	"contact-metrics/handletime"
	"contact-metrics/metrics"
	"contact-metrics/models"
	"contact-metrics/parser"
	"contact-metrics/recurrence"

	"github.com/rs/zerolog"
)

// Settings gathers the configuration of every stage.
type Settings struct {
	Segmentation episode.Config
	HandleTime   handletime.Config
	Capacity     capacity.Policy
	Recurrence   recurrence.Config
	// TopReasons bounds the reasons listed per channel.
	TopReasons int
}

// DefaultSettings returns the settings of the reference deployment.
func DefaultSettings() Settings {
	return Settings{
		Segmentation: episode.DefaultConfig(),
		HandleTime:   handletime.DefaultConfig(),
		Capacity:     capacity.DefaultPolicy(),
		Recurrence:   recurrence.DefaultConfig(),
		TopReasons:   5,
	}
}

// SettingsFromConfig maps loaded configuration onto stage settings.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	start, err := config.ParseClock(cfg.Capacity.ShiftStart)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid shift start: %w", err)
	}
	end, err := config.ParseClock(cfg.Capacity.ShiftEnd)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid shift end: %w", err)
	}

	targets := make(map[models.Sector]float64, len(cfg.Capacity.TargetHandleTime))
	for sector, minutes := range cfg.Capacity.TargetHandleTime {
		targets[models.ParseSector(string(sector))] = minutes
	}

	s := DefaultSettings()
	s.Segmentation = episode.Config{
		GapThreshold:        time.Duration(cfg.Segmentation.GapThresholdHours * float64(time.Hour)),
		NoInvoiceMarker:     cfg.Segmentation.NoInvoiceMarker,
		ComplaintSiteMarker: cfg.Segmentation.ComplaintSiteMarker,
	}
	s.HandleTime = handletime.Config{
		MinGap:     time.Duration(cfg.HandleTime.MinMinutes * float64(time.Minute)),
		MaxGap:     time.Duration(cfg.HandleTime.MaxMinutes * float64(time.Minute)),
		MinSamples: cfg.HandleTime.MinSamples,
	}
	s.Capacity = capacity.Policy{
		ShiftStart:              start,
		ShiftEnd:                end,
		Utilization:             cfg.Capacity.Utilization,
		TargetHandleTime:        targets,
		DefaultTargetHandleTime: cfg.Capacity.DefaultTargetHandleTime,
	}
	s.Recurrence = recurrence.Config{
		CancellationKeywords:    cfg.Recurrence.CancellationKeywords,
		AnxiousWithinDays:       cfg.Recurrence.AnxiousWithinDays,
		AnxiousMinEpisodes:      cfg.Recurrence.AnxiousMinEpisodes,
		ChronicAfterDays:        cfg.Recurrence.ChronicAfterDays,
		MinutesPerExcessContact: cfg.Recurrence.MinutesPerExcessContact,
		TopN:                    cfg.Recurrence.TopN,
	}
	return s, nil
}

// Query selects the events of a run and carries the current time.
type Query struct {
	Filter Filter
	// Now is the current time used for projection. The zero value disables projection.
	Now time.Time
	// PeriodEnd defaults to Filter.To, then to the latest event.
	PeriodEnd time.Time
}

// Engine computes reports. It holds no per-run state and is safe for
// concurrent use. The run gauges in package metrics describe the last
// completed run.
type Engine struct {
	settings Settings
	logger   zerolog.Logger
}

// New creates an engine with the given settings.
func New(settings Settings, logger zerolog.Logger) *Engine {
	return &Engine{
		settings: settings,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Settings returns the settings the engine was built with.
func (e *Engine) Settings() Settings {
	return e.settings
}

// RunParsed runs the pipeline on a parse result, carrying its row counts into
// the report.
func (e *Engine) RunParsed(res *parser.Result, q Query) *models.Report {
	if len(res.Dropped) > 0 {
		e.logger.Warn().
			Int("dropped", len(res.Dropped)).
			Int("first_line", res.Dropped[0].Line).
			Str("first_reason", res.Dropped[0].Reason).
			Msg("dropped unparseable rows")
	}
	report := e.Run(res.Events, q)
	report.Input.TotalRows = res.TotalRows
	report.Input.DroppedRows = len(res.Dropped)
	return report
}

// Run computes every output table for the events matching the query.
func (e *Engine) Run(events []models.ContactEvent, q Query) *models.Report {
	start := time.Now()

	records := make([]models.EventRecord, 0, len(events))
	unknown := 0
	for _, ev := range events {
		if !q.Filter.Match(ev) {
			continue
		}
		if !ev.Reference.Known() {
			unknown++
		}
		records = append(records, models.EventRecord{ContactEvent: ev})
	}

	records, episodes := episode.Segment(records, e.settings.Segmentation)
	records, handleTimes := handletime.Infer(records, e.settings.HandleTime)
	targets := capacity.Compute(records, handleTimes, e.settings.Capacity)

	clock := capacity.Clock{Now: q.Now, PeriodEnd: q.periodEnd(records)}
	sectors, team := capacity.Project(targets, records, e.settings.Capacity, clock)
	recurrenceReport := recurrence.Analyze(episodes, e.settings.Recurrence)

	report := &models.Report{
		Input: models.InputSummary{
			TotalRows:         len(events),
			Events:            len(events),
			FilteredEvents:    len(records),
			UnknownReferences: unknown,
		},
		Events:      records,
		Episodes:    episodes,
		HandleTimes: handleTimes,
		Capacity:    targets,
		Sectors:     sectors,
		Team:        team,
		Recurrence:  recurrenceReport,
		Channels:    episode.ChannelVolumes(records, e.settings.TopReasons),
	}

	e.observe(report)
	metrics.EngineDurationSeconds.Observe(time.Since(start).Seconds())

	e.logger.Info().
		Int("events", len(events)).
		Int("filtered", len(records)).
		Int("episodes", len(episodes)).
		Int("agents", len(handleTimes)).
		Int("recurring", recurrenceReport.Summary.RecurringReferences).
		Str("team_status", string(team.Status)).
		Msg("report computed")
	return report
}

// publishMu makes resetting and setting the run gauges one step, so
// concurrent runs never leave gauges from two different reports.
var publishMu sync.Mutex

// observe logs degenerate inputs and publishes run metrics.
func (e *Engine) observe(report *models.Report) {
	publishMu.Lock()
	defer publishMu.Unlock()

	metrics.ResetRunGauges()
	metrics.EngineRunsTotal.Inc()
	metrics.EngineEventsProcessed.Observe(float64(len(report.Events)))

	fallbacks := make(map[models.Sector]int)
	for _, t := range report.Capacity {
		if t.FallbackHandleTime {
			fallbacks[t.Sector]++
		}
	}
	for _, sector := range models.Sectors {
		n, ok := fallbacks[sector]
		if !ok {
			continue
		}
		metrics.CapacityFallbacksTotal.WithLabelValues(string(sector)).Add(float64(n))
		tht, _ := e.settings.Capacity.HandleTimeFor(sector)
		e.logger.Warn().
			Str("sector", string(sector)).
			Int("rows", n).
			Float64("default_handle_time", tht).
			Msg("no positive target handle time for sector, using default")
	}

	unreliable := 0
	for _, a := range report.HandleTimes {
		if !a.Reliable {
			unreliable++
		}
	}
	metrics.UnreliableAgents.Set(float64(unreliable))
	if unreliable > 0 {
		e.logger.Debug().
			Int("agents", unreliable).
			Int("min_samples", e.settings.HandleTime.MinSamples).
			Msg("agents below handle-time sample floor")
	}

	behind := 0
	for _, s := range report.Sectors {
		metrics.TeamTarget.WithLabelValues(string(s.Sector)).Set(float64(s.TeamTarget))
		metrics.TeamRealized.WithLabelValues(string(s.Sector)).Set(float64(s.TeamRealized))
		if s.Status == models.StatusBehind {
			behind++
		}
	}
	metrics.SectorsBehind.Set(float64(behind))

	summary := report.Recurrence.Summary
	metrics.RecurringReferences.Set(float64(summary.RecurringReferences))
	metrics.RecurrenceRatePercent.Set(summary.RecurrenceRatePercent)
	metrics.CancellationRiskReferences.Set(float64(summary.CancellationRiskCount))
	metrics.WastedHours.Set(summary.WastedHours)
	for profile, n := range summary.ProfileCounts {
		metrics.ReferencesByProfile.WithLabelValues(string(profile)).Set(float64(n))
	}
}

func (q Query) periodEnd(records []models.EventRecord) time.Time {
	if !q.PeriodEnd.IsZero() {
		return q.PeriodEnd
	}
	if !q.Filter.To.IsZero() {
		return q.Filter.To
	}
	var latest time.Time
	for _, r := range records {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return latest
}

package models

import (
	"strings"
	"time"
)

// Sector is the operational sector category an event belongs to.
// It is resolved once at ingestion from the free-text sector label.
type Sector string

const (
	SectorSAC     Sector = "sac"
	SectorBacklog Sector = "backlog"
	SectorOther   Sector = "other"
)

// Sectors lists every category in reporting order.
var Sectors = []Sector{SectorSAC, SectorBacklog, SectorOther}

// ResolveSector maps a sector label onto its category.
// Labels mentioning "PEND" or "ÊNCIA" are backlog (Pendência) work; labels
// mentioning "SAC" are customer service; anything else is other.
func ResolveSector(label string) Sector {
	upper := strings.ToUpper(label)
	switch {
	case strings.Contains(upper, "PEND"), strings.Contains(upper, "ÊNCIA"):
		return SectorBacklog
	case strings.Contains(upper, "SAC"):
		return SectorSAC
	default:
		return SectorOther
	}
}

// ParseSector accepts a category name ("sac", "backlog", "other") or any
// sector label and returns the matching category.
func ParseSector(value string) Sector {
	switch Sector(strings.ToLower(strings.TrimSpace(value))) {
	case SectorSAC:
		return SectorSAC
	case SectorBacklog:
		return SectorBacklog
	case SectorOther:
		return SectorOther
	}
	return ResolveSector(value)
}

// ReferenceSource records which input field a reference was derived from.
type ReferenceSource string

const (
	ReferenceFromOrder   ReferenceSource = "order"
	ReferenceFromInvoice ReferenceSource = "invoice"
	ReferenceUnknown     ReferenceSource = "unknown"
)

// Reference identifies the customer issue an event belongs to.
// The zero value is the unknown reference.
type Reference struct {
	ID     string          `json:"id"`
	Source ReferenceSource `json:"source"`
}

// NewReference derives a reference from the order number, falling back to
// the invoice number. Empty values and the unknown label never become ids.
func NewReference(order, invoice, unknownLabel string) Reference {
	if isKnown(order, unknownLabel) {
		return Reference{ID: strings.TrimSpace(order), Source: ReferenceFromOrder}
	}
	if isKnown(invoice, unknownLabel) {
		return Reference{ID: strings.TrimSpace(invoice), Source: ReferenceFromInvoice}
	}
	return Reference{Source: ReferenceUnknown}
}

// Known reports whether the reference can be grouped with other events.
func (r Reference) Known() bool {
	return r.ID != "" && r.Source != ReferenceUnknown
}

func (r Reference) String() string {
	if !r.Known() {
		return ""
	}
	return r.ID
}

func isKnown(value, unknownLabel string) bool {
	v := strings.TrimSpace(value)
	return v != "" && !strings.EqualFold(v, strings.TrimSpace(unknownLabel))
}

// ContactEvent is one normalized interaction record.
type ContactEvent struct {
	// Line is the source line the event was read from (0 when built in code).
	Line          int       `json:"line"`
	Timestamp     time.Time `json:"timestamp"`
	Reference     Reference `json:"reference"`
	OrderNumber   string    `json:"order_number"`
	InvoiceNumber string    `json:"invoice_number"`
	AgentID       string    `json:"agent_id"`
	SectorLabel   string    `json:"sector_label"`
	Sector        Sector    `json:"sector"`
	Channel       string    `json:"channel"`
	Carrier       string    `json:"carrier"`
	Reason        string    `json:"reason"`
	CRMReason     string    `json:"crm_reason"`
}

// EventRecord is a contact event annotated by the engines.
type EventRecord struct {
	ContactEvent
	IsNewEpisode bool `json:"is_new_episode"`
	// HandleTimeMinutes is nil when no valid sample exists for the event.
	HandleTimeMinutes *float64 `json:"handle_time_minutes"`
}

// Episode aggregates every event of one known reference.
type Episode struct {
	ReferenceID      string    `json:"reference_id"`
	EpisodeCount     int       `json:"episode_count"`
	TotalRawContacts int       `json:"total_raw_contacts"`
	FirstContact     time.Time `json:"first_contact"`
	LastContact      time.Time `json:"last_contact"`
	DistinctReasons  []string  `json:"distinct_reasons"`
	LastReason       string    `json:"last_reason"`
	// ReasonHistory holds the reasons in chronological order, one per event.
	ReasonHistory []string `json:"reason_history"`
	Carrier       string   `json:"carrier"`
	Channel       string   `json:"channel"`
}

// AgentHandleTime is the handle-time aggregate of a single agent.
type AgentHandleTime struct {
	AgentID     string `json:"agent_id"`
	EventCount  int    `json:"event_count"`
	SampleCount int    `json:"sample_count"`
	// MeanMinutes is nil when the agent has no valid sample.
	MeanMinutes *float64 `json:"mean_minutes"`
	// Reliable is false while SampleCount is below the configured minimum.
	Reliable bool `json:"reliable"`
}

// CapacityTarget is the target of one agent on one day in one sector.
type CapacityTarget struct {
	AgentID           string    `json:"agent_id"`
	Date              string    `json:"date"`
	Sector            Sector    `json:"sector"`
	Arrival           time.Time `json:"arrival"`
	EffectiveStart    time.Time `json:"effective_start"`
	MinutesAvailable  float64   `json:"minutes_available"`
	ProductiveMinutes float64   `json:"productive_minutes"`
	TargetHandleTime  float64   `json:"target_handle_time"`
	// FallbackHandleTime is set when the sector target was missing or not positive.
	FallbackHandleTime bool    `json:"fallback_handle_time"`
	TargetCount        int     `json:"target_count"`
	Realized           int     `json:"realized"`
	AttainmentPercent  float64 `json:"attainment_percent"`
	// MeasuredHandleTime is only set for agents with a reliable sample.
	MeasuredHandleTime *float64 `json:"measured_handle_time,omitempty"`
}

// AttainmentStatus is the verdict of a sector or team against its target.
type AttainmentStatus string

const (
	StatusOnTrack  AttainmentStatus = "on_track"
	StatusBehind   AttainmentStatus = "behind"
	StatusNoTarget AttainmentStatus = "no_target"
)

// Projection extrapolates the remaining shift on the current day.
type Projection struct {
	Now             time.Time `json:"now"`
	HoursRemaining  float64   `json:"hours_remaining"`
	ActiveAgents    int       `json:"active_agents"`
	AdditionalCount float64   `json:"additional_count"`
	ProjectedTotal  float64   `json:"projected_total"`
}

// SectorSummary is the team aggregate for one sector category.
type SectorSummary struct {
	Sector            Sector           `json:"sector"`
	TeamTarget        int              `json:"team_target"`
	TeamRealized      int              `json:"team_realized"`
	ActiveAgents      int              `json:"active_agents"`
	AttainmentPercent float64          `json:"attainment_percent"`
	Projection        *Projection      `json:"projection,omitempty"`
	Status            AttainmentStatus `json:"status"`
}

// TeamSummary sums every sector.
type TeamSummary struct {
	TeamTarget        int              `json:"team_target"`
	TeamRealized      int              `json:"team_realized"`
	AttainmentPercent float64          `json:"attainment_percent"`
	ProjectedTotal    *float64         `json:"projected_total,omitempty"`
	Status            AttainmentStatus `json:"status"`
}

// Profile is the recurrence behaviour class of a reference.
type Profile string

const (
	ProfileResolvedFirstTime Profile = "resolved_first_time"
	ProfileAnxious           Profile = "anxious"
	ProfileChronic           Profile = "chronic"
	ProfileStandardRework    Profile = "standard_rework"
)

// CaseStatus labels how a recurring reference should be handled.
type CaseStatus string

const (
	CaseCancellationRisk CaseStatus = "cancellation_risk"
	CaseInProgress       CaseStatus = "in_progress"
)

// RecurrenceProfile classifies one reference.
type RecurrenceProfile struct {
	ReferenceID      string     `json:"reference_id"`
	Profile          Profile    `json:"profile"`
	EpisodeCount     int        `json:"episode_count"`
	TotalRawContacts int        `json:"total_raw_contacts"`
	DaysOpen         float64    `json:"days_open"`
	CancellationRisk bool       `json:"cancellation_risk"`
	Status           CaseStatus `json:"status"`
	FirstContact     time.Time  `json:"first_contact"`
	LastContact      time.Time  `json:"last_contact"`
	LastReason       string     `json:"last_reason"`
	Reasons          []string   `json:"reasons"`
	History          string     `json:"history"`
	Carrier          string     `json:"carrier"`
	Channel          string     `json:"channel"`
}

// RankedCount is a label with the number of recurring references behind it.
type RankedCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RecurrenceSummary holds the recurrence KPIs.
type RecurrenceSummary struct {
	UniqueReferences      int             `json:"unique_references"`
	RecurringReferences   int             `json:"recurring_references"`
	RecurrenceRatePercent float64         `json:"recurrence_rate_percent"`
	ExcessContacts        int             `json:"excess_contacts"`
	WastedHours           float64         `json:"wasted_hours"`
	MeanDaysOpen          float64         `json:"mean_days_open"`
	CancellationRiskCount int             `json:"cancellation_risk_count"`
	ProfileCounts         map[Profile]int `json:"profile_counts"`
}

// RecurrenceReport is the classifier output.
type RecurrenceReport struct {
	Summary RecurrenceSummary `json:"summary"`
	// Profiles holds references with more than one episode, most episodes first.
	Profiles     []RecurrenceProfile `json:"profiles"`
	TopOffenders []RecurrenceProfile `json:"top_offenders"`
	ByCarrier    []RankedCount       `json:"by_carrier"`
	ByChannel    []RankedCount       `json:"by_channel"`
}

// ChannelVolume summarizes new episodes reaching a channel.
type ChannelVolume struct {
	Channel     string        `json:"channel"`
	NewEpisodes int           `json:"new_episodes"`
	TopReasons  []RankedCount `json:"top_reasons"`
}

// InputSummary describes the rows behind a report.
type InputSummary struct {
	TotalRows         int `json:"total_rows"`
	DroppedRows       int `json:"dropped_rows"`
	Events            int `json:"events"`
	FilteredEvents    int `json:"filtered_events"`
	UnknownReferences int `json:"unknown_references"`
}

// Report is the full set of output tables for one run.
type Report struct {
	Input       InputSummary      `json:"input"`
	Events      []EventRecord     `json:"events"`
	Episodes    []Episode         `json:"episodes"`
	HandleTimes []AgentHandleTime `json:"handle_times"`
	Capacity    []CapacityTarget  `json:"capacity"`
	Sectors     []SectorSummary   `json:"sectors"`
	Team        TeamSummary       `json:"team"`
	Recurrence  RecurrenceReport  `json:"recurrence"`
	Channels    []ChannelVolume   `json:"channels"`
}

package parser

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"contact-metrics/errors"
	"contact-metrics/metrics"
	"contact-metrics/models"
)

// Canonical column names.
const (
	ColTimestamp = "timestamp"
	ColDate      = "date"
	ColTime      = "time"
	ColReference = "reference_id"
	ColOrder     = "order_number"
	ColInvoice   = "invoice_number"
	ColAgent     = "agent_id"
	ColSector    = "sector"
	ColChannel   = "channel"
	ColCarrier   = "carrier"
	ColReason    = "reason"
	ColCRMReason = "crm_reason"
)

// headerAliases maps normalized header names onto canonical columns.
// The Portuguese names are the ones used by the operations spreadsheet.
var headerAliases = map[string]string{
	"data":           ColDate,
	"hora":           ColTime,
	"colaborador":    ColAgent,
	"agent":          ColAgent,
	"setor":          ColSector,
	"portal":         ColChannel,
	"transportadora": ColCarrier,
	"motivo":         ColReason,
	"motivo_crm":     ColCRMReason,
	"numero_pedido":  ColOrder,
	"nota_fiscal":    ColInvoice,
}

var requiredTextColumns = []string{ColAgent, ColSector, ColReason, ColCRMReason, ColCarrier, ColChannel}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
}

var clockLayouts = []string{"15:04:05", "15:04"}

// Options controls how raw rows are normalized into events.
type Options struct {
	// Location is applied to timestamps without an explicit offset. Defaults to UTC.
	Location *time.Location
	// UnknownLabel replaces empty text fields and marks unknown references.
	UnknownLabel string
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
}

// DroppedRow records a data row excluded from the result.
type DroppedRow struct {
	Line   int
	Reason string
	Err    error
}

// Result is the outcome of a parse.
type Result struct {
	Events    []models.ContactEvent
	TotalRows int
	Dropped   []DroppedRow
}

// Parse reads delimited contact events from r.
// The first non-comment line is the header; columns are matched by name
// (see headerAliases) so their order is free. Lines starting with '#' are
// skipped. The timestamp comes from a "timestamp" column or from a "date"
// column (day first) plus an optional "time" column.
//
// A missing required column or an input where no data row can be parsed
// returns an error. Any other bad row is dropped and listed in Result.Dropped.
func Parse(r io.Reader, opts Options) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.ParserDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if opts.Location == nil {
		opts.Location = time.UTC
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	result := &Result{Events: make([]models.ContactEvent, 0)}
	var layout *columnLayout
	var firstFailure *errors.ParseError

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		// Handle comments
		if len(record) > 0 && strings.HasPrefix(strings.TrimSpace(record[0]), "#") {
			continue
		}

		if layout == nil {
			layout, err = newColumnLayout(record)
			if err != nil {
				metrics.ParserErrorsTotal.WithLabelValues("missing_column").Inc()
				return nil, err
			}
			continue
		}

		result.TotalRows++
		event, err := layout.event(record, opts)
		if err != nil {
			pe := &errors.ParseError{Line: line, Record: record, Err: err}
			if firstFailure == nil {
				firstFailure = pe
			}
			reason := errorType(err)
			metrics.ParserErrorsTotal.WithLabelValues(reason).Inc()
			result.Dropped = append(result.Dropped, DroppedRow{Line: line, Reason: reason, Err: pe})
			continue
		}
		event.Line = line
		result.Events = append(result.Events, event)
	}

	if result.TotalRows > 0 && len(result.Events) == 0 {
		return nil, &errors.ParseError{
			Line:   firstFailure.Line,
			Record: firstFailure.Record,
			Err:    fmt.Errorf("%w: %v", errors.ErrNoValidRows, firstFailure.Err),
		}
	}

	metrics.ParserRecordsTotal.Add(float64(len(result.Events)))
	return result, nil
}

// columnLayout maps canonical column names to record positions.
type columnLayout struct {
	index map[string]int
	width int
}

func newColumnLayout(header []string) (*columnLayout, error) {
	layout := &columnLayout{index: make(map[string]int)}
	for i, raw := range header {
		name := normalizeHeader(raw)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := layout.index[name]; !dup {
			layout.index[name] = i
		}
	}

	if !layout.has(ColTimestamp) && !layout.has(ColDate) {
		return nil, &errors.ColumnError{Column: ColTimestamp}
	}
	if !layout.has(ColReference) && !layout.has(ColOrder) && !layout.has(ColInvoice) {
		return nil, &errors.ColumnError{Column: ColReference}
	}
	for _, col := range requiredTextColumns {
		if !layout.has(col) {
			return nil, &errors.ColumnError{Column: col}
		}
	}

	for _, i := range layout.index {
		if i+1 > layout.width {
			layout.width = i + 1
		}
	}
	return layout, nil
}

func (l *columnLayout) has(col string) bool {
	_, ok := l.index[col]
	return ok
}

func (l *columnLayout) value(record []string, col string) string {
	i, ok := l.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (l *columnLayout) event(record []string, opts Options) (models.ContactEvent, error) {
	if isBlank(record) {
		return models.ContactEvent{}, errors.ErrEmptyRecord
	}
	if len(record) < l.width {
		return models.ContactEvent{}, fmt.Errorf("%w: got %d, want %d", errors.ErrInvalidFieldCount, len(record), l.width)
	}

	ts, err := l.timestamp(record, opts.Location)
	if err != nil {
		return models.ContactEvent{}, fmt.Errorf("%w: %v", errors.ErrInvalidTimestamp, err)
	}

	text := func(col string) string {
		return cleanText(l.value(record, col), opts.UnknownLabel)
	}

	ev := models.ContactEvent{
		Timestamp:     ts,
		OrderNumber:   text(ColOrder),
		InvoiceNumber: text(ColInvoice),
		AgentID:       text(ColAgent),
		SectorLabel:   text(ColSector),
		Channel:       text(ColChannel),
		Carrier:       text(ColCarrier),
		Reason:        text(ColReason),
		CRMReason:     text(ColCRMReason),
	}
	ev.Sector = models.ResolveSector(ev.SectorLabel)

	if l.has(ColReference) {
		ev.Reference = models.NewReference(text(ColReference), ev.InvoiceNumber, opts.UnknownLabel)
	} else {
		ev.Reference = models.NewReference(ev.OrderNumber, ev.InvoiceNumber, opts.UnknownLabel)
	}
	return ev, nil
}

func (l *columnLayout) timestamp(record []string, loc *time.Location) (time.Time, error) {
	if l.has(ColTimestamp) {
		return parseTimestamp(strings.TrimSpace(l.value(record, ColTimestamp)), loc)
	}

	date, err := parseTimestamp(strings.TrimSpace(l.value(record, ColDate)), loc)
	if err != nil {
		return time.Time{}, err
	}
	clock := strings.TrimSpace(l.value(record, ColTime))
	if clock == "" {
		return date, nil
	}
	t, err := parseWithLayouts(clock, clockLayouts, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty value")
	}
	t, err := parseWithLayouts(value, timestampLayouts, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func parseWithLayouts(value string, layouts []string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// cleanText flattens a free-text field so it survives delimited export.
func cleanText(value, unknownLabel string) string {
	value = strings.ReplaceAll(value, ";", ",")
	value = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if value == "" {
		return unknownLabel
	}
	return value
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func errorType(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case stderrors.Is(err, errors.ErrInvalidFieldCount):
		return "invalid_field_count"
	case stderrors.Is(err, errors.ErrEmptyRecord):
		return "empty_record"
	default:
		return "other"
	}
}

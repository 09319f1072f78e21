package fieldtype

import (
	"cmp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// Date cell keys.
const (
	CellTimestamp    = "timestamp"
	CellEndTimestamp = "end_timestamp"
	CellIncludeTime  = "include_time"
	CellIsRange      = "is_range"
	CellReminderID   = "reminder_id"
)

// DateFormat selects the date layout.
type DateFormat string

const (
	DateFormatLocal    DateFormat = "local"
	DateFormatUS       DateFormat = "us"
	DateFormatISO      DateFormat = "iso"
	DateFormatFriendly DateFormat = "friendly"
)

// TimeFormat selects the clock layout.
type TimeFormat string

const (
	TimeFormat12 TimeFormat = "12h"
	TimeFormat24 TimeFormat = "24h"
)

// DateTypeOption configures a date field.
type DateTypeOption struct {
	DateFormat DateFormat `json:"date_format" jsonschema:"enum=local,enum=us,enum=iso,enum=friendly"`
	TimeFormat TimeFormat `json:"time_format" jsonschema:"enum=12h,enum=24h"`
	TimezoneID string     `json:"timezone_id,omitempty" jsonschema:"description=IANA time zone used for display"`
}

// Layout returns the Go time layout for the option.
func (o DateTypeOption) Layout(includeTime bool) string {
	var l string
	switch o.DateFormat {
	case DateFormatUS:
		l = "2006/01/02"
	case DateFormatISO:
		l = "2006-01-02"
	case DateFormatFriendly:
		l = "Jan 02, 2006"
	default:
		l = "01/02/2006"
	}
	if includeTime {
		if o.TimeFormat == TimeFormat12 {
			l += " 03:04 PM"
		} else {
			l += " 15:04"
		}
	}
	return l
}

// Location returns the display time zone, UTC when unset or unknown.
func (o DateTypeOption) Location() *time.Location {
	if o.TimezoneID == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.TimezoneID)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DateChangeset updates a date cell; nil members are left alone.
type DateChangeset struct {
	Timestamp    *int64  `json:"timestamp,omitempty"`
	EndTimestamp *int64  `json:"end_timestamp,omitempty"`
	IncludeTime  *bool   `json:"include_time,omitempty"`
	IsRange      *bool   `json:"is_range,omitempty"`
	ReminderID   *string `json:"reminder_id,omitempty"`
	// Text is parsed as a natural language date ("tomorrow 5pm", "next friday").
	Text string `json:"text,omitempty"`
	// Clear empties the cell.
	Clear bool `json:"clear,omitempty"`
	// Now anchors relative Text; zero means time.Now().
	Now time.Time `json:"-"`
}

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDate interprets text as a date. It accepts unix seconds, RFC 3339,
// ISO dates and English expressions relative to now.
func ParseDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, errors.InvalidData("empty date")
	}
	if sec, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	r, err := parser.Parse(text, now)
	if err != nil {
		return time.Time{}, errors.InvalidData("unparsable date " + strconv.Quote(text)).Wrap(err)
	}
	if r == nil {
		return time.Time{}, errors.InvalidData("unparsable date " + strconv.Quote(text))
	}
	return r.Time, nil
}

type dateHandler struct{}

func (dateHandler) Type() model.FieldType { return model.FieldDateTime }

func (dateHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(DateTypeOption{DateFormat: DateFormatFriendly, TimeFormat: TimeFormat24})
}

func (dateHandler) CellString(cell model.Cell, opt model.TypeOptionData) string {
	ts, ok := cell.GetInt(CellTimestamp)
	if !ok {
		return ""
	}
	to := DecodeTypeOption[DateTypeOption](opt)
	layout := to.Layout(cell.GetBool(CellIncludeTime))
	s := time.Unix(ts, 0).In(to.Location()).Format(layout)
	if cell.GetBool(CellIsRange) {
		if end, ok := cell.GetInt(CellEndTimestamp); ok {
			s += " → " + time.Unix(end, 0).In(to.Location()).Format(layout)
		}
	}
	return s
}

func (dateHandler) ApplyChangeset(cs any, prev model.Cell, _ model.TypeOptionData) (model.Cell, error) {
	var change DateChangeset
	switch v := cs.(type) {
	case DateChangeset:
		change = v
	case *DateChangeset:
		change = *v
	default:
		s, err := changesetString(cs)
		if err != nil {
			return nil, errors.InvalidData("expected a date changeset")
		}
		if strings.TrimSpace(s) == "" {
			change.Clear = true
		} else {
			change.Text = s
		}
	}
	c := model.NewCell(model.FieldDateTime)
	if change.Clear {
		return c, nil
	}
	for k, v := range prev {
		if k != model.CellFieldType {
			c[k] = v
		}
	}
	if change.Text != "" {
		now := change.Now
		if now.IsZero() {
			now = time.Now()
		}
		t, err := ParseDate(change.Text, now)
		if err != nil {
			return nil, err
		}
		c[CellTimestamp] = t.Unix()
		if t.Hour() != 0 || t.Minute() != 0 {
			c[CellIncludeTime] = true
		}
	}
	if change.Timestamp != nil {
		c[CellTimestamp] = *change.Timestamp
	}
	if change.EndTimestamp != nil {
		c[CellEndTimestamp] = *change.EndTimestamp
	}
	if change.IncludeTime != nil {
		c[CellIncludeTime] = *change.IncludeTime
	}
	if change.IsRange != nil {
		c[CellIsRange] = *change.IsRange
		if !*change.IsRange {
			delete(c, CellEndTimestamp)
		}
	}
	if change.ReminderID != nil {
		c[CellReminderID] = *change.ReminderID
	}
	return c, nil
}

func (dateHandler) IsEmpty(cell model.Cell) bool {
	_, ok := cell.GetInt(CellTimestamp)
	return !ok
}

func (dateHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	va, _ := a.GetInt(CellTimestamp)
	vb, _ := b.GetInt(CellTimestamp)
	return cmp.Compare(va, vb)
}

// Match compares calendar days; Content is any text ParseDate accepts.
func (dateHandler) Match(f *model.Filter, cell model.Cell, opt model.TypeOptionData) bool {
	return matchDay(f, cell, DecodeTypeOption[DateTypeOption](opt).Location())
}

func matchDay(f *model.Filter, cell model.Cell, loc *time.Location) bool {
	ts, ok := cell.GetInt(CellTimestamp)
	switch f.Condition {
	case model.FilterIsEmpty:
		return !ok
	case model.FilterIsNotEmpty:
		return ok
	}
	if !ok {
		return false
	}
	want, err := ParseDate(f.Content, time.Now())
	if err != nil {
		return false
	}
	day := func(t time.Time) time.Time {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return matchOrdered(f.Condition, day(time.Unix(ts, 0)).Compare(day(want)))
}

package fieldtype

import (
	"cmp"
	"time"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// TimestampTypeOption configures created/last edited time fields.
type TimestampTypeOption struct {
	DateFormat  DateFormat `json:"date_format" jsonschema:"enum=local,enum=us,enum=iso,enum=friendly"`
	TimeFormat  TimeFormat `json:"time_format" jsonschema:"enum=12h,enum=24h"`
	IncludeTime bool       `json:"include_time"`
	TimezoneID  string     `json:"timezone_id,omitempty"`
}

// timestampHandler serves fields whose cells are derived from the row.
type timestampHandler struct {
	t model.FieldType
}

func timestampCell(t model.FieldType, ts time.Time) model.Cell {
	c := model.NewCell(t)
	if !ts.IsZero() {
		c[CellTimestamp] = ts.Unix()
	}
	return c
}

func (h timestampHandler) Type() model.FieldType { return h.t }

func (h timestampHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(TimestampTypeOption{DateFormat: DateFormatFriendly, TimeFormat: TimeFormat24, IncludeTime: true})
}

func (h timestampHandler) dateOption(opt model.TypeOptionData) DateTypeOption {
	to := DecodeTypeOption[TimestampTypeOption](opt)
	return DateTypeOption{DateFormat: to.DateFormat, TimeFormat: to.TimeFormat, TimezoneID: to.TimezoneID}
}

func (h timestampHandler) CellString(cell model.Cell, opt model.TypeOptionData) string {
	ts, ok := cell.GetInt(CellTimestamp)
	if !ok {
		return ""
	}
	to := DecodeTypeOption[TimestampTypeOption](opt)
	do := h.dateOption(opt)
	return time.Unix(ts, 0).In(do.Location()).Format(do.Layout(to.IncludeTime))
}

func (h timestampHandler) ApplyChangeset(any, model.Cell, model.TypeOptionData) (model.Cell, error) {
	return nil, errors.Internal(string(h.t) + " cells are derived from the row and cannot be written")
}

func (h timestampHandler) IsEmpty(cell model.Cell) bool {
	_, ok := cell.GetInt(CellTimestamp)
	return !ok
}

func (h timestampHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	va, _ := a.GetInt(CellTimestamp)
	vb, _ := b.GetInt(CellTimestamp)
	return cmp.Compare(va, vb)
}

func (h timestampHandler) Match(f *model.Filter, cell model.Cell, opt model.TypeOptionData) bool {
	return matchDay(f, cell, h.dateOption(opt).Location())
}

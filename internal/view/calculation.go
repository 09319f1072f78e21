// Computes per-field aggregates over the visible rows of a view.

package view

import (
	"slices"
	"strconv"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

// UpdateCalculationParams sets the aggregate shown under a field.
type UpdateCalculationParams struct {
	ID      string                `json:"id,omitempty"`
	FieldID string                `json:"field_id"`
	Type    model.CalculationType `json:"type"`
}

func numericCalculation(t model.CalculationType) bool {
	switch t {
	case model.CalcSum, model.CalcAverage, model.CalcMedian, model.CalcMin, model.CalcMax:
		return true
	}
	return false
}

// Calculate computes one aggregate of field f over rows.
func Calculate(t model.CalculationType, f *model.Field, rows []*model.Row) string {
	h, err := fieldtype.For(f.Type)
	if err != nil {
		return ""
	}
	switch t {
	case model.CalcCount:
		return strconv.Itoa(len(rows))
	case model.CalcCountEmpty, model.CalcCountNonEmpty:
		n := 0
		for _, r := range rows {
			if h.IsEmpty(fieldtype.ReadCell(r, f)) == (t == model.CalcCountEmpty) {
				n++
			}
		}
		return strconv.Itoa(n)
	}
	if f.Type != model.FieldNumber {
		return ""
	}
	var values []float64
	for _, r := range rows {
		if v, ok := fieldtype.ParseNumber(fieldtype.ReadCell(r, f).GetString(model.CellData)); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return ""
	}
	var v float64
	switch t {
	case model.CalcSum, model.CalcAverage:
		for _, x := range values {
			v += x
		}
		if t == model.CalcAverage {
			v /= float64(len(values))
		}
	case model.CalcMin:
		v = slices.Min(values)
	case model.CalcMax:
		v = slices.Max(values)
	case model.CalcMedian:
		slices.Sort(values)
		m := len(values) / 2
		if len(values)%2 == 0 {
			v = (values[m-1] + values[m]) / 2
		} else {
			v = values[m]
		}
	default:
		return ""
	}
	return fieldtype.DecodeTypeOption[fieldtype.NumberTypeOption](f.TypeOption()).Render(v)
}

// Calculations returns the view's aggregates with their last computed values.
func (e *Editor) Calculations() []model.Calculation {
	v, err := e.View()
	if err != nil {
		return nil
	}
	return v.Calculations
}

// UpdateCalculation creates or changes the aggregate of a field and
// computes it. A field has at most one aggregate.
func (e *Editor) UpdateCalculation(p UpdateCalculationParams) (model.Calculation, error) {
	f, ok := e.field(p.FieldID)
	if !ok {
		return model.Calculation{}, errors.RecordNotFound("field", p.FieldID)
	}
	if numericCalculation(p.Type) && f.Type != model.FieldNumber {
		return model.Calculation{}, errors.InvalidData(string(p.Type) + " requires a number field")
	}
	c := model.Calculation{ID: p.ID, FieldID: p.FieldID, Type: p.Type, Value: Calculate(p.Type, f, e.VisibleRows())}
	err := e.updateView(func(v *model.View) error {
		i := slices.IndexFunc(v.Calculations, func(x model.Calculation) bool {
			return (c.ID != "" && x.ID == c.ID) || x.FieldID == c.FieldID
		})
		if i < 0 {
			if c.ID == "" {
				c.ID = model.NewID()
			}
			v.Calculations = append(v.Calculations, c)
			return nil
		}
		c.ID = v.Calculations[i].ID
		v.Calculations[i] = c
		return nil
	})
	if err != nil {
		return model.Calculation{}, err
	}
	e.send(notify.DidUpdateCalculation, []model.Calculation{c})
	return c, nil
}

// RemoveCalculation removes the aggregate of a field.
func (e *Editor) RemoveCalculation(fieldID, id string) error {
	var removed []model.Calculation
	err := e.updateView(func(v *model.View) error {
		v.Calculations = slices.DeleteFunc(v.Calculations, func(c model.Calculation) bool {
			if c.ID == id && c.FieldID == fieldID {
				removed = append(removed, c)
				return true
			}
			return false
		})
		if len(removed) == 0 {
			return errors.RecordNotFound("calculation", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := range removed {
		removed[i].Value = ""
	}
	e.send(notify.DidUpdateCalculation, removed)
	return nil
}

// RefreshCalculations recomputes every aggregate and announces the ones
// whose value changed.
func (e *Editor) RefreshCalculations() ([]model.Calculation, error) {
	calcs := e.Calculations()
	if len(calcs) == 0 {
		return nil, nil
	}
	fields := e.fields()
	rows := e.VisibleRows()
	var changed []model.Calculation
	for _, c := range calcs {
		f, ok := fields[c.FieldID]
		if !ok {
			continue
		}
		if v := Calculate(c.Type, f, rows); v != c.Value {
			c.Value = v
			changed = append(changed, c)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}
	err := e.updateView(func(v *model.View) error {
		for _, c := range changed {
			if i := slices.IndexFunc(v.Calculations, func(x model.Calculation) bool { return x.ID == c.ID }); i >= 0 {
				v.Calculations[i].Value = c.Value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.send(notify.DidUpdateCalculation, changed)
	return changed, nil
}

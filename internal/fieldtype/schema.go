package fieldtype

import (
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// typeOptionTypes maps each field type to its typed configuration.
var typeOptionTypes = map[model.FieldType]reflect.Type{
	model.FieldRichText:       reflect.TypeFor[RichTextTypeOption](),
	model.FieldURL:            reflect.TypeFor[URLTypeOption](),
	model.FieldNumber:         reflect.TypeFor[NumberTypeOption](),
	model.FieldCheckbox:       reflect.TypeFor[CheckboxTypeOption](),
	model.FieldSingleSelect:   reflect.TypeFor[SelectTypeOption](),
	model.FieldMultiSelect:    reflect.TypeFor[SelectTypeOption](),
	model.FieldDateTime:       reflect.TypeFor[DateTypeOption](),
	model.FieldChecklist:      reflect.TypeFor[ChecklistTypeOption](),
	model.FieldMedia:          reflect.TypeFor[MediaTypeOption](),
	model.FieldCreatedTime:    reflect.TypeFor[TimestampTypeOption](),
	model.FieldLastEditedTime: reflect.TypeFor[TimestampTypeOption](),
}

// Schema returns the JSON schema of a field type's configuration.
func Schema(t model.FieldType) (*jsonschema.Schema, error) {
	rt, ok := typeOptionTypes[t]
	if !ok {
		return nil, errors.InvalidData("unknown field type " + string(t))
	}
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.ReflectFromType(rt)
	s.Title = string(t) + " type option"
	return s, nil
}

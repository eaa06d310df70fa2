// Package forms validates raw form payloads and turns them into typed records.
//
// Validation is batch: every failing field is reported, not only the first.
package forms

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/clc-ministry/forms-backend/internal/models"
)

type fieldType int

const (
	typeString fieldType = iota
	typeNumber
	typeBool
)

type field struct {
	name     string
	typ      fieldType
	required bool
	integer  bool
	min, max float64
	rules    []validation.Rule
}

func text(name string, required bool, max int, extra ...validation.Rule) field {
	rules := append([]validation.Rule{
		validation.RuneLength(0, max).Error(fmt.Sprintf("must be at most %d characters", max)),
	}, extra...)
	return field{name: name, typ: typeString, required: required, rules: rules}
}

var schemas = map[models.Kind][]field{
	models.KindWorkshop: {
		text("firstName", true, 50),
		text("lastName", true, 50),
		text("phoneNumber", true, 20),
		{name: "yearsAtClc", typ: typeNumber, required: true, min: 0, max: 100},
		{name: "encounterCollide", typ: typeBool, required: true},
		text("dateOfBirth", true, 50),
		text("grade", true, 50),
		{name: "audition", typ: typeBool, required: true},
	},
	models.KindOrder: {
		text("name", true, 100),
		text("phone", true, 20),
		text("email", false, 255, is.Email.Error("must be a valid email address")),
		{name: "quantity", typ: typeNumber, required: true, integer: true, min: 1, max: 50},
		text("notes", false, 1000),
	},
}

// Kinds lists the form kinds that can be validated.
func Kinds() []models.Kind {
	out := make([]models.Kind, 0, len(schemas))
	for k := range schemas {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RequiredFields returns the required field names of a form kind in declaration order.
func RequiredFields(kind models.Kind) []string {
	var out []string
	for _, f := range schemas[kind] {
		if f.required {
			out = append(out, f.name)
		}
	}
	return out
}

// Validate checks payload against the schema of kind and returns the
// normalized record, or a *ValidationError naming every failing field.
func Validate(kind models.Kind, payload map[string]any) (models.Record, error) {
	fields, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown form kind %q", kind)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	verr := &ValidationError{Invalid: validation.Errors{}}
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		raw, present := payload[f.name]
		if !present || isBlank(raw) {
			if f.required {
				verr.Missing = append(verr.Missing, f.name)
			}
			continue
		}
		v, err := coerce(f, raw)
		if err != nil {
			verr.Invalid[f.name] = err
			continue
		}
		if err := validation.Validate(v, f.rules...); err != nil {
			verr.Invalid[f.name] = err
			continue
		}
		values[f.name] = v
	}
	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return nil, verr
	}
	return build(kind, values), nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func coerce(f field, raw any) (any, error) {
	switch f.typ {
	case typeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, errNotBool
		}
		return b, nil
	case typeNumber:
		n, err := toNumber(raw)
		if err != nil {
			return nil, err
		}
		if f.integer && n != math.Trunc(n) {
			return nil, errNotInteger
		}
		if n < f.min || n > f.max {
			return nil, fmt.Errorf("must be between %s and %s", fmtNum(f.min), fmtNum(f.max))
		}
		return n, nil
	default:
		switch t := raw.(type) {
		case string:
			return strings.TrimSpace(t), nil
		case float64:
			return fmtNum(t), nil
		case json.Number:
			return t.String(), nil
		}
		return nil, errNotString
	}
}

func fmtNum(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func toNumber(raw any) (float64, error) {
	var n float64
	switch t := raw.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errNotNumber
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errNotNumber
		}
		n = f
	default:
		return 0, errNotNumber
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errNotNumber
	}
	return n, nil
}

func build(kind models.Kind, v map[string]any) models.Record {
	str := func(name string) string { s, _ := v[name].(string); return s }
	num := func(name string) float64 { n, _ := v[name].(float64); return n }
	flag := func(name string) bool { b, _ := v[name].(bool); return b }

	switch kind {
	case models.KindOrder:
		return &models.SpaghettiOrder{
			Name:     str("name"),
			Phone:    str("phone"),
			Email:    str("email"),
			Quantity: int(num("quantity")),
			Notes:    str("notes"),
		}
	default:
		return &models.WorkshopRegistration{
			FirstName:        str("firstName"),
			LastName:         str("lastName"),
			PhoneNumber:      str("phoneNumber"),
			YearsAtCLC:       num("yearsAtClc"),
			EncounterCollide: flag("encounterCollide"),
			DateOfBirth:      str("dateOfBirth"),
			Grade:            str("grade"),
			Audition:         flag("audition"),
		}
	}
}

package adminclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// envelopeKeys are the top-level keys the list endpoint has been seen to nest
// records under, in lookup order.
var envelopeKeys = []string{"items", "Items", "orders", "registrations", "data", "records"}

// Envelope is a decoded list response. Records are plain values: any
// DynamoDB-style attribute tags have been unwrapped.
type Envelope struct {
	Records []map[string]any
}

// UnmarshalJSON accepts a bare array or an object holding the array under one
// of the known keys. An object with none of them yields no records.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	e.Records = nil
	if len(data) > 0 && data[0] == '[' {
		return e.decodeList(data)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	for _, k := range envelopeKeys {
		if raw, ok := obj[k]; ok {
			return e.decodeList(raw)
		}
	}
	return nil
}

func (e *Envelope) decodeList(data []byte) error {
	v, err := decodeJSON(data)
	if err != nil {
		return fmt.Errorf("decode records: %w", err)
	}
	list, ok := Unwrap(v).([]any)
	if !ok {
		return nil
	}
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			e.Records = append(e.Records, m)
		}
	}
	return nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unwrap converts a decoded JSON value to plain values. A single-key object
// whose key is an attribute tag (S, N, BOOL, NULL, M, L, SS, NS) and whose
// payload has the matching shape is replaced by its payload; all other values
// are walked recursively. JSON numbers become float64.
func Unwrap(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			for tag, payload := range t {
				if plain, ok := unwrapTagged(tag, payload); ok {
					return plain
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Unwrap(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Unwrap(val)
		}
		return out
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func unwrapTagged(tag string, payload any) (any, bool) {
	switch tag {
	case "S":
		s, ok := payload.(string)
		return s, ok
	case "N":
		return parseNumber(payload)
	case "BOOL":
		b, ok := payload.(bool)
		return b, ok
	case "NULL":
		b, ok := payload.(bool)
		return nil, ok && b
	case "M":
		m, ok := payload.(map[string]any)
		if !ok {
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = Unwrap(val)
		}
		return out, true
	case "L":
		l, ok := payload.([]any)
		if !ok {
			return nil, false
		}
		return Unwrap(l), true
	case "SS":
		l, ok := payload.([]any)
		if !ok {
			return nil, false
		}
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case "NS":
		l, ok := payload.([]any)
		if !ok {
			return nil, false
		}
		out := make([]float64, 0, len(l))
		for _, item := range l {
			n, ok := parseNumber(item)
			if !ok {
				return nil, false
			}
			out = append(out, n.(float64))
		}
		return out, true
	}
	return nil, false
}

func parseNumber(v any) (any, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return nil, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

// Order is the stable view of a spaghetti order.
type Order struct {
	OrderID   string `json:"orderId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Registration is the stable view of a workshop registration.
type Registration struct {
	RegistrationID   string  `json:"registrationId"`
	FirstName        string  `json:"firstName"`
	LastName         string  `json:"lastName"`
	PhoneNumber      string  `json:"phoneNumber"`
	YearsAtCLC       float64 `json:"yearsAtClc"`
	EncounterCollide bool    `json:"encounterCollide"`
	DateOfBirth      string  `json:"dateOfBirth"`
	Grade            string  `json:"grade"`
	Audition         bool    `json:"audition"`
	Present          bool    `json:"present"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// NormalizeOrder coerces a plain record into an Order. Status defaults to
// "pending" and quantity to 1.
func NormalizeOrder(m map[string]any) Order {
	o := Order{
		OrderID:   firstString(m, "orderId", "id"),
		Name:      str(m, "name"),
		Phone:     str(m, "phone"),
		Email:     str(m, "email"),
		Notes:     str(m, "notes"),
		Status:    str(m, "status"),
		CreatedAt: str(m, "createdAt"),
		UpdatedAt: str(m, "updatedAt"),
		Quantity:  1,
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	if q, ok := num(m, "quantity"); ok && q >= 1 {
		o.Quantity = int(q)
	}
	return o
}

// NormalizeRegistration coerces a plain record into a Registration. Missing
// booleans are false and missing numbers 0.
func NormalizeRegistration(m map[string]any) Registration {
	years, _ := num(m, "yearsAtClc")
	return Registration{
		RegistrationID:   firstString(m, "registrationId", "id"),
		FirstName:        str(m, "firstName"),
		LastName:         str(m, "lastName"),
		PhoneNumber:      str(m, "phoneNumber"),
		YearsAtCLC:       years,
		EncounterCollide: boolean(m, "encounterCollide"),
		DateOfBirth:      str(m, "dateOfBirth"),
		Grade:            str(m, "grade"),
		Audition:         boolean(m, "audition"),
		Present:          boolean(m, "present"),
		CreatedAt:        str(m, "createdAt"),
		UpdatedAt:        str(m, "updatedAt"),
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m, k); s != "" {
			return s
		}
	}
	return ""
}

func str(m map[string]any, key string) string {
	switch t := m[key].(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func num(m map[string]any, key string) (float64, bool) {
	switch t := m[key].(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func boolean(m map[string]any, key string) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	return false
}

package models

import "time"

// TimeLayout is the ISO-8601 layout (millisecond precision, UTC "Z") used for
// createdAt and updatedAt. Timestamps in this layout sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in TimeLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Kind identifies a form and the collection its records live in.
type Kind string

const (
	KindWorkshop Kind = "workshop"
	KindOrder    Kind = "order"
)

// KeyAttr returns the attribute name holding the record identifier.
func (k Kind) KeyAttr() string {
	switch k {
	case KindWorkshop:
		return "registrationId"
	case KindOrder:
		return "orderId"
	}
	return ""
}

// Collection returns the URL segment records of this kind are addressed by
// (/admin/workshop, /admin/orders).
func (k Kind) Collection() string {
	if k == KindOrder {
		return "orders"
	}
	return string(k)
}

// KindForCollection is the inverse of Kind.Collection.
func KindForCollection(name string) (Kind, bool) {
	switch name {
	case KindWorkshop.Collection():
		return KindWorkshop, true
	case KindOrder.Collection():
		return KindOrder, true
	}
	return "", false
}

// Record is a normalized submission ready to be persisted.
type Record interface {
	Kind() Kind
	ID() string
	// Stamp assigns the identifier and creation time and resets the mutable flag.
	Stamp(id, createdAt string)
}

// Package records persists form submissions as schemaless documents keyed by a
// generated identifier. Two backends are provided: DynamoDB and PostgreSQL.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clc-ministry/forms-backend/internal/models"
)

var (
	// ErrNotFound is returned when a conditional update targets a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a create collides with an existing identifier.
	ErrAlreadyExists = errors.New("record already exists")
)

// Document is a stored record in its plain decoded form.
type Document = map[string]any

// Collection addresses one table of records.
type Collection struct {
	Table   string // DynamoDB table name, or the collection column value in postgres
	KeyAttr string // attribute holding the identifier, e.g. registrationId
}

// Collections maps each form kind to the collection its records live in.
type Collections map[models.Kind]Collection

// NewCollections builds the collection map from table names.
func NewCollections(workshopTable, ordersTable string) Collections {
	return Collections{
		models.KindWorkshop: {Table: workshopTable, KeyAttr: models.KindWorkshop.KeyAttr()},
		models.KindOrder:    {Table: ordersTable, KeyAttr: models.KindOrder.KeyAttr()},
	}
}

// Store is the record store used by the submission and admin handlers.
type Store interface {
	// Create writes item only if no record with id exists yet.
	Create(ctx context.Context, c Collection, id string, item any) error
	// Scan returns every record in the collection, unordered.
	Scan(ctx context.Context, c Collection) ([]Document, error)
	// Update sets fields on an existing record; ErrNotFound if it does not exist.
	Update(ctx context.Context, c Collection, id string, fields Document) error
	// Delete removes a record and reports whether it existed.
	Delete(ctx context.Context, c Collection, id string) (bool, error)
}

// SortNewestFirst orders documents by createdAt descending. Documents without a
// string createdAt compare as "" and therefore sort last.
func SortNewestFirst(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return createdAt(docs[i]) > createdAt(docs[j])
	})
}

func createdAt(d Document) string {
	s, _ := d["createdAt"].(string)
	return s
}

func (c Collection) validate(id string) error {
	if c.Table == "" || c.KeyAttr == "" {
		return fmt.Errorf("collection not configured")
	}
	if id == "" {
		return fmt.Errorf("empty %s", c.KeyAttr)
	}
	return nil
}

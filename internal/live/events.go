// Package live implements live collection subscriptions: a standing query
// against a named collection that delivers a fresh full snapshot whenever
// the collection's matching set changes.
package live

import (
	"context"
	"encoding/json/jsontext"
	"time"
)

// ChangeType represents the kind of mutation that occurred in a collection.
type ChangeType string

const (
	// ChangeCreated represents a document insertion.
	ChangeCreated ChangeType = "created"
	// ChangeUpdated represents a document update.
	ChangeUpdated ChangeType = "updated"
	// ChangeDeleted represents a document deletion.
	ChangeDeleted ChangeType = "deleted"
)

// Event describes a single mutation in a collection. Events carry no
// payload: subscriptions re-query and receive full snapshots, so an event
// is only an invalidation signal.
type Event struct {
	Timestamp  time.Time  `json:"timestamp"`
	Collection string     `json:"collection"`
	DocumentID string     `json:"document_id"`
	Type       ChangeType `json:"type"`
}

// NewEvent creates a change event for a document in a collection.
func NewEvent(collection string, change ChangeType, documentID string) Event {
	return Event{
		Timestamp:  time.Now(),
		Collection: collection,
		DocumentID: documentID,
		Type:       change,
	}
}

// Document is a single record in a snapshot: its identifier plus the raw
// JSON fields, left undecoded so the subscriber picks the concrete type.
type Document struct {
	ID   string
	Data jsontext.Value
}

// Filter restricts a subscription to documents whose named field equals
// the given string value. A nil *Filter matches every document.
type Filter struct {
	Field string
	Value string
}

// Snapshot is the full ordered set of matching documents at one point in
// time. Every delivery replaces the subscriber's previous state entirely.
type Snapshot struct {
	At   time.Time
	Docs []Document
}

// Querier evaluates a subscription's query against current data.
// The document store implements this.
type Querier interface {
	Query(ctx context.Context, collection string, filter *Filter) ([]Document, error)
}

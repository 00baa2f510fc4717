package types

import "time"

// ChangeKind names the mutation a Change records.
type ChangeKind string

// Change kinds.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is one entry of the append-only change log. Before is nil for a
// creation and After is nil for a deletion.
type Change struct {
	Seq      int64      `json:"seq"`
	Kind     ChangeKind `json:"kind"`
	RecordID string     `json:"record_id"`
	Group    string     `json:"group"`
	Before   *Record    `json:"before,omitempty"`
	After    *Record    `json:"after,omitempty"`
	Reverts  int64      `json:"reverts,omitempty"` // Seq of the change this entry undoes, 0 if none.
	At       time.Time  `json:"at"`
}

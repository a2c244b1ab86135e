package models

import "time"

// Actor identifies the logical writer of a transaction.
type Actor string

const (
	ActorMainApp        Actor = "mainApp"
	ActorShareExtension Actor = "shareExtension"
	ActorCloudImport    Actor = "cloudImport"
)

// Scope selects the physical store a record lives in.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeShared  Scope = "shared"
)

func (s Scope) Valid() bool {
	return s == ScopePrivate || s == ScopeShared
}

type Entity string

const (
	EntityBoard Entity = "board"
	EntityTag   Entity = "tag"
	EntityItem  Entity = "item"
)

// Rank orders entities so that owners are applied before what they own.
func (e Entity) Rank() int {
	switch e {
	case EntityBoard:
		return 0
	case EntityTag:
		return 1
	default:
		return 2
	}
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Change struct {
	ObjectID string
	Entity   Entity
	Op       Op
}

// Transaction is one committed write: who wrote it, when, and which objects
// it touched. Timestamps are unix microseconds, strictly increasing per store.
type Transaction struct {
	ID        int64
	StoreID   string
	Author    Actor
	Timestamp int64
	Changes   []Change
}

func (t Transaction) Time() time.Time {
	return time.UnixMicro(t.Timestamp)
}

// Descriptor identifies a physical store and the scope it serves.
type Descriptor struct {
	StoreID string
	Path    string
	Scope   Scope
}

// ShareToken is the credential handed to invitees for a shared board.
type ShareToken struct {
	ShareID string
	BoardID string
	Token   string
}

// ShareMetadata is what an invitee presents to accept a share.
type ShareMetadata struct {
	Token string
}

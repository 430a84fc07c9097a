package domain

// EventType mirrors the store's change-notification kinds.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// EntityKind names the entity an event refers to.
type EntityKind string

const (
	EntityGame     EntityKind = "game"
	EntityPlayer   EntityKind = "player"
	EntityQuestion EntityKind = "question"
	EntityAnswer   EntityKind = "answer"
)

// Event is a change notification pushed to subscribers of a game. Delivery is
// at-least-once and carries no ordering guarantee across entities; consumers
// re-derive state from a fresh snapshot rather than applying events.
type Event struct {
	Type   EventType  `json:"type"`
	Entity EntityKind `json:"entity"`
	GameID string     `json:"gameId"`
	New    any        `json:"new,omitempty"`
	Old    any        `json:"old,omitempty"`
}

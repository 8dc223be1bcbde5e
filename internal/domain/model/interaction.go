package model

import (
	"fmt"
	"time"
)

// Category groups actions for profile aggregation.
type Category string

// Default categories, in catalog order.
const (
	CategoryBetrayal  Category = "betrayal"
	CategoryHostility Category = "hostility"
	CategoryContract  Category = "contract"
	CategoryAlliance  Category = "alliance"
	CategoryPassion   Category = "passion"
)

// InteractionTag is a validated #Name_action[_modifier...] token.
type InteractionTag struct {
	TargetName string   `json:"targetName"`
	Action     string   `json:"action"`
	Modifiers  []string `json:"modifiers,omitempty"`
}

// InteractionRecord is one resolved tag. Records are immutable once created.
type InteractionRecord struct {
	ID          string    `json:"id"`
	PostID      string    `json:"postId,omitempty"`
	SourceID    int64     `json:"sourceId"`
	TargetID    int64     `json:"targetId"`
	Action      string    `json:"action"`
	Category    Category  `json:"category"`
	Modifiers   []string  `json:"modifiers,omitempty"`
	Effect      int       `json:"effect"`
	Description string    `json:"description"`
	PostedAt    time.Time `json:"postedAt"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Involves reports whether id is either side of the record.
func (r InteractionRecord) Involves(id int64) bool {
	return r.SourceID == id || r.TargetID == id
}

// PairKey identifies a directional relationship.
type PairKey struct {
	SourceID int64 `json:"sourceId"`
	TargetID int64 `json:"targetId"`
}

func (k PairKey) String() string {
	return fmt.Sprintf("%d->%d", k.SourceID, k.TargetID)
}

// RelationshipEntry is the running score between a source and a target.
// TotalScore is clamped; UnclampedScore keeps the raw running sum.
type RelationshipEntry struct {
	Key            PairKey             `json:"key"`
	TotalScore     int                 `json:"totalScore"`
	UnclampedScore int                 `json:"unclampedScore"`
	History        []InteractionRecord `json:"history"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

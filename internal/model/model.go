package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier is the durability class a memory occupies. Memories start in
// TierActive and are promoted toward TierNetwork as resonance, access
// patterns, and graph centrality accumulate.
type Tier string

const (
	TierActive  Tier = "active"
	TierThread  Tier = "thread"
	TierStable  Tier = "stable"
	TierNetwork Tier = "network"
)

// Rank returns the ordering of a tier; higher is more durable.
func (t Tier) Rank() int {
	switch t {
	case TierActive:
		return 1
	case TierThread:
		return 2
	case TierStable:
		return 3
	case TierNetwork:
		return 4
	default:
		return 0
	}
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool { return t.Rank() > 0 }

// PhiCeiling is the inclusive upper bound for resonance phi.
const PhiCeiling = 5.0

// MaxContentChars bounds memory content length.
const MaxContentChars = 50000

// Memory is a single stored unit of knowledge with its resonance state.
// The active row for a given content hash is the one where DeletedAt IS NULL;
// a partial unique index in the schema enforces that invariant under
// concurrent writers.
type Memory struct {
	// ID is the primary key (UUID), generated in application code so the
	// model works against both postgres and sqlite.
	ID uuid.UUID `json:"id" gorm:"primaryKey;column:id"`

	// Content is the memory text, at most MaxContentChars characters.
	Content string `json:"content" gorm:"not null"`

	// ContentHash is the hex SHA-256 of Content. Unique among non-deleted rows.
	ContentHash string `json:"contentHash" gorm:"not null;column:content_hash"`

	// Tier is the current durability tier.
	Tier Tier `json:"tier" gorm:"not null;default:'active'"`

	// ResonancePhi is the accumulated gravitational weight, clamped to [0,5].
	ResonancePhi float64 `json:"resonancePhi" gorm:"not null;default:0;column:resonance_phi"`

	// IsCatalyst marks a breakthrough memory. Catalysts seed phi at 1.0 and
	// receive the larger consolidation boost.
	IsCatalyst bool `json:"isCatalyst" gorm:"not null;default:false;column:is_catalyst"`

	AccessCount    int64      `json:"accessCount" gorm:"not null;default:0;column:access_count"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty" gorm:"column:last_accessed_at"`

	// AccessedInConversations is the set of conversation ids this memory was
	// ever returned in; crossing two distinct conversations is a promotion
	// trigger.
	AccessedInConversations []string `json:"accessedInConversations,omitempty" gorm:"serializer:json;column:accessed_in_conversations"`

	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" gorm:"serializer:json"`
	Source   string   `json:"source,omitempty"`

	// Metadata carries fold ancestry (ancestorIds, ancestorPhiValues,
	// synthesisCoherenceScore, foldGeneration) and any caller-supplied fields.
	Metadata map[string]interface{} `json:"metadata,omitempty" gorm:"serializer:json"`

	// TierOverridden is set by a manual tier override; while the
	// tier.override_sticky setting is true, automatic evaluation skips
	// overridden rows.
	TierOverridden     bool   `json:"tierOverridden,omitempty" gorm:"not null;default:false;column:tier_overridden"`
	TierOverrideReason string `json:"tierOverrideReason,omitempty" gorm:"column:tier_override_reason"`

	CreatedAt time.Time  `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"column:deleted_at"`
}

// TableName implements gorm.Tabler.
func (Memory) TableName() string { return "memories" }

// Deleted reports whether the row is soft-deleted.
func (m *Memory) Deleted() bool { return m.DeletedAt != nil }

// SeenInConversation reports whether the conversation id is already in the
// accessed set.
func (m *Memory) SeenInConversation(conversationID string) bool {
	for _, c := range m.AccessedInConversations {
		if c == conversationID {
			return true
		}
	}
	return false
}

// AncestorIDs parses metadata.ancestorIds back into UUIDs. Returns nil when
// the memory was not fold-manifested.
func (m *Memory) AncestorIDs() []uuid.UUID {
	raw, ok := m.Metadata["ancestorIds"]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		// Round-tripped through typed code rather than JSON.
		if typed, ok := raw.([]string); ok {
			list = make([]interface{}, len(typed))
			for i, s := range typed {
				list[i] = s
			}
		} else {
			return nil
		}
	}
	ids := make([]uuid.UUID, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Association is an undirected weighted edge between two memories. The pair
// is normalized so MemoryAID < MemoryBID; the composite primary key makes a
// duplicate edge for the same unordered pair impossible.
type Association struct {
	MemoryAID uuid.UUID `json:"memoryAId" gorm:"primaryKey;column:memory_a_id"`
	MemoryBID uuid.UUID `json:"memoryBId" gorm:"primaryKey;column:memory_b_id"`

	// Strength is non-negative and only decreases through the explicit decay
	// policy.
	Strength float64 `json:"strength" gorm:"not null;default:0"`

	// Context is the provenance tag, e.g. "co-occurrence" or
	// "autonomous_synthesis".
	Context string `json:"context"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

// TableName implements gorm.Tabler.
func (Association) TableName() string { return "associations" }

// NormalizePair orders two memory ids into the canonical (a < b) edge key.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// Association contexts.
const (
	AssociationContextCoOccurrence = "co-occurrence"
	AssociationContextSynthesis    = "autonomous_synthesis"
)

// CategoryFold is the category assigned to fold-manifested memories.
const CategoryFold = "the_fold"

// SettingType tags the runtime type of a setting value.
type SettingType string

const (
	SettingString   SettingType = "string"
	SettingNumber   SettingType = "number"
	SettingBoolean  SettingType = "boolean"
	SettingDuration SettingType = "duration"
)

// Setting is a runtime-tunable configuration value stored as text. Values are
// parsed and validated at read time; raw strings never cross the config
// boundary.
type Setting struct {
	Name      string      `json:"name" gorm:"primaryKey"`
	Value     string      `json:"value" gorm:"not null"`
	ValueType SettingType `json:"valueType" gorm:"not null;column:value_type"`
	UpdatedAt time.Time   `json:"updatedAt" gorm:"not null"`
}

// TableName implements gorm.Tabler.
func (Setting) TableName() string { return "settings" }

// Float64 parses the setting as a number.
func (s *Setting) Float64() (float64, error) {
	if s.ValueType != SettingNumber {
		return 0, fmt.Errorf("setting %s: expected number, got %s", s.Name, s.ValueType)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", s.Name, err)
	}
	return v, nil
}

// Int parses the setting as an integer-valued number.
func (s *Setting) Int() (int, error) {
	f, err := s.Float64()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Bool parses the setting as a boolean.
func (s *Setting) Bool() (bool, error) {
	if s.ValueType != SettingBoolean {
		return false, fmt.Errorf("setting %s: expected boolean, got %s", s.Name, s.ValueType)
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s.Value))
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", s.Name, err)
	}
	return v, nil
}

// Duration parses the setting as a Go duration string (e.g. "30m").
func (s *Setting) Duration() (time.Duration, error) {
	if s.ValueType != SettingDuration {
		return 0, fmt.Errorf("setting %s: expected duration, got %s", s.Name, s.ValueType)
	}
	v, err := time.ParseDuration(strings.TrimSpace(s.Value))
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", s.Name, err)
	}
	return v, nil
}

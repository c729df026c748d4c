package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// canonicalJSON produces deterministic JSON output with sorted map keys.
// Go maps have random iteration order and PostgreSQL JSONB may reorder
// keys, so hashing needs a canonical encoding.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}

// Entry is an immutable audit log record. Entries form a hash chain:
// each hash covers the entry content plus the previous entry's hash,
// so any rewrite of history breaks the chain.
type Entry struct {
	ID       types.ID `json:"id"`
	Sequence int64    `json:"sequence"`
	Hash     string   `json:"hash"`
	PrevHash string   `json:"prev_hash"`

	ActorID   *types.ID `json:"actor_id,omitempty"`
	ActorRole string    `json:"actor_role,omitempty"`

	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   *types.ID      `json:"entity_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewEntry creates an audit entry. The hash is computed by the
// repository at append time, once the previous hash is known.
func NewEntry(action, entityType string, entityID *types.ID, detail map[string]any) *Entry {
	return &Entry{
		ID:         types.NewID(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		// Truncate to microseconds so the value survives a
		// PostgreSQL round-trip unchanged.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// WithActor records who performed the action
func (e *Entry) WithActor(actorID types.ID, role string) *Entry {
	if !actorID.IsZero() {
		e.ActorID = &actorID
	}
	e.ActorRole = role
	return e
}

// WithRequest records where the action came from
func (e *Entry) WithRequest(ip, userAgent string) *Entry {
	e.IPAddress = ip
	e.UserAgent = userAgent
	return e
}

// computeHash calculates the SHA-256 hash over the entry content and
// the previous hash. Timestamps hash in UTC RFC3339Nano so the result
// is independent of the machine's timezone.
func (e *Entry) computeHash() string {
	data := map[string]any{
		"id":          e.ID,
		"created_at":  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"prev_hash":   e.PrevHash,
		"action":      e.Action,
		"entity_type": e.EntityType,
	}
	if e.ActorID != nil {
		data["actor_id"] = e.ActorID
	}
	if e.ActorRole != "" {
		data["actor_role"] = e.ActorRole
	}
	if e.EntityID != nil {
		data["entity_id"] = e.EntityID
	}
	if len(e.Detail) > 0 {
		data["detail"] = e.Detail
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// VerifyHash reports whether the stored hash matches the content
func (e *Entry) VerifyHash() bool {
	return e.Hash == e.computeHash()
}

// ListEntriesFilter defines filters for listing audit entries
type ListEntriesFilter struct {
	ActorID    *types.ID  `json:"actor_id,omitempty"`
	Action     string     `json:"action,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   *types.ID  `json:"entity_id,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/errors"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/metrics"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

const entryColumns = `id, sequence, hash, prev_hash, actor_id, actor_role,
	action, entity_type, entity_id, detail, ip_address, user_agent, created_at`

// Repository provides append-only audit log storage. Appends are
// serialized so the hash chain never forks.
type Repository struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	lastHash string
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Initialize loads the chain head from the database
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT hash FROM audit_entries
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&hash)

	if err != nil && err != pgx.ErrNoRows {
		return errors.Wrap(err, "failed to load audit chain head")
	}

	r.lastHash = hash
	return nil
}

// Append links the entry to the chain and persists it
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.PrevHash = r.lastHash
	entry.Hash = entry.computeHash()

	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit detail")
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO audit_entries (
			id, hash, prev_hash, actor_id, actor_role,
			action, entity_type, entity_id, detail,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING sequence`,
		entry.ID, entry.Hash, entry.PrevHash, entry.ActorID, entry.ActorRole,
		entry.Action, entry.EntityType, entry.EntityID, detailJSON,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	).Scan(&entry.Sequence)

	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.lastHash = entry.Hash
	metrics.RecordAuditEntry()
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var detailJSON []byte

	err := row.Scan(
		&e.ID, &e.Sequence, &e.Hash, &e.PrevHash, &e.ActorID, &e.ActorRole,
		&e.Action, &e.EntityType, &e.EntityID, &detailJSON,
		&e.IPAddress, &e.UserAgent, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
			e.Detail = nil
		}
	}

	return &e, nil
}

// Get finds an audit entry by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Entry, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM audit_entries WHERE id = $1`, entryColumns), id)

	e, err := scanEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("audit entry", id.String())
		}
		return nil, errors.Wrap(err, "failed to get audit entry")
	}
	return e, nil
}

// List lists audit entries with filters, newest first
func (r *Repository) List(ctx context.Context, filter ListEntriesFilter) ([]Entry, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argNum))
		args = append(args, *filter.ActorID)
		argNum++
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", argNum))
		args = append(args, filter.Action+"%")
		argNum++
	}
	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argNum))
		args = append(args, filter.EntityType)
		argNum++
	}
	if filter.EntityID != nil {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argNum))
		args = append(args, *filter.EntityID)
		argNum++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *filter.From)
		argNum++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
		args = append(args, *filter.To)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		%s
		ORDER BY sequence DESC
		LIMIT $%d OFFSET $%d`, entryColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, *e)
	}

	return entries, total, nil
}

// VerifyResult reports the outcome of a chain verification
type VerifyResult struct {
	Valid          bool     `json:"valid"`
	Checked        int      `json:"checked"`
	ContentValid   int      `json:"content_valid"`
	ContentInvalid int      `json:"content_invalid"`
	LinkageValid   int      `json:"linkage_valid"`
	LinkageInvalid int      `json:"linkage_invalid"`
	Violations     []string `json:"violations,omitempty"`
}

// VerifyChain verifies the newest entries of the audit chain. Content
// check recomputes each hash from the stored fields; linkage check
// walks the prev_hash links.
func (r *Repository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_entries
		ORDER BY sequence DESC
		LIMIT $1`, entryColumns), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, *e)
	}

	result := &VerifyResult{Valid: true}

	// Entries come newest-first, so each entry's hash must match the
	// prev_hash of the entry scanned before it.
	var expectedHash string
	for i, e := range entries {
		if e.VerifyHash() {
			result.ContentValid++
		} else {
			result.ContentInvalid++
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("content tampered: entry %s (seq %d)", e.ID, e.Sequence))
		}

		if i > 0 {
			if e.Hash == expectedHash {
				result.LinkageValid++
			} else {
				result.LinkageInvalid++
				result.Valid = false
				result.Violations = append(result.Violations,
					fmt.Sprintf("chain broken: entry %s (seq %d) does not match next entry's prev_hash", e.ID, e.Sequence))
			}
		}

		expectedHash = e.PrevHash
		result.Checked++
	}

	return result, nil
}

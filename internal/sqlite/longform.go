package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// chainFrom selects every block reachable from the heads bound by the
// caller's "heads" CTE, following next to the end of each chain.
const chainFrom = `chain(id, content, next, created, updated, depth) AS (
    SELECT tb.id, tb.content, tb.next, tb.created, tb.updated, 0
    FROM textblock tb JOIN heads h ON tb.id = h.id
    UNION ALL
    SELECT tb.id, tb.content, tb.next, tb.created, tb.updated, c.depth + 1
    FROM textblock tb JOIN chain c ON tb.id = c.next
)`

// CreateBlockAfter allocates an empty block and splices it between block and
// its former successor.
func CreateBlockAfter(tx types.Tx, block types.ID) (types.ID, error) {
	next, err := blockNext(tx, block)
	if err != nil {
		return types.ID{}, err
	}
	middle, err := createBlock(tx, "")
	if err != nil {
		return types.ID{}, err
	}
	if err := setNext(tx, block, types.NullID{ID: middle, Valid: true}); err != nil {
		return types.ID{}, err
	}
	if next.Valid {
		if err := setNext(tx, middle, next); err != nil {
			return types.ID{}, err
		}
	}
	return middle, nil
}

// CreateBlockBefore allocates an empty block in front of block. When block
// heads a long-form value the value is re-aimed at the new block.
func CreateBlockBefore(tx types.Tx, block types.ID) (types.ID, error) {
	if _, err := blockNext(tx, block); err != nil {
		return types.ID{}, err
	}

	var prev types.ID
	err := tx.QueryRow("SELECT id FROM textblock WHERE next = ?", block).Scan(&prev)
	hasPrev := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return types.ID{}, fmt.Errorf("finding block before %s: %w", block, err)
	}

	middle, err := createBlock(tx, "")
	if err != nil {
		return types.ID{}, err
	}
	if hasPrev {
		if err := setNext(tx, prev, types.NullID{ID: middle, Valid: true}); err != nil {
			return types.ID{}, err
		}
	} else if _, err := tx.Exec(
		"UPDATE longform_attribute SET value = ?, updated = ? WHERE value = ?",
		middle, timestamp(time.Now()), block,
	); err != nil {
		return types.ID{}, fmt.Errorf("moving long-form head to %s: %w", middle, translate(err))
	}
	if err := setNext(tx, middle, types.NullID{ID: block, Valid: true}); err != nil {
		return types.ID{}, err
	}
	return middle, nil
}

// SetBlockContent replaces the content of a block.
func SetBlockContent(tx types.Tx, block types.ID, content string) error {
	res, err := tx.Exec(
		"UPDATE textblock SET content = ?, updated = ? WHERE id = ?",
		content, timestamp(time.Now()), block,
	)
	if err != nil {
		return fmt.Errorf("setting content of block %s: %w", block, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("setting content of block %s: %w", block, err)
	} else if n == 0 {
		return fmt.Errorf("block %s: %w", block, types.ErrNotFound)
	}
	return nil
}

// GetBlock loads a single block.
func GetBlock(tx types.Tx, id types.ID) (*types.TextBlock, error) {
	var (
		b                types.TextBlock
		next             types.NullID
		created, updated string
	)
	err := tx.QueryRow(
		"SELECT id, content, next, created, updated FROM textblock WHERE id = ?", id,
	).Scan(&b.ID, &b.Content, &next, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting block %s: %w", id, err)
	}
	fillBlock(&b, next, created, updated)
	return &b, nil
}

// GetLongform returns the ordered block sequence of a long-form value,
// starting at its head and following next to the end.
func GetLongform(tx types.Tx, longformID types.ID) (*types.LongformContent, error) {
	var one int
	err := tx.QueryRow("SELECT 1 FROM longform_attribute WHERE id = ?", longformID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("long-form value %s: %w", longformID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting long-form value %s: %w", longformID, err)
	}

	rows, err := tx.Query(`WITH RECURSIVE heads(id) AS (
    SELECT value FROM longform_attribute WHERE id = ?
), `+chainFrom+`
SELECT id, content, next, created, updated FROM chain ORDER BY depth`, longformID)
	if err != nil {
		return nil, fmt.Errorf("reading long-form value %s: %w", longformID, err)
	}
	defer rows.Close()

	content := &types.LongformContent{ID: longformID, Blocks: []types.TextBlock{}}
	for rows.Next() {
		var (
			b                types.TextBlock
			next             types.NullID
			created, updated string
		)
		if err := rows.Scan(&b.ID, &b.Content, &next, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning block of %s: %w", longformID, err)
		}
		fillBlock(&b, next, created, updated)
		content.Blocks = append(content.Blocks, b)
	}
	return content, rows.Err()
}

// PruneOrphanBlocks deletes every block that is not reachable from the head
// of a long-form value and reports how many were removed.
func PruneOrphanBlocks(tx types.Tx) (int64, error) {
	res, err := tx.Exec(`WITH RECURSIVE heads(id) AS (
    SELECT value FROM longform_attribute
), ` + chainFrom + `
DELETE FROM textblock WHERE id NOT IN (SELECT id FROM chain)`)
	if err != nil {
		return 0, fmt.Errorf("pruning orphan blocks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning orphan blocks: %w", err)
	}
	return n, nil
}

// deleteChains removes the block chains starting at heads. The heads must
// no longer be referenced by a long-form value.
func deleteChains(tx types.Tx, heads []types.ID) error {
	if len(heads) == 0 {
		return nil
	}
	_, err := tx.Exec(`WITH RECURSIVE heads(id) AS (
    `+valuesList(len(heads))+`
), `+chainFrom+`
DELETE FROM textblock WHERE id IN (SELECT id FROM chain)`, idArgs(heads)...)
	if err != nil {
		return fmt.Errorf("deleting block chains: %w", err)
	}
	return nil
}

// createBlock inserts a detached block.
func createBlock(tx types.Tx, content string) (types.ID, error) {
	id := types.NewID()
	ts := timestamp(time.Now())
	if _, err := tx.Exec(
		"INSERT INTO textblock (id, content, created, updated) VALUES (?, ?, ?, ?)",
		id, content, ts, ts,
	); err != nil {
		return types.ID{}, fmt.Errorf("creating block: %w", err)
	}
	return id, nil
}

// blockNext returns the successor of block, or ErrNotFound if block does
// not exist.
func blockNext(tx types.Tx, block types.ID) (types.NullID, error) {
	var next types.NullID
	err := tx.QueryRow("SELECT next FROM textblock WHERE id = ?", block).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return next, fmt.Errorf("block %s: %w", block, types.ErrNotFound)
	}
	if err != nil {
		return next, fmt.Errorf("getting block %s: %w", block, err)
	}
	return next, nil
}

func setNext(tx types.Tx, block types.ID, next types.NullID) error {
	if _, err := tx.Exec(
		"UPDATE textblock SET next = ?, updated = ? WHERE id = ?",
		next, timestamp(time.Now()), block,
	); err != nil {
		return fmt.Errorf("linking block %s: %w", block, translate(err))
	}
	return nil
}

func fillBlock(b *types.TextBlock, next types.NullID, created, updated string) {
	if next.Valid {
		n := next.ID
		b.Next = &n
	}
	b.CreatedAt = parseTimestamp(created)
	b.UpdatedAt = parseTimestamp(updated)
}

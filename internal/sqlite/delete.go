package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// DeleteEntity removes an entity and, through cascades, all of its values.
// Returns ErrNotFound if the entity does not exist and
// ErrReferentialIntegrityViolation while another entity still references it.
func DeleteEntity(tx types.Tx, id types.ID) error {
	heads, err := longformHeads(tx, id)
	if err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM entity WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, translate(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("entity %s: %w", id, types.ErrNotFound)
	}

	if err := deleteChains(tx, heads); err != nil {
		return err
	}
	entitiesDeletedTotal.Inc()
	log.WithFields(log.Fields{"entity": id.String()}).Debug("deleted entity")
	return nil
}

// DeleteAttributeValue removes one value row from whichever value table
// holds it. Returns ErrNotFound if no table does and
// ErrRequiredFieldViolation if the value belongs to a required attribute of
// a live entity. Deleting a long-form value also deletes its blocks.
func DeleteAttributeValue(tx types.Tx, valueID types.ID) error {
	for _, table := range valueTables {
		var head types.ID
		if table.name == longformTable.name {
			err := tx.QueryRow("SELECT value FROM longform_attribute WHERE id = ?", valueID).Scan(&head)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("finding long-form value %s: %w", valueID, err)
			}
		}

		res, err := tx.Exec("DELETE FROM "+table.name+" WHERE id = ?", valueID)
		if err != nil {
			return fmt.Errorf("deleting value %s: %w", valueID, translate(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting value %s: %w", valueID, err)
		}
		if n == 0 {
			continue
		}
		if table.name == longformTable.name {
			return deleteChains(tx, []types.ID{head})
		}
		return nil
	}
	return fmt.Errorf("attribute value %s: %w", valueID, types.ErrNotFound)
}

// longformHeads returns the head blocks of every long-form value of entity.
func longformHeads(tx types.Tx, entity types.ID) ([]types.ID, error) {
	rows, err := tx.Query("SELECT value FROM longform_attribute WHERE entity = ?", entity)
	if err != nil {
		return nil, fmt.Errorf("finding long-form values of %s: %w", entity, err)
	}
	defer rows.Close()

	var heads []types.ID
	for rows.Next() {
		var h types.ID
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning long-form head: %w", err)
		}
		heads = append(heads, h)
	}
	return heads, rows.Err()
}

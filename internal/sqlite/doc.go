// Package sqlite implements the cortex entity store on SQLite.
//
// Entity schemas and attribute schemas are rows; entities are bags of values
// spread over one table per physical value type. Arity, required-field and
// reference invariants are enforced by triggers and foreign keys so they hold
// for every writer, not only this package. Reads walk a field-request tree
// level by level, issuing one batched query per value table per level.
//
// Every operation takes a types.Tx and never commits; Backend.Update and
// Backend.View own the transaction boundary.
package sqlite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortex_store_queries_total",
		Help: "Cumulative number of batched value-table queries issued by entity reads.",
	}, []string{"table"})
	entitiesAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortex_store_entities_added_total",
		Help: "Cumulative number of entities written, including nested entities.",
	})
	entitiesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortex_store_entities_deleted_total",
		Help: "Cumulative number of entities deleted.",
	})
	integrityViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortex_store_integrity_violations_total",
		Help: "Cumulative number of writes rejected by storage triggers or foreign keys.",
	}, []string{"kind"})
)

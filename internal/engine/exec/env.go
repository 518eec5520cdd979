// Package exec is the executor: it consumes a parsed statement from
// internal/engine/sql and dispatches by node kind, accelerating SELECT
// through an index when the WHERE clause allows it and falling back to a
// full heap scan otherwise.
package exec

import (
	"github.com/sirupsen/logrus"

	"pagedb/internal/storage/catalog"
)

// Env is the executor's handle on the currently open database: the
// catalog it dispatches every statement against, plus a logger for the
// access-path tracing the executor emits at Debug (see ResultSet.Plan).
type Env struct {
	Catalog *catalog.Catalog
	log     *logrus.Entry
}

// New builds an executor environment over an already-open catalog.
func New(cat *catalog.Catalog, log *logrus.Logger) *Env {
	if log == nil {
		log = logrus.New()
	}
	return &Env{Catalog: cat, log: log.WithField("component", "exec")}
}

// Row is one result row, keyed by column name for display — the same
// shape the teacher's own executor returns from a SELECT.
type Row map[string]any

// ResultSet is the outcome of one statement: Cols/Rows are populated for
// SELECT (Cols nil otherwise); RowsAffected and Status are populated for
// DDL/DML. Plan records which access path a SELECT took (heap-scan,
// index:<name>, or index-intersect) for diagnostic logging.
type ResultSet struct {
	Cols         []string
	Rows         []Row
	RowsAffected int
	Status       catalog.Status
	Plan         string
}

package catalog

import (
	"fmt"

	"pagedb/internal/storage/heap"
	"pagedb/internal/storage/index"
	"pagedb/internal/storage/record"
)

// CreateTable registers a new table, allocates its heap, and auto-creates
// its primary-key index plus one UNIQUE index per UNIQUE-declared column.
func (c *Catalog) CreateTable(name string, schema *record.Schema, primaryKey []uint32) (*TableInfo, Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tablesByName[name]; exists {
		return nil, StatusTableAlreadyExists, nil
	}

	metaID, frame, err := c.pool.NewPage()
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("catalog: create table %q: %w", name, err)
	}
	if frame == nil {
		return nil, StatusFailed, fmt.Errorf("catalog: create table %q: buffer pool exhausted", name)
	}
	if err := c.pool.UnpinPage(metaID, false); err != nil {
		return nil, StatusFailed, err
	}

	h, err := heap.Create(c.pool)
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("catalog: create table %q: %w", name, err)
	}

	t := &TableInfo{
		ID:          c.nextTableID,
		Name:        name,
		Schema:      schema,
		PrimaryKey:  primaryKey,
		FirstPageID: h.FirstPageID(),
		MetaPageID:  metaID,
		Heap:        h,
	}
	c.nextTableID++

	if err := c.persistTableLocked(t); err != nil {
		return nil, StatusFailed, err
	}
	c.tablesByID[t.ID] = t
	c.tablesByName[t.Name] = t
	if err := c.persistCatalogMetaLocked(); err != nil {
		return nil, StatusFailed, err
	}

	if _, status, err := c.createIndexLocked(t, pkIndexName(name), primaryKey, true); err != nil || !status.OK() {
		return t, status, err
	}
	for _, col := range schema.Columns {
		if !col.Unique || uint32SliceContains(primaryKey, col.Index) {
			continue
		}
		if _, status, err := c.createIndexLocked(t, uniqueIndexName(name, col.Name), []uint32{col.Index}, false); err != nil || !status.OK() {
			return t, status, err
		}
	}
	return t, StatusSuccess, nil
}

func uint32SliceContains(s []uint32, v uint32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// CreateIndex creates a secondary index on table over the named columns.
// The column set must equal the table's primary key, include at least one
// UNIQUE column, or be provably unique over the table's current data — in
// the last case the columns are marked UNIQUE.
func (c *Catalog) CreateIndex(table, name string, columns []string) (*IndexInfo, Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tablesByName[table]
	if !ok {
		return nil, StatusTableNotExist, nil
	}
	for _, ix := range t.Indexes {
		if ix.Name == name {
			return nil, StatusIndexAlreadyExists, nil
		}
	}

	keyMap := make([]uint32, len(columns))
	for i, colName := range columns {
		col, ok := t.Schema.ColumnByName(colName)
		if !ok {
			return nil, StatusColumnNameNotExist, nil
		}
		keyMap[i] = col.Index
	}

	if !keyMapEqual(keyMap, t.PrimaryKey) && !anyColumnUnique(t.Schema, keyMap) {
		unique, err := c.isProvablyUniqueLocked(t, keyMap)
		if err != nil {
			return nil, StatusFailed, err
		}
		if !unique {
			return nil, StatusColumnNotUnique, nil
		}
		for _, pos := range keyMap {
			t.Schema.Columns[pos].Unique = true
		}
		if err := c.persistTableLocked(t); err != nil {
			return nil, StatusFailed, err
		}
	}

	return c.createIndexLocked(t, name, keyMap, keyMapEqual(keyMap, t.PrimaryKey))
}

func anyColumnUnique(schema *record.Schema, keyMap []uint32) bool {
	for _, pos := range keyMap {
		if schema.Columns[pos].Unique {
			return true
		}
	}
	return false
}

// isProvablyUniqueLocked scans table's current rows, returning true if no
// two rows share the same projected key.
func (c *Catalog) isProvablyUniqueLocked(t *TableInfo, keyMap []uint32) (bool, error) {
	ks := keySchemaFor(t.Schema, keyMap)
	width, err := index.WidthFor(ks.PackedSize())
	if err != nil {
		return false, err
	}
	seen := make(map[string]struct{})
	it := heap.NewIterator(t.Heap, t.Schema)
	for it.Next() {
		row, err := it.Row()
		if err != nil {
			return false, err
		}
		key, err := ks.Encode(row.Project(intSlice(keyMap)), width)
		if err != nil {
			return false, err
		}
		if _, dup := seen[string(key)]; dup {
			return false, nil
		}
		seen[string(key)] = struct{}{}
	}
	return true, it.Err()
}

// createIndexLocked allocates the index's metadata page and B+-tree,
// populates it from the table's current rows, and registers it.
func (c *Catalog) createIndexLocked(t *TableInfo, name string, keyMap []uint32, isPrimary bool) (*IndexInfo, Status, error) {
	ks := keySchemaFor(t.Schema, keyMap)

	metaID, frame, err := c.pool.NewPage()
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("catalog: create index %q: %w", name, err)
	}
	if frame == nil {
		return nil, StatusFailed, fmt.Errorf("catalog: create index %q: buffer pool exhausted", name)
	}
	if err := c.pool.UnpinPage(metaID, false); err != nil {
		return nil, StatusFailed, err
	}

	tree, err := index.Create(c.pool, ks)
	if err != nil {
		return nil, StatusFailed, fmt.Errorf("catalog: create index %q: %w", name, err)
	}

	it := heap.NewIterator(t.Heap, t.Schema)
	for it.Next() {
		row, err := it.Row()
		if err != nil {
			return nil, StatusFailed, err
		}
		key, err := ks.Encode(row.Project(intSlice(keyMap)), tree.Width())
		if err != nil {
			return nil, StatusFailed, err
		}
		ok, err := tree.Insert(key, row.RID)
		if err != nil {
			return nil, StatusFailed, err
		}
		if !ok {
			return nil, StatusFailed, fmt.Errorf("catalog: create index %q: duplicate key on a column set expected to be unique", name)
		}
	}
	if err := it.Err(); err != nil {
		return nil, StatusFailed, err
	}

	ix := &IndexInfo{
		ID:         c.nextIndexID,
		Name:       name,
		TableID:    t.ID,
		IsPrimary:  isPrimary,
		KeyMap:     keyMap,
		MetaPageID: metaID,
		KeySchema:  ks,
		Tree:       tree,
	}
	c.nextIndexID++

	if err := c.persistIndexLocked(ix); err != nil {
		return nil, StatusFailed, err
	}
	c.indexesByID[ix.ID] = ix
	t.Indexes = append(t.Indexes, ix)
	if err := c.persistCatalogMetaLocked(); err != nil {
		return nil, StatusFailed, err
	}
	return ix, StatusSuccess, nil
}

// DropTable removes a table, its heap, and every index built on it.
func (c *Catalog) DropTable(name string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tablesByName[name]
	if !ok {
		return StatusTableNotExist, nil
	}

	for _, ix := range t.Indexes {
		if err := c.destroyIndexLocked(ix); err != nil {
			return StatusFailed, err
		}
	}
	t.Indexes = nil

	if err := t.Heap.FreeHeap(); err != nil {
		return StatusFailed, err
	}
	if _, err := c.pool.DeletePage(t.MetaPageID); err != nil {
		return StatusFailed, err
	}
	delete(c.tablesByID, t.ID)
	delete(c.tablesByName, t.Name)
	if err := c.persistCatalogMetaLocked(); err != nil {
		return StatusFailed, err
	}
	return StatusSuccess, nil
}

// DropIndex removes the named index from a specific table.
func (c *Catalog) DropIndex(table, name string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tablesByName[table]
	if !ok {
		return StatusTableNotExist, nil
	}
	for i, ix := range t.Indexes {
		if ix.Name != name {
			continue
		}
		if err := c.destroyIndexLocked(ix); err != nil {
			return StatusFailed, err
		}
		t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
		if err := c.persistCatalogMetaLocked(); err != nil {
			return StatusFailed, err
		}
		return StatusSuccess, nil
	}
	return StatusIndexNotFound, nil
}

// DropIndexByName removes every index named name across every table —
// the cascading form of DROP INDEX that takes no table qualifier.
func (c *Catalog) DropIndexByName(name string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, t := range c.tablesByID {
		for i := 0; i < len(t.Indexes); {
			ix := t.Indexes[i]
			if ix.Name != name {
				i++
				continue
			}
			if err := c.destroyIndexLocked(ix); err != nil {
				return StatusFailed, err
			}
			t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
			found = true
		}
	}
	if !found {
		return StatusIndexNotFound, nil
	}
	if err := c.persistCatalogMetaLocked(); err != nil {
		return StatusFailed, err
	}
	return StatusSuccess, nil
}

func (c *Catalog) destroyIndexLocked(ix *IndexInfo) error {
	if err := ix.Tree.Destroy(); err != nil {
		return err
	}
	if _, err := c.pool.DeletePage(ix.MetaPageID); err != nil {
		return err
	}
	delete(c.indexesByID, ix.ID)
	return nil
}

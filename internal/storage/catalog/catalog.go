package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/heap"
	"pagedb/internal/storage/index"
	"pagedb/internal/storage/record"
)

// Catalog is the name-to-id resolution layer and the sole entry point for
// DML: every insert/update/delete against a table's heap also walks that
// table's indexes here, so the two never drift apart.
type Catalog struct {
	mu   sync.Mutex
	pool *buffer.Pool
	log  *logrus.Entry

	nextTableID uint32
	nextIndexID uint32

	tablesByID   map[uint32]*TableInfo
	tablesByName map[string]*TableInfo
	indexesByID  map[uint32]*IndexInfo
}

func pkIndexName(table string) string { return fmt.Sprintf("_%s_PK_", table) }
func uniqueIndexName(table, col string) string {
	return fmt.Sprintf("_%s_UNI_%s_", table, col)
}

// Create initializes a brand-new catalog: it allocates the catalog meta
// page (always page 0 in a fresh database, see catalogMetaPageID) and
// writes its initial, empty contents.
func Create(pool *buffer.Pool, log *logrus.Logger) (*Catalog, error) {
	if log == nil {
		log = logrus.New()
	}
	id, frame, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("catalog: create: %w", err)
	}
	if frame == nil {
		return nil, fmt.Errorf("catalog: create: buffer pool exhausted")
	}
	if id != catalogMetaPageID {
		pool.UnpinPage(id, false)
		return nil, fmt.Errorf("catalog: create: expected the catalog meta page to be page %d, got %d (catalog must be the first thing created in a fresh database)", catalogMetaPageID, id)
	}
	meta := &catalogMeta{nextTableID: 1, nextIndexID: 1}
	metaBuf, err := marshalCatalogMeta(meta)
	if err != nil {
		pool.UnpinPage(id, false)
		return nil, err
	}
	copy(frame.Data(), metaBuf)
	if err := pool.UnpinPage(id, true); err != nil {
		return nil, err
	}

	return &Catalog{
		pool:         pool,
		log:          log.WithField("component", "catalog"),
		nextTableID:  meta.nextTableID,
		nextIndexID:  meta.nextIndexID,
		tablesByID:   make(map[uint32]*TableInfo),
		tablesByName: make(map[string]*TableInfo),
		indexesByID:  make(map[uint32]*IndexInfo),
	}, nil
}

// Open restores a catalog previously written by Create/Close: it reads the
// catalog meta page, then every table and index metadata page it
// references, reopening each table's heap and each index's tree.
func Open(pool *buffer.Pool, log *logrus.Logger) (*Catalog, error) {
	if log == nil {
		log = logrus.New()
	}
	frame, err := pool.FetchPage(catalogMetaPageID)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	if frame == nil {
		return nil, fmt.Errorf("catalog: open: buffer pool exhausted")
	}
	meta, err := unmarshalCatalogMeta(frame.Data())
	if err != nil {
		pool.UnpinPage(catalogMetaPageID, false)
		return nil, err
	}
	if err := pool.UnpinPage(catalogMetaPageID, false); err != nil {
		return nil, err
	}

	c := &Catalog{
		pool:         pool,
		log:          log.WithField("component", "catalog"),
		nextTableID:  meta.nextTableID,
		nextIndexID:  meta.nextIndexID,
		tablesByID:   make(map[uint32]*TableInfo),
		tablesByName: make(map[string]*TableInfo),
		indexesByID:  make(map[uint32]*IndexInfo),
	}

	for _, ref := range meta.tables {
		ti, err := c.loadTable(ref.pageID)
		if err != nil {
			return nil, fmt.Errorf("catalog: open: load table at page %d: %w", ref.pageID, err)
		}
		c.tablesByID[ti.ID] = ti
		c.tablesByName[ti.Name] = ti
	}
	for _, ref := range meta.indexes {
		ii, err := c.loadIndex(ref.pageID)
		if err != nil {
			return nil, fmt.Errorf("catalog: open: load index at page %d: %w", ref.pageID, err)
		}
		c.indexesByID[ii.ID] = ii
		if owner, ok := c.tablesByID[ii.TableID]; ok {
			owner.Indexes = append(owner.Indexes, ii)
		}
	}
	return c, nil
}

func (c *Catalog) loadTable(pageID disk.PageID) (*TableInfo, error) {
	frame, err := c.pool.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, fmt.Errorf("catalog: load table: buffer pool exhausted")
	}
	raw := append([]byte(nil), frame.Data()...)
	if err := c.pool.UnpinPage(pageID, false); err != nil {
		return nil, err
	}
	tm, err := unmarshalTableMeta(raw)
	if err != nil {
		return nil, err
	}
	schema, err := record.UnmarshalSchema(tm.schema)
	if err != nil {
		return nil, err
	}
	return &TableInfo{
		ID:          tm.id,
		Name:        tm.name,
		Schema:      schema,
		PrimaryKey:  tm.primaryKey,
		FirstPageID: tm.firstPageID,
		MetaPageID:  pageID,
		Heap:        heap.Open(c.pool, tm.firstPageID),
	}, nil
}

func (c *Catalog) loadIndex(pageID disk.PageID) (*IndexInfo, error) {
	frame, err := c.pool.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, fmt.Errorf("catalog: load index: buffer pool exhausted")
	}
	raw := append([]byte(nil), frame.Data()...)
	if err := c.pool.UnpinPage(pageID, false); err != nil {
		return nil, err
	}
	im, err := unmarshalIndexMeta(raw)
	if err != nil {
		return nil, err
	}
	owner, ok := c.tablesByID[im.tableID]
	if !ok {
		return nil, fmt.Errorf("catalog: load index: owning table %d not found", im.tableID)
	}
	ks := keySchemaFor(owner.Schema, im.keyMap)
	tree := index.Open(c.pool, ks, index.Width(im.width), im.rootPageID)
	return &IndexInfo{
		ID:         im.id,
		Name:       im.name,
		TableID:    im.tableID,
		IsPrimary:  im.isPrimary,
		KeyMap:     im.keyMap,
		MetaPageID: pageID,
		KeySchema:  ks,
		Tree:       tree,
	}, nil
}

func keySchemaFor(schema *record.Schema, keyMap []uint32) *index.KeySchema {
	cols := make([]record.Column, len(keyMap))
	for i, pos := range keyMap {
		cols[i] = schema.Columns[pos]
	}
	return &index.KeySchema{Columns: cols}
}

// Close persists the catalog meta page, then closes the buffer pool, which
// flushes every dirty frame. It writes no table or index metadata page
// itself.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.persistCatalogMetaLocked(); err != nil {
		return err
	}
	return c.pool.Close()
}

func (c *Catalog) persistCatalogMetaLocked() error {
	meta := &catalogMeta{nextTableID: c.nextTableID, nextIndexID: c.nextIndexID}
	ids := make([]uint32, 0, len(c.tablesByID))
	for id := range c.tablesByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := c.tablesByID[id]
		meta.tables = append(meta.tables, tableRef{id: t.ID, pageID: t.MetaPageID})
	}

	ixIDs := make([]uint32, 0, len(c.indexesByID))
	for id := range c.indexesByID {
		ixIDs = append(ixIDs, id)
	}
	sort.Slice(ixIDs, func(i, j int) bool { return ixIDs[i] < ixIDs[j] })
	for _, id := range ixIDs {
		ix := c.indexesByID[id]
		meta.indexes = append(meta.indexes, indexRef{id: ix.ID, pageID: ix.MetaPageID})
	}

	frame, err := c.pool.FetchPage(catalogMetaPageID)
	if err != nil {
		return err
	}
	if frame == nil {
		return fmt.Errorf("catalog: persist meta: buffer pool exhausted")
	}
	metaBuf, err := marshalCatalogMeta(meta)
	if err != nil {
		c.pool.UnpinPage(catalogMetaPageID, false)
		return err
	}
	copy(frame.Data(), metaBuf)
	return c.pool.UnpinPage(catalogMetaPageID, true)
}

func (c *Catalog) persistTableLocked(t *TableInfo) error {
	tm := &tableMeta{
		id:          t.ID,
		name:        t.Name,
		firstPageID: t.FirstPageID,
		primaryKey:  t.PrimaryKey,
		schema:      t.Schema.Marshal(),
	}
	buf := marshalTableMeta(tm)
	if len(buf) > disk.PageSize {
		return fmt.Errorf("catalog: table %q metadata (%d bytes) exceeds one page", t.Name, len(buf))
	}
	frame, err := c.pool.FetchPage(t.MetaPageID)
	if err != nil {
		return err
	}
	if frame == nil {
		return fmt.Errorf("catalog: persist table: buffer pool exhausted")
	}
	data := frame.Data()
	for i := range data {
		data[i] = 0
	}
	copy(data, buf)
	return c.pool.UnpinPage(t.MetaPageID, true)
}

func (c *Catalog) persistIndexLocked(ix *IndexInfo) error {
	im := &indexMeta{
		id:         ix.ID,
		name:       ix.Name,
		tableID:    ix.TableID,
		isPrimary:  ix.IsPrimary,
		width:      uint32(ix.Tree.Width()),
		rootPageID: ix.Tree.RootID(),
		keyMap:     ix.KeyMap,
	}
	buf := marshalIndexMeta(im)
	if len(buf) > disk.PageSize {
		return fmt.Errorf("catalog: index %q metadata (%d bytes) exceeds one page", ix.Name, len(buf))
	}
	frame, err := c.pool.FetchPage(ix.MetaPageID)
	if err != nil {
		return err
	}
	if frame == nil {
		return fmt.Errorf("catalog: persist index: buffer pool exhausted")
	}
	data := frame.Data()
	for i := range data {
		data[i] = 0
	}
	copy(data, buf)
	return c.pool.UnpinPage(ix.MetaPageID, true)
}

// GetTable looks up a table by name.
func (c *Catalog) GetTable(name string) (*TableInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tablesByName[name]
	return t, ok
}

// GetTables returns every table, ordered by id.
func (c *Catalog) GetTables() []*TableInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*TableInfo, 0, len(c.tablesByID))
	for _, t := range c.tablesByID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetIndex looks up an index by table and name.
func (c *Catalog) GetIndex(table, name string) (*IndexInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tablesByName[table]
	if !ok {
		return nil, false
	}
	for _, ix := range t.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return nil, false
}

// GetTableIndexes returns every index on a table, in creation order.
func (c *Catalog) GetTableIndexes(table string) ([]*IndexInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tablesByName[table]
	if !ok {
		return nil, false
	}
	return append([]*IndexInfo(nil), t.Indexes...), true
}

// GetIndexesForKeyMap returns every index on table whose key-map equals
// keyMap exactly (column positions, in order) — used by the optimizer to
// recognize an exact-match opportunity.
func (c *Catalog) GetIndexesForKeyMap(table string, keyMap []uint32) []*IndexInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tablesByName[table]
	if !ok {
		return nil
	}
	var out []*IndexInfo
	for _, ix := range t.Indexes {
		if keyMapEqual(ix.KeyMap, keyMap) {
			out = append(out, ix)
		}
	}
	return out
}

package disk

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ───────────────────────────────────────────────────────────────────────────
// Manager — the disk manager
// ───────────────────────────────────────────────────────────────────────────
//
// Manager owns the single backing file and is the only component permitted
// to compute physical offsets. Everything above it (buffer pool, heap,
// B+-tree, catalog) addresses pages purely by logical PageID.
//
// Physical offset, in pages, for logical id = extentIndex*BitmapSize + intra:
//
//	extentIndex*(BitmapSize+1) + 1 + intra + 1
//
// the first +1 reserves the database meta page (physical page 0), the
// second +1 reserves the extent's own bitmap page. Byte offset is that page
// number times PageSize.
type Manager struct {
	mu   sync.Mutex
	file *os.File
	path string
	meta *Meta
	log  *logrus.Entry
}

// Open opens an existing database file or creates a fresh one at path.
func Open(path string, log *logrus.Logger) (*Manager, error) {
	if log == nil {
		log = logrus.New()
	}
	entry := log.WithField("component", "disk")

	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	m := &Manager{file: f, path: path, log: entry}

	if isNew {
		m.meta = NewMeta()
		if err := m.writeMetaLocked(); err != nil {
			f.Close()
			return nil, err
		}
		entry.WithField("path", path).Info("created new database file")
	} else {
		buf := make([]byte, PageSize)
		if _, err := f.ReadAt(buf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("disk: read meta page: %w", err)
		}
		meta, err := UnmarshalMeta(buf)
		if err != nil {
			f.Close()
			return nil, err
		}
		m.meta = meta
		entry.WithField("path", path).Info("opened existing database file")
	}

	return m, nil
}

func (m *Manager) writeMetaLocked() error {
	buf, err := MarshalMeta(m.meta)
	if err != nil {
		return err
	}
	if _, err := m.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("disk: write meta page: %w", err)
	}
	return nil
}

// physicalPageNumber converts a logical PageID into a physical page number
// (counted in whole pages from the start of the file).
func physicalPageNumber(id PageID) int64 {
	extentIndex := int64(id) / BitmapSize
	intra := int64(id) % BitmapSize
	return extentIndex*(BitmapSize+1) + 1 + intra + 1
}

// bitmapPhysicalPageNumber returns the physical page number of the bitmap
// page that governs extentIndex.
func bitmapPhysicalPageNumber(extentIndex int64) int64 {
	return extentIndex*(BitmapSize+1) + 1
}

func (m *Manager) readPhysical(pageNo int64, buf []byte) error {
	off := pageNo * PageSize
	n, err := m.file.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err != nil {
		// Reads past end-of-file return a zero-filled page.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	return fmt.Errorf("disk: short read at page %d: got %d of %d bytes", pageNo, n, len(buf))
}

func (m *Manager) writePhysical(pageNo int64, buf []byte) error {
	off := pageNo * PageSize
	if _, err := m.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("disk: write at page %d: %w", pageNo, err)
	}
	return nil
}

func (m *Manager) readBitmap(extentIndex int64) (*BitmapPage, error) {
	buf := make([]byte, PageSize)
	if err := m.readPhysical(bitmapPhysicalPageNumber(extentIndex), buf); err != nil {
		return nil, err
	}
	return WrapBitmapPage(buf), nil
}

func (m *Manager) writeBitmap(extentIndex int64, bm *BitmapPage) error {
	return m.writePhysical(bitmapPhysicalPageNumber(extentIndex), bm.Bytes())
}

// AllocatePage reserves a fresh logical page, sets its bit in the owning
// extent's bitmap, and returns its PageID. It does not write page contents —
// callers (normally the buffer pool) are responsible for that.
func (m *Manager) AllocatePage() (PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for e := 0; e < len(m.meta.ExtentUsed); e++ {
		if m.meta.ExtentUsed[e] >= BitmapSize {
			continue
		}
		bm, err := m.readBitmap(int64(e))
		if err != nil {
			return InvalidPageID, err
		}
		bit := bm.FirstZeroBit(BitmapSize)
		if bit < 0 {
			continue // bitmap disagrees with counter; try next extent
		}
		bm.SetBit(bit)
		if err := m.writeBitmap(int64(e), bm); err != nil {
			return InvalidPageID, err
		}
		m.meta.ExtentUsed[e]++
		m.meta.NumAlloc++
		if err := m.writeMetaLocked(); err != nil {
			return InvalidPageID, err
		}
		id := PageID(int64(e)*BitmapSize + int64(bit))
		m.log.WithFields(logrus.Fields{"page_id": id, "extent": e}).Debug("allocated page")
		return id, nil
	}

	// No extent has room: open a new one.
	e := len(m.meta.ExtentUsed)
	bm := InitBitmapPage(make([]byte, PageSize))
	bm.SetBit(0)
	if err := m.writeBitmap(int64(e), bm); err != nil {
		return InvalidPageID, err
	}
	m.meta.ExtentUsed = append(m.meta.ExtentUsed, 1)
	m.meta.NumExtents++
	m.meta.NumAlloc++
	if err := m.writeMetaLocked(); err != nil {
		return InvalidPageID, err
	}
	id := PageID(int64(e) * BitmapSize)
	m.log.WithFields(logrus.Fields{"page_id": id, "extent": e}).Debug("allocated page in new extent")
	return id, nil
}

// DeallocatePage clears id's bit. Callers must not double-free a page, and
// must not reference a freed page from any live structure afterwards (§3.4
// invariant 2).
func (m *Manager) DeallocatePage(id PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := int64(id) / BitmapSize
	bit := int(int64(id) % BitmapSize)
	if e >= int64(len(m.meta.ExtentUsed)) {
		return fmt.Errorf("disk: deallocate page %d: extent %d does not exist", id, e)
	}
	bm, err := m.readBitmap(e)
	if err != nil {
		return err
	}
	bm.ClearBit(bit)
	if err := m.writeBitmap(e, bm); err != nil {
		return err
	}
	m.meta.ExtentUsed[e]--
	m.meta.NumAlloc--
	if err := m.writeMetaLocked(); err != nil {
		return err
	}
	m.log.WithField("page_id", id).Debug("deallocated page")
	return nil
}

// IsPageFree reports whether id's bit is currently clear.
func (m *Manager) IsPageFree(id PageID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := int64(id) / BitmapSize
	bit := int(int64(id) % BitmapSize)
	if e >= int64(len(m.meta.ExtentUsed)) {
		return true, nil
	}
	bm, err := m.readBitmap(e)
	if err != nil {
		return false, err
	}
	return !bm.TestBit(bit), nil
}

// ReadPage reads the page-sized contents of id into buf, which must be at
// least PageSize bytes.
func (m *Manager) ReadPage(id PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readPhysical(physicalPageNumber(id), buf[:PageSize])
}

// WritePage writes buf (at least PageSize bytes) to the physical location of id.
func (m *Manager) WritePage(id PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writePhysical(physicalPageNumber(id), buf[:PageSize])
}

// NumAllocatedPages returns the total number of pages currently allocated.
func (m *Manager) NumAllocatedPages() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta.NumAlloc
}

// Close flushes nothing further (every mutation above already wrote
// through) and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

// Path returns the database file path.
func (m *Manager) Path() string { return m.path }

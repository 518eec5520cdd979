// Package buffer implements the fixed-size buffer pool: a cache of page
// frames backed by the disk manager, with pin/unpin discipline and a
// pluggable replacement policy for choosing eviction victims.
//
// What: Pool hands out *Frame handles for logical page ids, fetching
// from disk on a miss and evicting via a free list first, the configured
// replacer.Replacer second.
// How: frames live in a fixed-size slice indexed by replacer.FrameID; a
// pageTable map tracks which logical PageID currently occupies which frame.
package buffer

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/replacer"
)

// Frame is a cached page: its logical id, raw bytes, pin count and dirty
// flag. Callers obtain a *Frame from the pool and must call Unpin when done.
type Frame struct {
	id       disk.PageID
	buf      []byte
	pinCount int
	dirty    bool
}

// ID returns the logical page this frame currently holds.
func (f *Frame) ID() disk.PageID { return f.id }

// Data returns the frame's raw page bytes. Mutating it does not mark the
// frame dirty — callers must still unpin with dirty=true.
func (f *Frame) Data() []byte { return f.buf }

// PinCount returns the frame's current pin count, chiefly for tests.
func (f *Frame) PinCount() int { return f.pinCount }

// Pool is the fixed-size page cache.
type Pool struct {
	mu       sync.Mutex
	disk     *disk.Manager
	replacer replacer.Replacer
	log      *logrus.Entry

	frames    []*Frame
	pageTable map[disk.PageID]replacer.FrameID
	freeList  []replacer.FrameID
}

// NewPool creates a pool of size frames backed by dm, choosing victims via
// r when the free list is exhausted.
func NewPool(dm *disk.Manager, r replacer.Replacer, size int, log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.New()
	}
	free := make([]replacer.FrameID, size)
	for i := range free {
		free[i] = replacer.FrameID(i)
	}
	return &Pool{
		disk:      dm,
		replacer:  r,
		log:       log.WithField("component", "buffer"),
		frames:    make([]*Frame, size),
		pageTable: make(map[disk.PageID]replacer.FrameID, size),
		freeList:  free,
	}
}

// Size returns the number of frames in the pool.
func (p *Pool) Size() int { return len(p.frames) }

// FetchPage pins and returns the frame holding id, reading it from disk on
// a miss. Returns an error if the page cannot be loaded and nil, nil if
// every frame is pinned and none can be evicted.
func (p *Pool) FetchPage(id disk.PageID) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.pageTable[id]; ok {
		f := p.frames[fid]
		f.pinCount++
		p.replacer.Pin(fid)
		return f, nil
	}

	fid, ok, err := p.victimLocked()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	buf := make([]byte, disk.PageSize)
	if err := p.disk.ReadPage(id, buf); err != nil {
		return nil, fmt.Errorf("buffer: fetch page %d: %w", id, err)
	}

	f := &Frame{id: id, buf: buf, pinCount: 1, dirty: false}
	p.installLocked(fid, f)
	return f, nil
}

// NewPage asks the disk manager for a fresh PageID and returns a pinned,
// zeroed frame for it. Returns (disk.InvalidPageID, nil, nil) if every
// frame is currently pinned.
func (p *Pool) NewPage() (disk.PageID, *Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok, err := p.victimLocked()
	if err != nil {
		return disk.InvalidPageID, nil, err
	}
	if !ok {
		return disk.InvalidPageID, nil, nil
	}

	id, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, fid)
		return disk.InvalidPageID, nil, fmt.Errorf("buffer: new page: %w", err)
	}

	f := &Frame{id: id, buf: disk.NewZeroPage(), pinCount: 1, dirty: false}
	p.installLocked(fid, f)
	return id, f, nil
}

// victimLocked returns a frame slot ready for reuse: free list first, then
// the replacer. If the chosen frame is dirty it is flushed first. Returns
// ok=false if no frame is available.
func (p *Pool) victimLocked() (replacer.FrameID, bool, error) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, true, nil
	}

	fid, ok := p.replacer.Victim()
	if !ok {
		return 0, false, nil
	}

	old := p.frames[fid]
	if old != nil {
		if old.dirty {
			if err := p.disk.WritePage(old.id, old.buf); err != nil {
				return 0, false, fmt.Errorf("buffer: flush victim %d: %w", old.id, err)
			}
		}
		delete(p.pageTable, old.id)
	}
	return fid, true, nil
}

func (p *Pool) installLocked(fid replacer.FrameID, f *Frame) {
	p.frames[fid] = f
	p.pageTable[f.id] = fid
}

// UnpinPage decrements id's pin count and, if dirty is set, marks the frame
// dirty. When the pin count reaches zero the frame becomes a replacer
// candidate. Calling this on a page that is not resident, or already at
// pin count zero, is a protocol violation and returns an error.
func (p *Pool) UnpinPage(id disk.PageID, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return fmt.Errorf("buffer: unpin page %d: not resident", id)
	}
	f := p.frames[fid]
	if f.pinCount == 0 {
		return fmt.Errorf("buffer: unpin page %d: already at pin count 0", id)
	}
	if dirty {
		f.dirty = true
	}
	f.pinCount--
	if f.pinCount == 0 {
		p.replacer.Unpin(fid)
	}
	return nil
}

// FlushPage writes id's frame back to disk and clears its dirty flag. Does
// not change pin count.
func (p *Pool) FlushPage(id disk.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return fmt.Errorf("buffer: flush page %d: not resident", id)
	}
	f := p.frames[fid]
	if err := p.disk.WritePage(f.id, f.buf); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", id, err)
	}
	f.dirty = false
	return nil
}

// FlushAll flushes every dirty resident frame, used on clean shutdown.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, fid := range p.pageTable {
		f := p.frames[fid]
		if !f.dirty {
			continue
		}
		if err := p.disk.WritePage(id, f.buf); err != nil {
			return fmt.Errorf("buffer: flush all, page %d: %w", id, err)
		}
		f.dirty = false
	}
	return nil
}

// DeletePage removes id from the pool and deallocates its backing page.
// Returns false without error if the page is currently pinned.
func (p *Pool) DeletePage(id disk.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		if err := p.disk.DeallocatePage(id); err != nil {
			return false, fmt.Errorf("buffer: delete page %d: %w", id, err)
		}
		return true, nil
	}
	f := p.frames[fid]
	if f.pinCount > 0 {
		return false, nil
	}

	delete(p.pageTable, id)
	p.frames[fid] = nil
	p.replacer.Pin(fid) // remove from candidacy, it no longer holds a page
	p.freeList = append(p.freeList, fid)

	if err := p.disk.DeallocatePage(id); err != nil {
		return false, fmt.Errorf("buffer: delete page %d: %w", id, err)
	}
	return true, nil
}

// PinCount reports id's current pin count, or 0 if not resident. Chiefly
// for tests checking that no page is left pinned.
func (p *Pool) PinCount(id disk.PageID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	fid, ok := p.pageTable[id]
	if !ok {
		return 0
	}
	return p.frames[fid].pinCount
}

// Close flushes every dirty frame and warns about any still-pinned page —
// a pin left open past shutdown is a caller bug, not a pool error, so this
// does not fail the close.
func (p *Pool) Close() error {
	if err := p.FlushAll(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, fid := range p.pageTable {
		if f := p.frames[fid]; f.pinCount > 0 {
			p.log.WithFields(logrus.Fields{"page_id": id, "pin_count": f.pinCount}).
				Warn("buffer pool closed with page still pinned")
		}
	}
	return nil
}

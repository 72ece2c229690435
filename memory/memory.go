package memory

import (
	"errors"
	"fmt"
)

var ErrAddressOutOfRange = errors.New("address out of range")

/*
Memory is the simulated physical RAM.

It is a plain byte array and has no notion of processes; the allocator
bitmap and the process directory are just regions of page 0. Memory is not
safe for concurrent use.
*/
type Memory struct {
	layout Layout
	data   []byte
}

// New returns zeroed memory with page 0 marked as allocated in the bitmap.
func New(layout Layout) *Memory {
	m := &Memory{
		layout: layout,
		data:   make([]byte, layout.Size()),
	}
	m.data[0] = 1
	return m
}

/*
FromImage creates memory from previously saved image. The image is copied,
caller may reuse the slice.
*/
func FromImage(layout Layout, image []byte) (*Memory, error) {
	if len(image) != layout.Size() {
		return nil, fmt.Errorf("image size %d doesn't match layout size %d (%s)", len(image), layout.Size(), layout)
	}
	m := &Memory{
		layout: layout,
		data:   make([]byte, len(image)),
	}
	copy(m.data, image)
	return m, nil
}

func (m *Memory) Layout() Layout {
	return m.layout
}

// Image returns a copy of the whole physical memory.
func (m *Memory) Image() []byte {
	image := make([]byte, len(m.data))
	copy(image, m.data)
	return image
}

// Get returns the byte at physical address "addr".
func (m *Memory) Get(addr int) (byte, error) {
	if addr < 0 || addr >= len(m.data) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrAddressOutOfRange, addr, len(m.data))
	}
	return m.data[addr], nil
}

// Put stores "value" at physical address "addr".
func (m *Memory) Put(addr int, value byte) error {
	if addr < 0 || addr >= len(m.data) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrAddressOutOfRange, addr, len(m.data))
	}
	m.data[addr] = value
	return nil
}

/*
Page returns the bytes of physical page "p". The returned slice aliases the
memory. Returns nil when "p" is outside of the page pool.
*/
func (m *Memory) Page(p Page) []byte {
	if !m.layout.ValidPage(int(p)) {
		return nil
	}
	start := m.layout.Address(int(p), 0)
	return m.data[start : start+m.layout.PageSize : start+m.layout.PageSize]
}

// Bitmap returns the allocation bitmap region of page 0.
func (m *Memory) Bitmap() []byte {
	n := m.layout.PageCount
	return m.data[0:n:n]
}

// Directory returns the process directory region of page 0.
func (m *Memory) Directory() []byte {
	n := m.layout.PageCount
	return m.data[n : 2*n : 2*n]
}

// Clear zeroes physical page "p".
func (m *Memory) Clear(p Page) {
	clear(m.Page(p))
}

package memory

import (
	"errors"
	"fmt"
	"math/bits"
)

const (
	// DefaultPageSize is the page size of the reference machine.
	DefaultPageSize = 256
	// DefaultPageCount is the number of physical pages of the reference machine.
	DefaultPageCount = 64
	// MaxPageCount is the largest pool size whose page numbers still fit into
	// a single byte of the bitmap, directory and page tables.
	MaxPageCount = 256
)

var ErrInvalidLayout = errors.New("invalid memory layout")

// Page describes a physical (or virtual) page index. Page numbers are
// stored in the simulated memory as single bytes.
type Page uint8

/*
Layout describes the sizing of the simulated physical memory.

Page 0 is reserved: bytes [0, PageCount) hold the allocation bitmap and
bytes [PageCount, 2*PageCount) hold the process directory.
*/
type Layout struct {
	PageSize  int
	PageCount int
	PageShift uint
}

// DefaultLayout returns the 256 x 64 reference layout.
func DefaultLayout() Layout {
	l, err := NewLayout(DefaultPageSize, DefaultPageCount)
	if err != nil {
		panic(err)
	}
	return l
}

/*
NewLayout validates the sizing constants and derives the page shift.
The page size must be a power of two and page 0 must be able to host both
the allocation bitmap and the process directory.
*/
func NewLayout(pageSize, pageCount int) (Layout, error) {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return Layout{}, fmt.Errorf("%w: page size %d is not a power of two", ErrInvalidLayout, pageSize)
	}
	if pageCount < 1 || pageCount > MaxPageCount {
		return Layout{}, fmt.Errorf("%w: page count %d must be in range [1, %d]", ErrInvalidLayout, pageCount, MaxPageCount)
	}
	if 2*pageCount > pageSize {
		return Layout{}, fmt.Errorf("%w: bitmap and directory for %d pages do not fit into a %d byte page", ErrInvalidLayout, pageCount, pageSize)
	}
	return Layout{
		PageSize:  pageSize,
		PageCount: pageCount,
		PageShift: uint(bits.TrailingZeros(uint(pageSize))),
	}, nil
}

// Size returns the total size of the physical memory in bytes.
func (l Layout) Size() int {
	return l.PageSize * l.PageCount
}

// OffsetMask returns the mask selecting the in-page offset of an address.
func (l Layout) OffsetMask() int {
	return l.PageSize - 1
}

// Address composes page number and in-page offset into a flat address.
func (l Layout) Address(page, offset int) int {
	return page<<l.PageShift | offset
}

// SplitAddress returns the page number and the in-page offset of the address.
func (l Layout) SplitAddress(addr int) (page, offset int) {
	return addr >> l.PageShift, addr & l.OffsetMask()
}

// ValidPage returns true when "p" is inside the physical page pool.
func (l Layout) ValidPage(p int) bool {
	return p >= 0 && p < l.PageCount
}

func (l Layout) String() string {
	return fmt.Sprintf("%d pages x %d bytes", l.PageCount, l.PageSize)
}

package pmm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/ptsim/logger"
	"github.com/alphabill-org/ptsim/memory"
	"github.com/alphabill-org/ptsim/observability"
)

var (
	ErrOutOfPages   = errors.New("no free physical pages")
	ErrReservedPage = errors.New("page 0 is reserved")
	ErrInvalidPage  = errors.New("page is outside of the page pool")
)

type Statistics struct {
	Allocs    uint64
	Frees     uint64
	Exhausted uint64
}

/*
Allocator hands out physical pages tracked by the allocation bitmap which
lives in the first PageCount bytes of page 0. Byte "i" of the bitmap is 1
when page "i" is in use.

Allocator keeps no state of its own besides statistics, the bitmap in memory
is the single source of truth.
*/
type Allocator struct {
	mem   *memory.Memory
	stats Statistics
	log   *slog.Logger

	mAlloc     metric.Int64Counter
	mFree      metric.Int64Counter
	mExhausted metric.Int64Counter
}

func New(mem *memory.Memory, obs observability.Observability) (*Allocator, error) {
	if mem == nil {
		return nil, errors.New("memory is nil")
	}
	a := &Allocator{
		mem: mem,
		log: obs.Logger().With(logger.Module("pmm")),
	}
	if err := a.initMetrics(obs); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return a, nil
}

/*
Allocate reserves the lowest numbered free page. When all the pages are in
use ErrOutOfPages is returned and the bitmap is not modified.

Page 0 is never handed out, even when its bitmap byte has been overwritten
by a store through an unmapped page.
*/
func (a *Allocator) Allocate(ctx context.Context) (memory.Page, error) {
	bitmap := a.mem.Bitmap()
	for i := 1; i < len(bitmap); i++ {
		if bitmap[i] == 0 {
			bitmap[i] = 1
			a.stats.Allocs++
			a.mAlloc.Add(ctx, 1)
			a.log.Log(ctx, logger.LevelTrace, "page allocated", logger.Page(i))
			return memory.Page(i), nil
		}
	}
	a.stats.Exhausted++
	a.mExhausted.Add(ctx, 1)
	a.log.DebugContext(ctx, "allocation failed, all pages are in use")
	return 0, ErrOutOfPages
}

/*
Free marks the page as free. There is no reference counting, freeing a page
which is already free is allowed and caller must make sure the page is not
referenced by any page table.
*/
func (a *Allocator) Free(ctx context.Context, p memory.Page) error {
	if p == 0 {
		return ErrReservedPage
	}
	if !a.mem.Layout().ValidPage(int(p)) {
		return fmt.Errorf("%w: %d", ErrInvalidPage, p)
	}
	a.mem.Bitmap()[p] = 0
	a.stats.Frees++
	a.mFree.Add(ctx, 1)
	a.log.Log(ctx, logger.LevelTrace, "page freed", logger.Page(p))
	return nil
}

// IsAllocated returns true when page "p" is marked as used in the bitmap.
func (a *Allocator) IsAllocated(p memory.Page) bool {
	if !a.mem.Layout().ValidPage(int(p)) {
		return false
	}
	return a.mem.Bitmap()[p] != 0
}

// FreePages returns number of pages Allocate could still hand out.
func (a *Allocator) FreePages() int {
	cnt := 0
	for _, used := range a.mem.Bitmap()[1:] {
		if used == 0 {
			cnt++
		}
	}
	return cnt
}

func (a *Allocator) Stats() Statistics {
	return a.stats
}

func (a *Allocator) initMetrics(obs observability.Observability) (err error) {
	m := obs.Meter("pmm")

	if a.mAlloc, err = m.Int64Counter("page.alloc",
		metric.WithDescription("Number of physical pages allocated."),
		metric.WithUnit("{page}"),
	); err != nil {
		return fmt.Errorf("creating allocation counter: %w", err)
	}

	if a.mFree, err = m.Int64Counter("page.free",
		metric.WithDescription("Number of physical pages released."),
		metric.WithUnit("{page}"),
	); err != nil {
		return fmt.Errorf("creating free counter: %w", err)
	}

	if a.mExhausted, err = m.Int64Counter("page.exhausted",
		metric.WithDescription("Number of allocation requests which failed because all pages were in use."),
		metric.WithUnit("{request}"),
	); err != nil {
		return fmt.Errorf("creating exhaustion counter: %w", err)
	}

	if _, err = m.Int64ObservableGauge("page.free.count",
		metric.WithDescription("Number of free physical pages."),
		metric.WithUnit("{page}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(a.FreePages()))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating free pages gauge: %w", err)
	}

	return nil
}

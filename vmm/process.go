package vmm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/ptsim/logger"
	"github.com/alphabill-org/ptsim/memory"
	"github.com/alphabill-org/ptsim/observability"
)

/*
CreateProcess builds address space for process "pid": allocates page table
page, records it in the process directory and then allocates and maps
"pageCount" data pages starting from virtual page 0.

When memory runs out *AllocationError is returned. Unless the machine was
created with rollback enabled the pages allocated before the failure stay
allocated and mapped, ie the process is left partially constructed.
*/
func (m *Machine) CreateProcess(ctx context.Context, pid, pageCount int) (rErr error) {
	ctx, span := m.tracer.Start(ctx, "Machine.CreateProcess", trace.WithAttributes(observability.Process(pid), attribute.Int("pages", pageCount)))
	defer func() {
		m.mProc.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "create"), observability.ErrStatus(rErr)))
		if rErr != nil {
			var ae *AllocationError
			if errors.As(rErr, &ae) {
				span.SetAttributes(observability.Purpose(ae.Purpose))
			}
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	ptp, err := m.PageTablePage(pid)
	if err != nil {
		return err
	}
	if ptp != 0 {
		return fmt.Errorf("%w: proc %d page table is in page %d", ErrProcessExists, pid, ptp)
	}

	log := m.log.With(logger.Process(pid))
	if ptp, err = m.alloc.Allocate(ctx); err != nil {
		log.DebugContext(ctx, "no free page for the page table", logger.Error(err))
		return &AllocationError{Process: pid, Purpose: PurposePageTable}
	}
	// page might have been used before, stale entries would alias other processes' pages
	m.mem.Clear(ptp)
	m.setPageTablePage(pid, ptp)
	table := m.pageTable(ptp)

	for v := 0; v < pageCount; v++ {
		p, err := m.alloc.Allocate(ctx)
		if err != nil {
			log.DebugContext(ctx, fmt.Sprintf("out of memory after mapping %d of %d pages", v, pageCount), logger.Error(err))
			if m.conf.rollback {
				if err := m.releaseAddressSpace(ctx, pid, ptp); err != nil {
					return errors.Join(&AllocationError{Process: pid, Purpose: PurposeDataPage}, fmt.Errorf("rolling back: %w", err))
				}
			}
			return &AllocationError{Process: pid, Purpose: PurposeDataPage}
		}
		table[v] = byte(p)
	}

	log.DebugContext(ctx, fmt.Sprintf("address space created, %d data pages", pageCount), logger.Page(ptp))
	return nil
}

/*
KillProcess releases the address space of the process: all the pages mapped
by its page table, the page table page itself, and clears the directory slot.
*/
func (m *Machine) KillProcess(ctx context.Context, pid int) (rErr error) {
	ctx, span := m.tracer.Start(ctx, "Machine.KillProcess", trace.WithAttributes(observability.Process(pid)))
	defer func() {
		m.mProc.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "kill"), observability.ErrStatus(rErr)))
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	ptp, err := m.PageTablePage(pid)
	if err != nil {
		return err
	}
	// page 0 is never handed out by the allocator so it can't be a page table,
	// treating it as one would free pages listed in the bitmap and page 0 itself
	if ptp == 0 {
		return fmt.Errorf("%w: proc %d", ErrNoAddressSpace, pid)
	}

	if err := m.releaseAddressSpace(ctx, pid, ptp); err != nil {
		return fmt.Errorf("releasing address space of proc %d: %w", pid, err)
	}
	m.log.DebugContext(ctx, "process killed", logger.Process(pid))
	return nil
}

func (m *Machine) releaseAddressSpace(ctx context.Context, pid int, ptp memory.Page) error {
	var errs []error
	for _, p := range m.pageTable(ptp) {
		if p != 0 {
			if err := m.alloc.Free(ctx, memory.Page(p)); err != nil {
				errs = append(errs, fmt.Errorf("freeing data page: %w", err))
			}
		}
	}
	if err := m.alloc.Free(ctx, ptp); err != nil {
		errs = append(errs, fmt.Errorf("freeing page table: %w", err))
	}
	m.setPageTablePage(pid, 0)
	return errors.Join(errs...)
}

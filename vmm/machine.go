package vmm

import (
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/ptsim/logger"
	"github.com/alphabill-org/ptsim/memory"
	"github.com/alphabill-org/ptsim/observability"
	"github.com/alphabill-org/ptsim/pmm"
)

type (
	/*
		Machine owns the physical memory and implements the virtual memory
		operations on top of it: process address space creation and teardown,
		address translation and single byte load/store.

		Machine is not safe for concurrent use, all operations must be
		serialized by the caller.
	*/
	Machine struct {
		mem   *memory.Memory
		alloc *pmm.Allocator
		conf  config

		log    *slog.Logger
		tracer trace.Tracer

		mProc   metric.Int64Counter
		mAccess metric.Int64Counter
	}

	config struct {
		rollback      bool
		checkMappings bool
	}

	Option func(*config)
)

/*
WithRollback makes process creation transactional: when allocation of a data
page fails all pages already allocated for the process are released and the
directory slot is cleared. By default the pages are left allocated and mapped.
*/
func WithRollback(rollback bool) Option {
	return func(c *config) {
		c.rollback = rollback
	}
}

/*
WithMappingChecks enables validation of the directory and page table entries
during translation. By default unmapped virtual page (or process without page
table) composes through page 0 like the hardware would.
*/
func WithMappingChecks(check bool) Option {
	return func(c *config) {
		c.checkMappings = check
	}
}

func New(mem *memory.Memory, obs observability.Observability, opts ...Option) (*Machine, error) {
	if mem == nil {
		return nil, errors.New("memory is nil")
	}
	alloc, err := pmm.New(mem, obs)
	if err != nil {
		return nil, fmt.Errorf("creating page allocator: %w", err)
	}

	m := &Machine{
		mem:    mem,
		alloc:  alloc,
		log:    obs.Logger().With(logger.Module("vmm")),
		tracer: obs.Tracer("vmm"),
	}
	for _, opt := range opts {
		opt(&m.conf)
	}
	if err := m.initMetrics(obs); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return m, nil
}

func (m *Machine) Memory() *memory.Memory {
	return m.mem
}

func (m *Machine) Allocator() *pmm.Allocator {
	return m.alloc
}

func (m *Machine) Layout() memory.Layout {
	return m.mem.Layout()
}

func (m *Machine) initMetrics(obs observability.Observability) (err error) {
	meter := obs.Meter("vmm")

	if m.mProc, err = meter.Int64Counter("process",
		metric.WithDescription("Number of process lifecycle operations, by operation and status."),
		metric.WithUnit("{operation}"),
	); err != nil {
		return fmt.Errorf("creating process counter: %w", err)
	}

	if m.mAccess, err = meter.Int64Counter("mem.access",
		metric.WithDescription("Number of memory load and store operations, by operation and status."),
		metric.WithUnit("{operation}"),
	); err != nil {
		return fmt.Errorf("creating memory access counter: %w", err)
	}

	return nil
}

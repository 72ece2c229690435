package vmm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/ptsim/logger"
	"github.com/alphabill-org/ptsim/observability"
)

const (
	OpStore = "Store"
	OpLoad  = "Load"
)

// Access describes a single memory operation performed on behalf of a process.
type Access struct {
	Op       string // OpStore or OpLoad
	Process  int
	Virtual  int
	Physical int
	Value    int
}

func (a Access) String() string {
	return fmt.Sprintf("%s proc %d: %d => %d, value=%d", a.Op, a.Process, a.Virtual, a.Physical, a.Value)
}

/*
Store writes low byte of "value" into the virtual address "vaddr" of the
process. The returned Access carries the value as given, not truncated.
*/
func (m *Machine) Store(ctx context.Context, pid, vaddr, value int) (Access, error) {
	acc := Access{Op: OpStore, Process: pid, Virtual: vaddr, Value: value}
	err := m.access(ctx, &acc, func(addr int) error {
		return m.mem.Put(addr, byte(value))
	})
	return acc, err
}

// Load reads the byte at virtual address "vaddr" of the process.
func (m *Machine) Load(ctx context.Context, pid, vaddr int) (Access, error) {
	acc := Access{Op: OpLoad, Process: pid, Virtual: vaddr}
	err := m.access(ctx, &acc, func(addr int) error {
		v, err := m.mem.Get(addr)
		acc.Value = int(v)
		return err
	})
	return acc, err
}

func (m *Machine) access(ctx context.Context, acc *Access, f func(addr int) error) (rErr error) {
	ctx, span := m.tracer.Start(ctx, "Machine."+acc.Op, trace.WithAttributes(observability.Process(acc.Process), attribute.Int("vaddr", acc.Virtual)))
	defer func() {
		m.mAccess.Add(ctx, 1, metric.WithAttributes(attribute.String("op", acc.Op), observability.ErrStatus(rErr)))
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	addr, err := m.Translate(acc.Process, acc.Virtual)
	if err != nil {
		return fmt.Errorf("translating address %d of proc %d: %w", acc.Virtual, acc.Process, err)
	}
	acc.Physical = addr
	if err := f(addr); err != nil {
		return err
	}
	m.log.Log(ctx, logger.LevelTrace, acc.String())
	return nil
}

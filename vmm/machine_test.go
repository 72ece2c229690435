package vmm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/ptsim/internal/testutils/observability"
	"github.com/alphabill-org/ptsim/memory"
	"github.com/alphabill-org/ptsim/pmm"
)

func newTestMachine(t *testing.T, pageSize, pageCount int, opts ...Option) *Machine {
	t.Helper()
	l, err := memory.NewLayout(pageSize, pageCount)
	require.NoError(t, err)
	m, err := New(memory.New(l), observability.Default(t), opts...)
	require.NoError(t, err)
	return m
}

func Test_New(t *testing.T) {
	m, err := New(nil, observability.NOPObservability())
	require.EqualError(t, err, "memory is nil")
	require.Nil(t, m)

	mem := memory.New(memory.DefaultLayout())
	m, err = New(mem, observability.NOPObservability(), WithRollback(true), WithMappingChecks(true))
	require.NoError(t, err)
	require.Same(t, mem, m.Memory())
	require.NotNil(t, m.Allocator())
	require.Equal(t, memory.DefaultLayout(), m.Layout())
	require.True(t, m.conf.rollback)
	require.True(t, m.conf.checkMappings)
}

func TestMachine_lifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, 256, 64)

	require.NoError(t, m.CreateProcess(ctx, 1, 2))
	ptp, err := m.PageTablePage(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, ptp)
	maps, err := m.Mappings(1)
	require.NoError(t, err)
	require.Equal(t, []Mapping{{0, 2}, {1, 3}}, maps)
	require.Equal(t, []byte{1, 1, 1, 1, 0}, m.Memory().Bitmap()[:5])

	acc, err := m.Store(ctx, 1, 0, 42)
	require.NoError(t, err)
	require.Equal(t, Access{Op: OpStore, Process: 1, Virtual: 0, Physical: 512, Value: 42}, acc)
	require.Equal(t, "Store proc 1: 0 => 512, value=42", acc.String())

	acc, err = m.Load(ctx, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "Load proc 1: 0 => 512, value=42", acc.String())

	require.NoError(t, m.KillProcess(ctx, 1))
	ptp, err = m.PageTablePage(1)
	require.NoError(t, err)
	require.Zero(t, ptp)
	require.Equal(t, []byte{1, 0, 0, 0}, m.Memory().Bitmap()[:4])
	require.Equal(t, 63, m.Allocator().FreePages())

	// data is not scrubbed on kill
	v, err := m.Memory().Get(512)
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
}

func TestMachine_CreateProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid process", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.ErrorIs(t, m.CreateProcess(ctx, -1, 1), ErrInvalidProcess)
		require.ErrorIs(t, m.CreateProcess(ctx, 64, 1), ErrInvalidProcess)
		require.Equal(t, 63, m.Allocator().FreePages())
	})

	t.Run("process exists", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.NoError(t, m.CreateProcess(ctx, 3, 1))
		require.ErrorIs(t, m.CreateProcess(ctx, 3, 1), ErrProcessExists)
		require.Equal(t, 61, m.Allocator().FreePages())
	})

	t.Run("zero pages", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.NoError(t, m.CreateProcess(ctx, 0, 0))
		ptp, err := m.PageTablePage(0)
		require.NoError(t, err)
		require.EqualValues(t, 1, ptp)
		maps, err := m.Mappings(0)
		require.NoError(t, err)
		require.Empty(t, maps)
	})

	t.Run("recycled page table is zeroed", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.NoError(t, m.CreateProcess(ctx, 1, 0))
		// garbage into page table page of proc 1, then release it
		require.NoError(t, m.Memory().Put(256+5, 9))
		require.NoError(t, m.KillProcess(ctx, 1))

		require.NoError(t, m.CreateProcess(ctx, 2, 1))
		maps, err := m.Mappings(2)
		require.NoError(t, err)
		require.Equal(t, []Mapping{{0, 2}}, maps)
	})

	t.Run("no page for page table", func(t *testing.T) {
		m := newTestMachine(t, 16, 4)
		require.NoError(t, m.CreateProcess(ctx, 0, 2))
		err := m.CreateProcess(ctx, 1, 1)
		require.EqualError(t, err, "OOM: proc 1 page table")
		require.ErrorIs(t, err, pmm.ErrOutOfPages)
		var ae *AllocationError
		require.ErrorAs(t, err, &ae)
		require.Equal(t, PurposePageTable, ae.Purpose)
	})

	t.Run("partial create leaks", func(t *testing.T) {
		m := newTestMachine(t, 16, 4)
		err := m.CreateProcess(ctx, 0, 5)
		require.EqualError(t, err, "OOM: proc 0 data page")
		require.ErrorIs(t, err, pmm.ErrOutOfPages)
		require.Equal(t, []byte{1, 1, 1, 1}, m.Memory().Bitmap())
		ptp, err := m.PageTablePage(0)
		require.NoError(t, err)
		require.EqualValues(t, 1, ptp)
		maps, err := m.Mappings(0)
		require.NoError(t, err)
		require.Equal(t, []Mapping{{0, 2}, {1, 3}}, maps)

		// partially built process can be killed
		require.NoError(t, m.KillProcess(ctx, 0))
		require.Equal(t, []byte{1, 0, 0, 0}, m.Memory().Bitmap())
	})

	t.Run("partial create with rollback", func(t *testing.T) {
		m := newTestMachine(t, 16, 4, WithRollback(true))
		err := m.CreateProcess(ctx, 0, 5)
		require.EqualError(t, err, "OOM: proc 0 data page")
		require.Equal(t, []byte{1, 0, 0, 0}, m.Memory().Bitmap())
		ptp, err := m.PageTablePage(0)
		require.NoError(t, err)
		require.Zero(t, ptp)
	})
}

func TestMachine_storeIntoPageZero(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(t, 256, 64)
	require.NoError(t, m.CreateProcess(ctx, 1, 1))

	// proc 5 has no page table, virtual page 10 composes to physical page 0
	// and the store clears the bitmap byte of page 0
	acc, err := m.Store(ctx, 5, 10<<8, 0)
	require.NoError(t, err)
	require.Equal(t, "Store proc 5: 2560 => 0, value=0", acc.String())
	require.False(t, m.Allocator().IsAllocated(0))

	require.NoError(t, m.CreateProcess(ctx, 2, 1))
	ptp, err := m.PageTablePage(2)
	require.NoError(t, err)
	require.EqualValues(t, 3, ptp)
	maps, err := m.Mappings(2)
	require.NoError(t, err)
	require.Equal(t, []Mapping{{0, 4}}, maps)

	// proc 1 is intact
	ptp, err = m.PageTablePage(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, ptp)
	require.Equal(t, []byte{0, 1, 1, 1, 1, 0}, m.Memory().Bitmap()[:6])
}

func TestMachine_KillProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid process", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.ErrorIs(t, m.KillProcess(ctx, 64), ErrInvalidProcess)
	})

	t.Run("no address space", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.NoError(t, m.CreateProcess(ctx, 1, 1))
		before := m.Memory().Image()
		require.ErrorIs(t, m.KillProcess(ctx, 2), ErrNoAddressSpace)
		require.Equal(t, before, m.Memory().Image())
	})

	t.Run("killed twice", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.NoError(t, m.CreateProcess(ctx, 1, 1))
		require.NoError(t, m.KillProcess(ctx, 1))
		require.ErrorIs(t, m.KillProcess(ctx, 1), ErrNoAddressSpace)
		require.True(t, m.Allocator().IsAllocated(0))
	})

	t.Run("other processes are not affected", func(t *testing.T) {
		m := newTestMachine(t, 256, 64)
		require.NoError(t, m.CreateProcess(ctx, 1, 2))
		require.NoError(t, m.CreateProcess(ctx, 2, 2))
		require.NoError(t, m.KillProcess(ctx, 1))
		require.Equal(t, []byte{1, 0, 0, 0, 1, 1, 1}, m.Memory().Bitmap()[:7])
		maps, err := m.Mappings(2)
		require.NoError(t, err)
		require.Equal(t, []Mapping{{0, 5}, {1, 6}}, maps)
	})
}

func TestMachine_metrics(t *testing.T) {
	ctx := context.Background()
	obs := observability.WithMetrics(t)
	m, err := New(memory.New(memory.DefaultLayout()), obs)
	require.NoError(t, err)

	require.NoError(t, m.CreateProcess(ctx, 1, 1))
	require.Error(t, m.KillProcess(ctx, 2))
	_, err = m.Store(ctx, 1, 0, 1)
	require.NoError(t, err)
	_, err = m.Load(ctx, 1, 0)
	require.NoError(t, err)
	_, err = m.Load(ctx, 1, -1)
	require.Error(t, err)

	require.EqualValues(t, 2, obs.Int64Sum(t, "vmm", "process"))
	require.EqualValues(t, 3, obs.Int64Sum(t, "vmm", "mem.access"))
	require.EqualValues(t, 2, obs.Int64Sum(t, "pmm", "page.alloc"))
}

package commands

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	testlogr "github.com/alphabill-org/ptsim/internal/testutils/logger"
	"github.com/alphabill-org/ptsim/internal/testutils/observability"
	"github.com/alphabill-org/ptsim/memory"
	"github.com/alphabill-org/ptsim/vmm"
)

type testPrinter struct {
	strings.Builder
}

func (p *testPrinter) Println(a ...any) {
	fmt.Fprintln(&p.Builder, a...)
}

func (p *testPrinter) Print(a ...any) {
	fmt.Fprint(&p.Builder, a...)
}

func runCommands(t *testing.T, layout memory.Layout, stream string, opts ...vmm.Option) (*vmm.Machine, string) {
	t.Helper()
	obs := observability.Default(t)
	m, err := vmm.New(memory.New(layout), obs, opts...)
	require.NoError(t, err)
	out := &testPrinter{}
	e, err := NewExecutor(m, out, obs)
	require.NoError(t, err)

	cmds, err := Parse(testlogr.New(t), strings.Fields(stream), true)
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background(), cmds))
	return m, out.String()
}

func Test_NewExecutor(t *testing.T) {
	obs := observability.NOPObservability()
	m, err := vmm.New(memory.New(memory.DefaultLayout()), obs)
	require.NoError(t, err)

	e, err := NewExecutor(nil, &testPrinter{}, obs)
	require.EqualError(t, err, "machine is nil")
	require.Nil(t, e)

	e, err = NewExecutor(m, nil, obs)
	require.EqualError(t, err, "output printer is nil")
	require.Nil(t, e)
}

func TestExecutor_Run(t *testing.T) {
	t.Run("worked example", func(t *testing.T) {
		m, out := runCommands(t, memory.DefaultLayout(), "np 1 2 ppt 1 sb 1 0 42 lb 1 0 kp 1 pfm")
		require.Equal(t, "--- PROCESS 1 PAGE TABLE ---\n"+
			"00 -> 02\n"+
			"01 -> 03\n"+
			"Store proc 1: 0 => 512, value=42\n"+
			"Load proc 1: 0 => 512, value=42\n"+
			"--- PAGE FREE MAP ---\n"+
			"#...............\n"+
			"................\n"+
			"................\n"+
			"................\n", out)
		require.Equal(t, 63, m.Allocator().FreePages())
	})

	t.Run("allocation failure doesn't stop the run", func(t *testing.T) {
		layout, err := memory.NewLayout(16, 4)
		require.NoError(t, err)
		_, out := runCommands(t, layout, "np 0 1 np 1 5 pfm")
		require.Equal(t, "OOM: proc 1 data page\n"+
			"--- PAGE FREE MAP ---\n"+
			"####\n", out)
	})

	t.Run("errors are printed", func(t *testing.T) {
		_, out := runCommands(t, memory.DefaultLayout(), "kp 5 ppt 99 sb 1 -1 0 lb 1 0")
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		require.Len(t, lines, 4)
		require.Equal(t, "kp 5: process has no address space: proc 5", lines[0])
		require.Equal(t, "ppt 99: invalid process id: 99 not in [0, 64)", lines[1])
		require.True(t, strings.HasPrefix(lines[2], "sb 1 -1 0: translating address -1 of proc 1: virtual address out of range"), lines[2])
		// proc 1 has no page table, lookup goes through page 0
		require.Equal(t, "Load proc 1: 0 => 256, value=0", lines[3])
	})

	t.Run("mapping checks", func(t *testing.T) {
		_, out := runCommands(t, memory.DefaultLayout(), "ppt 3 lb 3 0", vmm.WithMappingChecks(true))
		require.Equal(t, "ppt 3: process has no address space: proc 3\n"+
			"lb 3 0: translating address 0 of proc 3: process has no address space: proc 3\n", out)
	})

	t.Run("commands not created by parser", func(t *testing.T) {
		obs := observability.NOPObservability()
		m, err := vmm.New(memory.New(memory.DefaultLayout()), obs)
		require.NoError(t, err)
		out := &testPrinter{}
		e, err := NewExecutor(m, out, obs)
		require.NoError(t, err)

		require.NoError(t, e.Run(context.Background(), []Command{
			{Name: StoreByte},
			{Name: CreateProcess, Args: []int{1, 1, 1}},
			{Name: "xx", Args: []int{1}},
			{Name: FreeMap},
		}))
		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		require.Equal(t, []string{
			"sb: missing argument: expected 3 arguments (proc_id, virtual_address, value), got 0",
			"np 1 1 1: missing argument: expected 2 arguments (proc_id, page_count), got 3",
			`xx 1: unsupported command "xx"`,
			"--- PAGE FREE MAP ---",
		}, lines[:4])
		require.Equal(t, 63, m.Allocator().FreePages())
	})

	t.Run("cancelled context", func(t *testing.T) {
		obs := observability.NOPObservability()
		m, err := vmm.New(memory.New(memory.DefaultLayout()), obs)
		require.NoError(t, err)
		out := &testPrinter{}
		e, err := NewExecutor(m, out, obs)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, e.Run(ctx, []Command{{Name: CreateProcess, Args: []int{1, 1}}}), context.Canceled)
		require.Empty(t, out.String())
		require.Equal(t, 63, m.Allocator().FreePages())
	})

	t.Run("metrics", func(t *testing.T) {
		obs := observability.WithMetrics(t)
		m, err := vmm.New(memory.New(memory.DefaultLayout()), obs)
		require.NoError(t, err)
		e, err := NewExecutor(m, &testPrinter{}, obs)
		require.NoError(t, err)
		require.NoError(t, e.Run(context.Background(), []Command{
			{Name: CreateProcess, Args: []int{1, 1}},
			{Name: KillProcess, Args: []int{2}},
			{Name: FreeMap},
		}))
		require.EqualValues(t, 3, obs.Int64Sum(t, "commands", "exec"))
	})
}

package diag

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/ptsim/vmm"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestFreeMap(t *testing.T) {
	t.Run("full rows", func(t *testing.T) {
		bitmap := make([]byte, 32)
		bitmap[0], bitmap[1], bitmap[17] = 1, 1, 1
		buf := &bytes.Buffer{}
		require.NoError(t, FreeMap(buf, bitmap))
		require.Equal(t, "--- PAGE FREE MAP ---\n"+
			"##..............\n"+
			".#..............\n", buf.String())
	})

	t.Run("partial row", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, FreeMap(buf, []byte{1, 0, 1, 0}))
		require.Equal(t, "--- PAGE FREE MAP ---\n#.#.\n", buf.String())
	})

	t.Run("write error", func(t *testing.T) {
		require.EqualError(t, FreeMap(failingWriter{}, []byte{1}), "broken pipe")
	})
}

func TestPageTable(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, PageTable(buf, 1, []vmm.Mapping{{Virtual: 0, Physical: 2}, {Virtual: 1, Physical: 0xab}}))
	require.Equal(t, "--- PROCESS 1 PAGE TABLE ---\n00 -> 02\n01 -> ab\n", buf.String())

	buf.Reset()
	require.NoError(t, PageTable(buf, 7, nil))
	require.Equal(t, "--- PROCESS 7 PAGE TABLE ---\n", buf.String())

	require.EqualError(t, PageTable(failingWriter{}, 1, nil), "broken pipe")
}

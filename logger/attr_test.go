package logger

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_formatTimeAttr(t *testing.T) {
	t.Run("empty format string", func(t *testing.T) {
		f := formatTimeAttr("")
		require.Nil(t, f)
	})

	t.Run("format: none", func(t *testing.T) {
		f := formatTimeAttr("none")
		require.NotNil(t, f)
		now := time.Now()

		a := f(nil, slog.Time(slog.TimeKey, now))
		require.Equal(t, slog.Attr{}, a)

		// when not time key value is preserved
		a = f(nil, slog.Time("foo", now))
		require.True(t, a.Equal(slog.Time("foo", now)))
	})

	t.Run("format: format string", func(t *testing.T) {
		f := formatTimeAttr("15:04:05.0000")
		require.NotNil(t, f)

		// zero time is not changed
		a := f(nil, slog.Time(slog.TimeKey, time.Time{}))
		require.Equal(t, slog.Time(slog.TimeKey, time.Time{}), a)

		// valid time is converted to string representation
		now := time.Now()
		a = f(nil, slog.Time(slog.TimeKey, now))
		require.Equal(t, now.Format("15:04:05.0000"), a.Value.String())

		// when not time key value is not altered
		a = f(nil, slog.Time("foo", now))
		require.True(t, a.Equal(slog.Time("foo", now)))
	})
}

func Test_composeAttrFmt(t *testing.T) {
	add := func(n int64) attrFormatter {
		return func(groups []string, a slog.Attr) slog.Attr { return slog.Int64(a.Key, a.Value.Int64()*10+n) }
	}

	require.Nil(t, composeAttrFmt())
	require.Nil(t, composeAttrFmt(nil, nil))

	var cases = []struct {
		f   []attrFormatter
		exp int64
	}{
		{[]attrFormatter{add(1)}, 1},
		{[]attrFormatter{nil, add(2)}, 2},
		{[]attrFormatter{add(1), add(2)}, 12},
		// formatters are applied in order
		{[]attrFormatter{add(1), nil, add(2), add(3), nil, add(4)}, 1234},
	}
	for _, tc := range cases {
		f := composeAttrFmt(tc.f...)
		require.NotNil(t, f)
		require.Equal(t, tc.exp, f(nil, slog.Int64("v", 0)).Value.Int64())
	}
}

func Test_formatAttrECS(t *testing.T) {
	a := formatAttrECS(nil, Error(errors.New("oops")))
	require.Equal(t, "error", a.Key)
	require.Equal(t, slog.KindGroup, a.Value.Kind())
	require.Equal(t, "message", a.Value.Group()[0].Key)

	a = formatAttrECS(nil, Process(7))
	require.Equal(t, "process", a.Key)
	require.Equal(t, "pid", a.Value.Group()[0].Key)

	a = formatAttrECS(nil, Page(3))
	require.Equal(t, "memory", a.Key)
	require.True(t, a.Value.Group()[0].Equal(slog.Int("page", 3)))

	a = formatAttrECS(nil, Module("vmm"))
	require.Equal(t, "log", a.Key)
	require.True(t, a.Value.Group()[0].Equal(slog.String("logger", "vmm")))

	a = formatAttrECS(nil, Data(struct{ Size int }{Size: 4}))
	require.True(t, a.Equal(slog.String(dataKey, `{"Size":4}`)))

	// unknown attributes are not changed
	a = formatAttrECS(nil, slog.Int("count", 3))
	require.True(t, a.Equal(slog.Int("count", 3)))
}

func Test_funcName(t *testing.T) {
	require.Equal(t, "newBaseCmd.func1", funcName("github.com/alphabill-org/ptsim/cli/ptsim/cmd.newBaseCmd.func1"))
	require.Equal(t, "(*Machine).Load", funcName("github.com/alphabill-org/ptsim/vmm.(*Machine).Load"))
	require.Equal(t, "main", funcName("main"))
}

func Test_formatDataAttrAsJSON(t *testing.T) {
	type image struct{ Size int }
	a := formatDataAttrAsJSON(nil, Data(image{Size: 4}))
	require.Equal(t, `{"Size":4}`, a.Value.String())

	// only the data attribute is converted
	a = formatDataAttrAsJSON(nil, slog.Any("foo", image{Size: 4}))
	require.Equal(t, slog.KindAny, a.Value.Kind())

	// scalar data is left as is
	a = formatDataAttrAsJSON(nil, Data(42))
	require.Equal(t, slog.KindInt64, a.Value.Kind())
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strandrt/fibercore/internal/actorerr"
)

func TestRunStringReturnsValue(t *testing.T) {
	t.Parallel()

	r := New()
	v, err := r.RunString("1 + 2")
	require.NoError(t, err)
	require.Equal(t, int64(3), v.ToInteger())
}

func TestCompileAndRunCachedProgram(t *testing.T) {
	t.Parallel()

	r := New()
	prog, err := r.Compile("double", "x * 2")
	require.NoError(t, err)

	require.NoError(t, r.Set("x", 21))
	v, err := r.Run(prog)
	require.NoError(t, err)
	require.Equal(t, int64(42), v.ToInteger())
}

func TestRunStringTranslatesThrownException(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.RunString(`throw new Error("boom")`)
	require.True(t, actorerr.Is(err, actorerr.RaiseError))
}

func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	r := New()
	_, ok := r.RegistryGet("missing")
	require.False(t, ok)

	r.RegistrySet("k", r.ToValue("hello"))
	v, ok := r.RegistryGet("k")
	require.True(t, ok)
	require.Equal(t, "hello", v.String())
}

func TestExportNilValue(t *testing.T) {
	t.Parallel()

	r := New()
	require.Nil(t, r.Export(nil))
}

func TestCloseIsNotIdempotent(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Close())

	err := r.Close()
	require.Error(t, err)
}

func TestGlobalObjectExposesHostBindings(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Set("answer", 42))
	g := r.GlobalObject()
	require.Equal(t, int64(42), g.Get("answer").ToInteger())
}

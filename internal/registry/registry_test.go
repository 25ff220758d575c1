package registry

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/datatree"
	"github.com/specialistvlad/simplechan/internal/hcl_adapter"
	"github.com/specialistvlad/simplechan/internal/nodeid"
	"github.com/specialistvlad/simplechan/internal/propagation"
	"github.com/specialistvlad/simplechan/internal/testutil"
)

const linacHCL = `
physinfo {
  inline = true
  channel "beam" {
    source = "linac-hw"
    number = 12
  }
}

group "main" {
  channel "current" {
    number  = 5
    min     = 0
    max     = 100
    initial = 1.5
  }
  channel "wave" {
    number   = 6
    physchan = "beam"
  }
  channel "image" {
    number = 7
  }
  channel "offset" {
    register = 3
  }
  channel "scaled" {
    expr = main.current * 2 + main.offset
  }
  group "sub" {
    channel "x" {
      register = 4
    }
  }
}
`

type fixture struct {
	reg    *Registry
	engine *propagation.Local
	loader *hcl_adapter.Loader
	args   config.LoadArgs
	dir    string
	rec    *testutil.Recorder
	ctx    context.Context
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()

	logger, _ := testutil.NewLogger(t)
	dir := testutil.WriteDescriptions(t, files)
	engine := propagation.NewLocal(propagation.WithLogger(logger))
	loader := hcl_adapter.NewLoader()
	return &fixture{
		reg:    New(loader, engine, WithLogger(logger)),
		engine: engine,
		loader: loader,
		args:   config.LoadArgs{SearchPaths: []string{dir}},
		dir:    dir,
		rec:    &testutil.Recorder{},
		ctx:    context.Background(),
	}
}

func (f *fixture) scalar(t *testing.T, name string) int {
	t.Helper()
	h, err := f.reg.RegisterScalar(f.ctx, name, f.args, ScalarFunc(f.rec.Scalar))
	require.NoError(t, err)
	return h
}

func (f *fixture) big(t *testing.T, name string, maxSize int) int {
	t.Helper()
	h, err := f.reg.RegisterBig(f.ctx, name, maxSize, f.args, BigFunc(f.rec.Big))
	require.NoError(t, err)
	return h
}

func TestRegisterScalar_Idempotent(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})

	h1 := f.scalar(t, "linac.main.current")
	h2 := f.scalar(t, "linac.main.current")
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, f.reg.scalars.Count())
	assert.Equal(t, 1, f.loader.OpenCount(), "subsystem loaded once")
	assert.Equal(t, 1, f.engine.Bindings())

	name, ok := f.reg.ScalarName(h1)
	require.True(t, ok)
	assert.Equal(t, "linac.main.current", name)
}

func TestRegisterScalar_NameErrors(t *testing.T) {
	testCases := []struct {
		name    string
		channel string
		wantErr error
	}{
		{name: "empty", channel: "", wantErr: ErrInvalidName},
		{name: "no separator", channel: "linac", wantErr: ErrInvalidName},
		{name: "empty subsystem", channel: ".current", wantErr: ErrLoad},
		{name: "unknown subsystem", channel: "ring.current", wantErr: ErrLoad},
		{name: "unknown node", channel: "linac.main.voltage", wantErr: ErrNotFound},
		{name: "malformed node path", channel: "linac.main..current", wantErr: ErrNotFound},
		{name: "group node", channel: "linac.main", wantErr: ErrWrongNodeKind},
		{name: "nested group by name", channel: "linac.sub", wantErr: ErrWrongNodeKind},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"linac.hcl": linacHCL})

			h, err := f.reg.RegisterScalar(f.ctx, tc.channel, f.args, nil)
			assert.Equal(t, InvalidHandle, h)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, err, f.reg.LastError())
			assert.Equal(t, 0, f.reg.scalars.Count())

			h, err = f.reg.RegisterBig(f.ctx, tc.channel, 8, f.args, nil)
			assert.Equal(t, InvalidHandle, h)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 0, f.reg.bigs.Count())
		})
	}
}

func TestRegister_NameResolution(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})

	exact := f.scalar(t, "linac.main.current")
	byName := f.scalar(t, "linac.current")
	upper := f.scalar(t, "LINAC.main.current")

	assert.NotEqual(t, exact, byName, "different spellings of the path are distinct names")
	assert.Equal(t, exact, upper, "channel names match case-insensitively")
	assert.Equal(t, 2, f.reg.scalars.Count())
	assert.Equal(t, 1, f.loader.OpenCount(), "subsystem names match case-insensitively")

	for _, h := range []int{exact, byName} {
		v, err := f.reg.GetScalar(h)
		require.NoError(t, err)
		assert.Equal(t, 1.5, v)
	}

	img := f.big(t, "linac.main.image", 16)
	assert.Equal(t, img, f.big(t, "Linac.Main.Image", 16))
	assert.Equal(t, 1, f.reg.bigs.Count())

	nested := f.scalar(t, "linac.x")
	rec, _ := f.reg.scalars.Access(nested)
	assert.Equal(t, "main.sub.x", rec.node.Path, "single segment found depth-first")
}

func TestRegister_IndependentNamespaces(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})

	s := f.scalar(t, "linac.main.current")
	b := f.big(t, "linac.main.image", 16)
	assert.Equal(t, 0, s)
	assert.Equal(t, 0, b, "scalar and big handles are numbered independently")

	_, ok := f.reg.BigName(b)
	assert.True(t, ok)
	_, ok = f.reg.ScalarName(1)
	assert.False(t, ok)
}

func TestDispatch_Order(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})

	a := f.scalar(t, "linac.main.current")
	b := f.scalar(t, "linac.main.scaled")
	_, err := f.reg.RegisterScalar(f.ctx, "linac.main.offset", f.args, nil)
	require.NoError(t, err)
	c := f.big(t, "linac.main.image", 8)
	d := f.big(t, "linac.main.wave", 8)

	f.engine.Put("linac", 5, 7)
	f.engine.Tick("linac")

	assert.Equal(t, []testutil.Call{
		{Kind: "scalar", Handle: b, Value: 14},
		{Kind: "scalar", Handle: a, Value: 7},
		{Kind: "big", Handle: d},
		{Kind: "big", Handle: c},
	}, f.rec.Calls(), "tree refreshed first, then scalars and bigs in reverse registration order")

	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.reg.Metrics().ticks.WithLabelValues("linac")))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(f.reg.Metrics().callbacks.WithLabelValues(kindScalar)))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(f.reg.Metrics().callbacks.WithLabelValues(kindBig)))

	f.rec.Reset()
	f.engine.Tick("ring")
	assert.Empty(t, f.rec.Calls(), "ticks of other sources do not dispatch")
}

func TestSetScalar(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})

	current := f.scalar(t, "linac.main.current")
	offset := f.scalar(t, "linac.main.offset")
	scaled := f.scalar(t, "linac.main.scaled")

	require.NoError(t, f.reg.SetScalar(f.ctx, current, 42))
	v, err := f.reg.GetScalar(current)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	src, err := f.engine.Open("linac", nil, propagation.ModeRegular)
	require.NoError(t, err)
	raw, ok := f.engine.Value(src, 5)
	require.True(t, ok)
	assert.Equal(t, 42.0, raw, "direct channels write through to the source")

	err = f.reg.SetScalar(f.ctx, current, 200)
	assert.ErrorIs(t, err, datatree.ErrOutOfRange)
	v, _ = f.reg.GetScalar(current)
	assert.Equal(t, 42.0, v, "rejected write leaves the value unchanged")

	assert.ErrorIs(t, f.reg.SetScalar(f.ctx, scaled, 1), datatree.ErrReadOnly)

	require.NoError(t, f.reg.SetScalar(f.ctx, offset, 3))
	f.engine.Tick("linac")
	v, _ = f.reg.GetScalar(scaled)
	assert.Equal(t, 87.0, v)
}

func TestInvalidHandles(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	f.scalar(t, "linac.main.current")
	f.big(t, "linac.main.image", 8)

	for _, h := range []int{-1, 1, 100} {
		_, err := f.reg.GetScalar(h)
		assert.ErrorIs(t, err, ErrInvalidHandle)
		assert.ErrorIs(t, f.reg.SetScalar(f.ctx, h, 1), ErrInvalidHandle)

		_, err = f.reg.ReadBig(h, 0, 1, make([]byte, 1))
		assert.ErrorIs(t, err, ErrInvalidHandle)
		_, err = f.reg.WriteBig(h, 0, 1, []byte{1}, 1)
		assert.ErrorIs(t, err, ErrInvalidHandle)
		_, _, _, err = f.reg.BigStats(h)
		assert.ErrorIs(t, err, ErrInvalidHandle)
		_, err = f.reg.GetBigParam(h, 0)
		assert.ErrorIs(t, err, ErrInvalidHandle)
		assert.ErrorIs(t, f.reg.SetBigParam(h, 0, 1), ErrInvalidHandle)
		assert.ErrorIs(t, f.reg.Refresh(h), ErrInvalidHandle)
		_, err = f.reg.Buffer(h)
		assert.ErrorIs(t, err, ErrInvalidHandle)
	}
}

func TestBigChannel_ReadWrite(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	h := f.big(t, "linac.main.image", 16)

	_, _, ok, err := f.reg.BigStats(h)
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte("abcdefgh")
	n, err := f.reg.WriteBig(h, 4, 8, payload, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	buf := make([]byte, 8)
	n, err = f.reg.ReadBig(h, 4, 8, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, payload, buf)

	age, _, ok, err := f.reg.BigStats(h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, age)

	_, err = f.reg.WriteBig(h, 12, 8, payload, 1)
	assert.ErrorIs(t, err, propagation.ErrOutOfBounds)
	_, err = f.reg.WriteBig(h, math.MaxInt, 1, payload, 1)
	assert.ErrorIs(t, err, propagation.ErrOutOfBounds)

	empty, err := f.reg.Buffer(h)
	require.NoError(t, err)
	assert.Empty(t, empty, "buffer is only filled by a refresh")

	f.engine.Tick("")
	snapshot, err := f.reg.Buffer(h)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0, 0, 0, 0}, payload...), snapshot)

	_, err = f.reg.WriteBig(h, 0, 2, []byte("zz"), 1)
	require.NoError(t, err)
	require.NoError(t, f.reg.Refresh(h))
	snapshot, _ = f.reg.Buffer(h)
	assert.Equal(t, []byte("zz"), snapshot[:2])
}

func TestBigChannel_PhysicalAddress(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	h := f.big(t, "linac.main.wave", 8)

	producer, err := f.engine.Open("linac-hw", nil, propagation.ModeBig)
	require.NoError(t, err)
	ph, err := f.engine.OpenBig(producer, 12, 0, 8, propagation.CacheSharable, propagation.DeliverImmediate)
	require.NoError(t, err)
	_, err = f.engine.WriteBig(ph, 0, 3, []byte{1, 2, 3}, 1)
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := f.reg.ReadBig(h, 0, 3, buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, buf, "bound to the physical source and channel")
}

func TestBigChannel_Params(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	h := f.big(t, "linac.main.image", 8)

	require.NoError(t, f.reg.SetBigParam(h, 7, 99))
	v, err := f.reg.GetBigParam(h, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(99), v)

	v, err = f.reg.GetBigParam(h, MaxBigParams-1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	_, err = f.reg.GetBigParam(h, MaxBigParams)
	assert.ErrorIs(t, err, propagation.ErrOutOfBounds)
	_, err = f.reg.GetBigParam(h, math.MaxInt)
	assert.ErrorIs(t, err, propagation.ErrOutOfBounds)
	assert.ErrorIs(t, f.reg.SetBigParam(h, math.MaxInt, 1), propagation.ErrOutOfBounds)
}

func TestSubsystem_LoadFailureRetries(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.reg.RegisterScalar(f.ctx, "linac.main.current", f.args, nil)
	require.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, hcl_adapter.ErrNotFound)
	assert.Equal(t, 0, f.reg.subsystems.Count(), "failed subsystem is not left registered")

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "linac.hcl"), []byte(linacHCL), 0o644))
	h := f.scalar(t, "linac.main.current")
	assert.Equal(t, 0, h)
	assert.Equal(t, 1, f.reg.subsystems.Count())
}

func TestSubsystem_BindFailureUnwinds(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	f.engine.SetUnreachable("linac", errors.New("offline"))

	h, err := f.reg.Subsystem(f.ctx, "linac", f.args)
	assert.Equal(t, InvalidHandle, h)
	require.ErrorIs(t, err, ErrBind)
	assert.ErrorIs(t, err, propagation.ErrUnreachable)
	assert.Equal(t, err, f.reg.LastError())
	assert.Equal(t, 0, f.loader.OpenCount(), "description closed")
	assert.Equal(t, 0, f.reg.subsystems.Count())

	f.engine.SetUnreachable("linac", nil)
	h, err = f.reg.Subsystem(f.ctx, "Linac", f.args)
	require.NoError(t, err)
	assert.Equal(t, 0, h)
	assert.Equal(t, 1, f.engine.Bindings())
}

func TestSubsystem_BuildFailureUnwinds(t *testing.T) {
	f := newFixture(t, map[string]string{
		"bad.hcl": `group "g" {
  channel "c" { expr = g.missing + 1 }
}`,
	})

	_, err := f.reg.RegisterScalar(f.ctx, "bad.g.c", f.args, nil)
	require.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, datatree.ErrBuild)
	assert.Equal(t, 0, f.loader.OpenCount())
	assert.Equal(t, 0, f.engine.Bindings(), "binding closed")
	assert.Equal(t, 0, f.reg.subsystems.Count())
}

func TestRegisterBig_BindFailureKeepsSubsystem(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	f.engine.SetUnreachable("linac-hw", errors.New("offline"))

	h, err := f.reg.RegisterBig(f.ctx, "linac.main.wave", 8, f.args, nil)
	assert.Equal(t, InvalidHandle, h)
	require.ErrorIs(t, err, ErrBind)
	assert.Equal(t, 0, f.reg.bigs.Count(), "slot released")
	assert.Equal(t, 1, f.reg.subsystems.Count(), "subsystem stays registered")
	assert.Equal(t, 1, f.engine.Bindings(), "only the subsystem binding is open")

	_, err = f.reg.RegisterBig(f.ctx, "linac.main.image", -1, f.args, nil)
	assert.ErrorIs(t, err, ErrBind)
}

func TestCloseSubsystem(t *testing.T) {
	f := newFixture(t, map[string]string{
		"linac.hcl": linacHCL,
		"ring.hcl": `group "g" {
  channel "c" {
    number = 1
  }
}`,
	})

	s := f.scalar(t, "linac.main.current")
	b := f.big(t, "linac.main.image", 8)
	ring := f.scalar(t, "ring.g.c")
	assert.Equal(t, 2, f.loader.OpenCount())
	assert.Equal(t, 3, f.engine.Bindings())

	sub, _ := f.reg.findSubsystem("linac")
	rec, _ := f.reg.subsystems.Access(sub)
	binding := rec.binding

	require.NoError(t, f.reg.CloseSubsystem(f.ctx, "LINAC"))
	assert.Equal(t, 1, f.loader.OpenCount())
	assert.Equal(t, 1, f.engine.Bindings())

	_, err := f.reg.GetScalar(s)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = f.reg.ReadBig(b, 0, 1, make([]byte, 1))
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = f.reg.GetScalar(ring)
	assert.NoError(t, err, "other subsystems are untouched")

	f.reg.dispatch(sub, binding, 1)
	assert.Empty(t, f.rec.Calls(), "stale tick ignored")

	assert.ErrorIs(t, f.reg.CloseSubsystem(f.ctx, "linac"), ErrNotFound)

	again := f.scalar(t, "linac.main.current")
	assert.Equal(t, s, again, "released handles are reused")

	require.NoError(t, f.reg.Close(f.ctx))
	assert.Equal(t, 0, f.loader.OpenCount())
	assert.Equal(t, 0, f.engine.Bindings())
	assert.Equal(t, 0, f.reg.scalars.Count())
}

func TestCloseSubsystem_LongName(t *testing.T) {
	stored := strings.Repeat("s", nodeid.MaxSubsystemLen)
	f := newFixture(t, map[string]string{
		stored + ".hcl": `group "g" {
  channel "c" {
    number = 1
  }
}`,
	})
	long := stored + "-ignored-tail"

	h, err := f.reg.Subsystem(f.ctx, long, f.args)
	require.NoError(t, err)
	again, err := f.reg.Subsystem(f.ctx, stored, f.args)
	require.NoError(t, err)
	assert.Equal(t, h, again)

	require.NoError(t, f.reg.CloseSubsystem(f.ctx, long))
	assert.Equal(t, 0, f.reg.subsystems.Count())
	assert.Equal(t, 0, f.loader.OpenCount())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, map[string]string{"linac.hcl": linacHCL})
	m := f.reg.Metrics()

	f.scalar(t, "linac.main.current")
	f.scalar(t, "linac.main.current")
	f.big(t, "linac.main.image", 8)
	_, _ = f.reg.RegisterScalar(f.ctx, "bogus", f.args, nil)

	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.registrations.WithLabelValues(kindScalar)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.registrations.WithLabelValues(kindBig)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.failures.WithLabelValues(kindScalar)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.loads))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.liveHandles.WithLabelValues(kindScalar)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.liveHandles.WithLabelValues(kindSubsys)))

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

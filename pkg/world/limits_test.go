package world

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxworld/pkg/sprite"
	"github.com/annel0/voxworld/pkg/vec"
)

// finishes падает, если f не уложилась в срок
func finishes(t *testing.T, d time.Duration, f func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("операция не завершилась за %v", d)
	}
}

func TestCSG_HugeRadiusFillsDomain(t *testing.T) {
	full := 64 * 64 * 64
	cases := []struct {
		name   string
		power  float64
		radius float64
	}{
		{"шар", 2, 1e12},
		{"шар с радиусом у предела int", 2, 9.3e18},
		{"октаэдр", 1, 1e12},
		{"почти куб", 8, 1e300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWorld(t)
			require.NoError(t, w.SetSpherePower(tc.power))
			finishes(t, 30*time.Second, func() {
				box, err := w.SetSphere(vec.NewI(32, 32, 32), tc.radius, Insert(red))
				assert.NoError(t, err)
				assert.Equal(t, w.Bounds(), box, "регион обрезан по домену")
			})
			assert.Equal(t, full, w.CountSolid(w.Bounds()), "шар заполняет весь мир")
		})
	}
}

func TestCSG_HalfChord(t *testing.T) {
	for rem, want := range map[float64]float64{
		0.5: 0,
		1:   0,
		2:   1,
		4:   1,
		4.1: 2,
	} {
		assert.Equal(t, want, halfChord(rem), "halfChord(%v)", rem)
	}
	assert.InDelta(t, 1e12, halfChord(1e24), 2, "большие значения без переполнения")
}

func TestCSG_NonFiniteGeometryRejected(t *testing.T) {
	w := newTestWorld(t)
	inf, nan := math.Inf(1), math.NaN()
	cases := map[string]func() error{
		"шар +Inf": func() error {
			_, err := w.SetSphere(vec.NewI(32, 32, 32), inf, Insert(red))
			return err
		},
		"шар NaN": func() error {
			_, err := w.SetSphere(vec.NewI(32, 32, 32), nan, Insert(red))
			return err
		},
		"эллипсоид +Inf": func() error {
			_, err := w.SetEllipsoid(vec.New(10, 10, 10), vec.New(20, 20, 20), inf, Insert(red))
			return err
		},
		"эллипсоид с бесконечным фокусом": func() error {
			_, err := w.SetEllipsoid(vec.New(inf, 10, 10), vec.New(20, 20, 20), 3, Insert(red))
			return err
		},
		"цилиндр +Inf": func() error {
			_, err := w.SetCylinder(vec.New(10, 10, 10), vec.New(20, 20, 20), inf, Insert(red))
			return err
		},
		"цилиндр с NaN на оси": func() error {
			_, err := w.SetCylinder(vec.New(10, nan, 10), vec.New(20, 20, 20), 2, Insert(red))
			return err
		},
		"плавление шара +Inf": func() error {
			_, _, err := w.MeltSphere(vec.NewI(32, 32, 32), inf)
			return err
		},
	}
	for name, apply := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, apply(), ErrInvalidGeometry)
		})
	}
	assert.Zero(t, w.CountSolid(w.Bounds()), "отклонённые операции не меняют мир")
}

func TestCSG_FarGeometryClipped(t *testing.T) {
	w := newTestWorld(t)
	finishes(t, 30*time.Second, func() {
		box, err := w.SetEllipsoid(vec.New(-1e100, 32, 32), vec.New(1e100, 32, 32), 4, Insert(red))
		assert.NoError(t, err)
		assert.Equal(t, w.Bounds(), box, "регион эллипсоида обрезан по домену")

		_, err = w.SetCylinder(vec.New(-1e100, 32, 32), vec.New(1e100, 32, 32), 2, Insert(blue))
		assert.NoError(t, err)
	})
	assert.True(t, w.IsSolid(vec.NewI(0, 32, 32)), "цилиндр проходит через весь мир")
	assert.True(t, w.IsSolid(vec.NewI(63, 32, 32)))

	_, err := w.SetEllipsoid(vec.New(-1e300, 32, 32), vec.New(1e300, 32, 32), 4, Insert(red))
	assert.ErrorIs(t, err, ErrInvalidGeometry, "межфокусное расстояние переполняется")
	_, err = w.SetCylinder(vec.New(-1e300, 32, 32), vec.New(1e300, 32, 32), 2, Insert(red))
	assert.ErrorIs(t, err, ErrInvalidGeometry, "длина оси переполняется")
}

func TestCSG_SpansSaturate(t *testing.T) {
	w := newTestWorld(t)
	spans := []Span{
		{X: 3, Y: 3, Z0: 60, Z1: math.MaxInt},
		{X: 4, Y: 4, Z0: math.MinInt, Z1: 2},
	}
	box, err := w.SetSpans(spans, vec.IVec3{}, Insert(red))
	require.NoError(t, err)
	assert.False(t, box.Empty())
	assert.Equal(t, 4+3, w.CountSolid(w.Bounds()), "отрезки обрезаны по глубине, а не отброшены")
	assert.True(t, w.IsSolid(vec.NewI(3, 3, 63)))
	assert.True(t, w.IsSolid(vec.NewI(4, 4, 0)))

	box, err = w.SetSpans([]Span{{X: 5, Y: 5, Z0: 0, Z1: 1}}, vec.IVec3{Z: math.MaxInt}, Insert(red))
	require.NoError(t, err)
	assert.True(t, box.Empty(), "смещение за домен ничего не меняет")
	_, err = w.SetSpans([]Span{{X: 5, Y: 5, Z0: 0, Z1: 1}}, vec.IVec3{X: math.MaxInt}, Insert(red))
	require.NoError(t, err)
	assert.Equal(t, 4+3, w.CountSolid(w.Bounds()))

	owned, mass, err := w.MeltSpans([]Span{{X: 3, Y: 3, Z0: 0, Z1: math.MaxInt}}, vec.IVec3{})
	require.NoError(t, err)
	require.NotNil(t, owned)
	defer owned.Close()
	assert.Equal(t, 4, mass)
}

func TestQuery_FreeRadiusLimits(t *testing.T) {
	w := newTestWorld(t)
	withFloor(t, w, red)
	p := vec.New(32, 32, 10)

	cases := []struct {
		name string
		cap  float64
		want float64
	}{
		{"малый предел", 5, 5},
		{"большой предел", 1e5, 30},
		{"огромный предел", 1e300, 30},
		{"бесконечный предел", math.Inf(1), 30},
		{"NaN", math.NaN(), 0},
		{"отрицательный", -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			finishes(t, 30*time.Second, func() {
				assert.InDelta(t, tc.want, w.MaxFreeRadius(p, tc.cap), 1e-9)
			})
		})
	}

	assert.InDelta(t, 1e9-64, w.MaxFreeRadius(vec.New(1e9, 32, 10), math.Inf(1)), 1,
		"точка далеко за доменом")
	assert.Zero(t, w.MaxFreeRadius(vec.New(math.Inf(1), 32, 10), 10))

	empty := newTestWorld(t)
	assert.True(t, math.IsInf(empty.MaxFreeRadius(p, math.Inf(1)), 1), "в пустом мире предел не ограничен")
}

func TestQuery_SlideMoveLimits(t *testing.T) {
	w := newTestWorld(t)
	withFloor(t, w, red)
	start := vec.New(32.5, 32.5, 30)

	for name, vel := range map[string]vec.Vec3{
		"+Inf": vec.New(math.Inf(1), 0, 0),
		"NaN":  vec.New(0, math.NaN(), 0),
	} {
		assert.Equal(t, start, w.SlideMove(start, vel, 1.5), "нечисловая скорость %s", name)
	}
	assert.Equal(t, start, w.SlideMove(start, vec.New(1, 0, 0), math.Inf(1)), "бесконечный радиус")

	finishes(t, 30*time.Second, func() {
		end := w.SlideMove(start, vec.New(0, 0, 1e9), 1.5)
		assert.LessOrEqual(t, end.Z, 38.5+1e-9, "огромная скорость не пробивает пол")

		end = w.SlideMove(start, vec.New(0, 0, -1e12), 1.5)
		assert.InDelta(t, 30-1e12, end.Z, 1, "вверх путь свободен")

		far := vec.New(-1e6, 32.5, 30)
		end = w.SlideMove(far, vec.New(-5, 0, 0), 1.5)
		assert.Equal(t, far.Add(vec.New(-5, 0, 0)), end, "вдали от мира движение свободно")
	})
}

func TestFreeze_RecolorsExposedVoxels(t *testing.T) {
	w := newTestWorld(t)
	_, err := w.SetRect(vec.NewI(10, 10, 10), vec.NewI(11, 11, 11), Insert(blue))
	require.NoError(t, err)

	var voxels []sprite.Voxel
	for i := 0; i < 8; i++ {
		voxels = append(voxels, sprite.Voxel{X: i & 1, Y: (i >> 1) & 1, Z: (i >> 2) & 1, Color: red})
	}
	m, err := sprite.NewModel("red", vec.NewI(2, 2, 2), vec.Vec3{}, voxels)
	require.NoError(t, err)

	_, err = w.FreezeModel(m, vec.NewI(10, 10, 10), 0, Insert(blue))
	require.NoError(t, err)
	c, ok := w.Color(vec.NewI(10, 10, 10))
	require.True(t, ok)
	assert.Equal(t, red, c, "модель перекрашивает воксели мира")

	_, err = w.SetRect(vec.NewI(20, 20, 20), vec.NewI(21, 21, 21), Insert(red))
	require.NoError(t, err)
	owned, _, err := w.MeltBox(vec.NewI(20, 20, 20), vec.NewI(2, 2, 2))
	require.NoError(t, err)
	require.NotNil(t, owned)
	defer owned.Close()
	_, err = w.SetRect(vec.NewI(20, 20, 20), vec.NewI(21, 21, 21), Remove())
	require.NoError(t, err)
	_, err = w.SetRect(vec.NewI(20, 20, 20), vec.NewI(21, 21, 21), Insert(blue))
	require.NoError(t, err)

	_, err = w.FreezeSprite(owned, Insert(blue))
	require.NoError(t, err)
	for _, p := range []vec.IVec3{vec.NewI(20, 20, 20), vec.NewI(21, 21, 21)} {
		c, ok := w.Color(p)
		require.True(t, ok)
		assert.Equal(t, red, c, "спрайт перекрашивает %v", p)
	}
}

func TestWorld_Close(t *testing.T) {
	w := newTestWorld(t)
	withFloor(t, w, red)
	require.False(t, w.Closed())

	w.Close()
	w.Close()
	assert.True(t, w.Closed())
	assert.Equal(t, 64, w.Side(), "размеры сохраняются")

	_, err := w.SetSphere(vec.NewI(32, 32, 32), 4, Insert(red))
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = w.SetRect(vec.NewI(0, 0, 0), vec.NewI(1, 1, 1), Insert(red))
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, _, err = w.MeltSphere(vec.NewI(32, 32, 45), 3)
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.ErrorIs(t, w.SetSpherePower(3), ErrEngineClosed)
	assert.ErrorIs(t, w.EncodeSnapshot(&bytes.Buffer{}, vec.Orientation{}), ErrEngineClosed)

	assert.False(t, w.IsSolid(vec.NewI(32, 32, 50)), "отсоединённый мир пуст")
	assert.Zero(t, w.CountSolid(w.Bounds()))
}

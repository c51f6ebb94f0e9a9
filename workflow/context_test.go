package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/releaseflow/types"
)

func TestContext_ForkLeavesPredecessorUntouched(t *testing.T) {
	t.Parallel()

	base := NewContext(testConfig{SkipGit: true}, &journal{}, map[string]any{"currentVersion": "1.0.0"})
	saved := base.Data()

	next := base.Fork("nextVersion", "1.1.0")

	assert.Equal(t, saved, base.Data())
	assert.False(t, base.Has("nextVersion"))
	assert.True(t, next.Has("nextVersion"))
	assert.Equal(t, "1.0.0", next.Data()["currentVersion"])
	assert.Equal(t, base.Config(), next.Config())
	assert.Same(t, base.Services(), next.Services())
}

func TestContext_NewContextCopiesInput(t *testing.T) {
	t.Parallel()

	in := map[string]any{"a": 1}
	wc := NewContext(testConfig{}, &journal{}, in)
	in["a"] = 2
	in["b"] = 3

	v, _ := wc.Get("a")
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, wc.Len())
}

func TestContext_DataReturnsCopy(t *testing.T) {
	t.Parallel()

	wc := newTestContext(testConfig{}).Fork("k", "v")
	d := wc.Data()
	d["k"] = "mutated"

	v, _ := wc.Get("k")
	assert.Equal(t, "v", v)
}

func TestContext_ForkAllAndKeys(t *testing.T) {
	t.Parallel()

	wc := newTestContext(testConfig{}).ForkAll(map[string]any{"b": 2, "a": 1, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, wc.Keys())
}

func TestValue(t *testing.T) {
	t.Parallel()

	wc := newTestContext(testConfig{}).Fork("nextVersion", "2.0.0")

	v, err := Value[string](wc, "nextVersion")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)

	_, err = Value[string](wc, "missing")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	_, err = Value[int](wc, "nextVersion")
	assert.Equal(t, types.ErrInvalid, types.GetErrorCode(err))
}

func TestChangedKeys(t *testing.T) {
	t.Parallel()

	a := newTestContext(testConfig{}).Fork("x", 1).Fork("list", []string{"a"})
	b := a.Fork("y", 2).Fork("x", 1)
	c := b.Fork("x", 5)

	assert.Equal(t, []string{"y"}, changedKeys(a, b))
	assert.Equal(t, []string{"x"}, changedKeys(b, c))
	assert.Nil(t, changedKeys(a, a))
}

// Property: a fork never alters any field of its predecessor.
func TestProperty_ContextImmutability(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,4}`), 0, 8).Draw(rt, "keys")
		initial := make(map[string]any, len(keys))
		for i, k := range keys {
			initial[k] = i
		}

		wc := NewContext(testConfig{}, &journal{}, initial)
		snapshot := wc.Data()
		keysBefore := wc.Keys()

		forks := rapid.IntRange(1, 10).Draw(rt, "forks")
		cur := wc
		for i := 0; i < forks; i++ {
			k := rapid.StringMatching(`[a-z]{1,4}`).Draw(rt, "forkKey")
			cur = cur.Fork(k, rapid.Int().Draw(rt, "forkValue"))
		}

		assert.Equal(rt, snapshot, wc.Data())
		assert.Equal(rt, keysBefore, wc.Keys())
	})
}

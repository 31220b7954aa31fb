package optionals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSomeNone(t *testing.T) {
	some := Some(42)
	none := None[int]()

	assert.True(t, some.IsSome())
	assert.False(t, some.IsNone())
	assert.True(t, none.IsNone())
	assert.False(t, none.IsSome())

	v, ok := some.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	v, ok = none.Get()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestGetOrDefault(t *testing.T) {
	assert.Equal(t, int64(7), Some(int64(7)).GetOrDefault(99))
	assert.Equal(t, int64(99), None[int64]().GetOrDefault(99))
}

func TestMap(t *testing.T) {
	double := func(n int) int { return 2 * n }
	assert.Equal(t, Some(84), Map(Some(42), double))
	assert.Equal(t, None[int](), Map(None[int](), double))
}

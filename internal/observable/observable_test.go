package observable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_SetNotifiesOnChange(t *testing.T) {
	v := NewComparable("a")
	var seen []string
	v.Subscribe(func(s string) { seen = append(seen, s) })

	assert.True(t, v.Set("b"))
	assert.False(t, v.Set("b"), "equal value must not notify")
	assert.True(t, v.Set("c"))

	assert.Equal(t, []string{"b", "c"}, seen)
	assert.Equal(t, "c", v.Get())
}

func TestValue_NilEqualAlwaysNotifies(t *testing.T) {
	v := New[[]int](nil, nil)
	count := 0
	v.Subscribe(func([]int) { count++ })

	v.Set([]int{1})
	v.Set([]int{1})
	assert.Equal(t, 2, count)
}

func TestValue_Dispose(t *testing.T) {
	v := NewComparable(0)
	count := 0
	sub := v.Subscribe(func(int) { count++ })
	require.Equal(t, 1, v.Subscribers())

	sub.Dispose()
	sub.Dispose()
	v.Set(1)

	assert.Equal(t, 0, count)
	assert.Equal(t, 0, v.Subscribers())
}

func TestValue_DisposeDuringNotification(t *testing.T) {
	v := NewComparable(0)
	var first Subscription
	calls := 0
	first = v.Subscribe(func(int) {
		calls++
		first.Dispose()
	})
	v.Subscribe(func(int) { calls++ })

	v.Set(1)
	v.Set(2)
	assert.Equal(t, 3, calls)
}

func TestValue_NestedWriteIsDeferred(t *testing.T) {
	v := NewComparable(0)
	var seen []int
	v.Subscribe(func(n int) {
		seen = append(seen, n)
		if n == 1 {
			v.Set(2)
			// The nested write is not visible until this round finishes.
			assert.Equal(t, 1, v.Get())
		}
	})
	v.Subscribe(func(n int) { seen = append(seen, n*10) })

	v.Set(1)
	assert.Equal(t, []int{1, 10, 2, 20}, seen)
	assert.Equal(t, 2, v.Get())
}

func TestValue_NestedWritesKeepLastValue(t *testing.T) {
	v := NewComparable(0)
	var seen []int
	done := false
	v.Subscribe(func(n int) {
		seen = append(seen, n)
		if n == 1 && !done {
			done = true
			v.Set(2)
			v.Set(1)
		}
	})

	v.Set(1)
	assert.Equal(t, 1, v.Get())
	assert.Equal(t, []int{1, 2, 1}, seen)
}

func TestValue_NestedDuplicateWritesCoalesce(t *testing.T) {
	v := NewComparable(0)
	var seen []int
	v.Subscribe(func(n int) {
		seen = append(seen, n)
		if n == 1 {
			assert.True(t, v.Set(3))
			assert.False(t, v.Set(3), "same as the queued write")
		}
	})

	v.Set(1)
	assert.Equal(t, 3, v.Get())
	assert.Equal(t, []int{1, 3}, seen)
}

func TestGroup_Dispose(t *testing.T) {
	a := NewComparable(0)
	b := NewComparable("")
	var g Group
	g.Add(a.Subscribe(func(int) {}))
	g.Add(b.Subscribe(func(string) {}))
	require.Equal(t, 2, g.Len())

	g.Dispose()
	assert.Equal(t, 0, a.Subscribers())
	assert.Equal(t, 0, b.Subscribers())
	assert.Equal(t, 0, g.Len())
}

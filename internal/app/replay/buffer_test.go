package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Buffer_BoundedByCapacity(t *testing.T) {
	b := New(5)

	for i := 0; i < 20; i++ {
		b.Append(i)
	}

	assert.Equal(t, 5, b.Len())
	assert.LessOrEqual(t, b.Len(), b.Capacity())
}

func Test_Buffer_SnapshotOrderAndContent(t *testing.T) {
	b := New(5)

	for i := 0; i < 10; i++ {
		b.Append(i)
	}

	snap := b.Snapshot()
	require := []int{5, 6, 7, 8, 9}

	assert.Len(t, snap, 5)

	for i, v := range snap {
		assert.Equal(t, require[i], v)
	}
}

func Test_Buffer_FewerThanCapacity(t *testing.T) {
	b := New(256)

	for i := 0; i < 3; i++ {
		b.Append(i)
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []interface{}{0, 1, 2}, b.Snapshot())
}

func Test_Buffer_EmptySnapshot(t *testing.T) {
	b := New(10)
	assert.Empty(t, b.Snapshot())
}

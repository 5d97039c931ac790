package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBuilder(t *testing.T) {
	t.Run("builds immutable adjacency", func(t *testing.T) {
		b := newSnapshotBuilder(0)
		a, err := b.addNode("a", "Person")
		require.NoError(t, err)
		c, err := b.addNode("c", "Person")
		require.NoError(t, err)
		anon, err := b.addNode("", "")
		require.NoError(t, err)
		require.NoError(t, b.addEdge(a, c, "KNOWS"))
		require.NoError(t, b.addEdge(c, anon, "OWNS"))

		snap := b.build(7)
		assert.Equal(t, uint64(7), snap.LoadedEpoch())
		assert.Equal(t, 3, snap.NodeCount())
		assert.Equal(t, 2, snap.EdgeCount())
		assert.Positive(t, snap.MemoryBytes())

		out := snap.Neighbors(a, DirectionOutgoing)
		require.Len(t, out, 1)
		assert.Equal(t, "c", out[0].Key)
		assert.Equal(t, "KNOWS", out[0].Relation)

		in := snap.Neighbors(c, DirectionIncoming)
		require.Len(t, in, 1)
		assert.Equal(t, "a", in[0].Key)

		both := snap.Neighbors(c, DirectionBoth)
		assert.Len(t, both, 2)
	})

	t.Run("key index maps each key to one node", func(t *testing.T) {
		b := newSnapshotBuilder(0)
		_, err := b.addNode("dup", "Person")
		require.NoError(t, err)
		_, err = b.addNode("dup", "Person")
		assert.Error(t, err)
	})

	t.Run("keyless nodes are not indexed", func(t *testing.T) {
		b := newSnapshotBuilder(0)
		_, err := b.addNode("", "Person")
		require.NoError(t, err)
		_, err = b.addNode("", "Person")
		require.NoError(t, err)

		snap := b.build(1)
		_, ok := snap.InternalIDForKey("")
		assert.False(t, ok)
	})

	t.Run("memory cap aborts the build", func(t *testing.T) {
		b := newSnapshotBuilder(64)
		var err error
		for i := 0; err == nil && i < 100; i++ {
			_, err = b.addNode("", "Label")
		}
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("relation types are interned", func(t *testing.T) {
		b := newSnapshotBuilder(0)
		a, _ := b.addNode("a", "")
		c, _ := b.addNode("c", "")
		for i := 0; i < 10; i++ {
			require.NoError(t, b.addEdge(a, c, "SAME_TYPE"))
		}
		snap := b.build(1)
		assert.Len(t, snap.relNames, 1)
		assert.Equal(t, 10, snap.EdgeCount())
	})
}

func TestSnapshot_InternalIDForKey(t *testing.T) {
	snap := loadSnapshot(t, chainEngine(t))

	id, ok := snap.InternalIDForKey("A")
	require.True(t, ok)
	assert.Equal(t, "A", snap.KeyOf(id))
	assert.Equal(t, "Entity", snap.LabelOf(id))

	// Absence is a normal result, not an error.
	_, ok = snap.InternalIDForKey("does-not-exist")
	assert.False(t, ok)
}

func TestSnapshot_NeighborsOutOfRange(t *testing.T) {
	snap := loadSnapshot(t, chainEngine(t))
	assert.Nil(t, snap.Neighbors(-1, DirectionBoth))
	assert.Nil(t, snap.Neighbors(int32(snap.NodeCount()), DirectionBoth))
}

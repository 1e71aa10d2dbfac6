package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEncodeDecode(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		original := snapshotOf("ethiopia-yirgacheffe", "colombia-supremo")

		decoded := DecodeSnapshot(original.Encode())
		require.NotNil(t, decoded)
		assert.Equal(t, original.Handles, decoded.Handles)
	})

	t.Run("nil handles encode to empty JSON array", func(t *testing.T) {
		t.Parallel()

		s := &Snapshot{}
		assert.Equal(t, "[]", s.Encode())
	})

	t.Run("corrupt value decodes to nil", func(t *testing.T) {
		t.Parallel()

		// 손상된 캐시 값은 "이전 상태 없음"으로 처리됩니다.
		assert.Nil(t, DecodeSnapshot("not json"))
		assert.Nil(t, DecodeSnapshot(`{"handles":[]}`))
	})

	t.Run("empty JSON array decodes to empty snapshot", func(t *testing.T) {
		t.Parallel()

		decoded := DecodeSnapshot("[]")
		require.NotNil(t, decoded)
		assert.True(t, decoded.Empty())
	})
}

func TestSnapshotEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, snapshotOf("a", "b").Equal(snapshotOf("a", "b")))
	assert.False(t, snapshotOf("a", "b").Equal(snapshotOf("b", "a")))
	assert.False(t, snapshotOf("a").Equal(snapshotOf("a", "b")))
	assert.False(t, snapshotOf("a").Equal(nil))
	assert.True(t, snapshotOf().Equal(snapshotOf()))
}

func TestSnapshotSubsetOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		current  *Snapshot
		stored   *Snapshot
		expected bool
	}{
		{"equal sets", snapshotOf("a", "b"), snapshotOf("a", "b"), true},
		{"order does not matter", snapshotOf("b", "a"), snapshotOf("a", "b"), true},
		{"proper subset", snapshotOf("a"), snapshotOf("a", "b"), true},
		{"empty set is subset of anything", snapshotOf(), snapshotOf("a"), true},
		{"empty set is subset of empty set", snapshotOf(), snapshotOf(), true},
		{"new handle breaks subset", snapshotOf("a", "c"), snapshotOf("a", "b"), false},
		{"nil stored is never a superset", snapshotOf(), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.current.SubsetOf(tt.stored))
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	t.Parallel()

	coffees := []Coffee{
		{Title: "Alpha", Handle: "alpha"},
		{Title: "Bravo", Handle: "bravo"},
	}

	s := NewSnapshot(coffees)
	assert.Equal(t, []string{"alpha", "bravo"}, s.Handles)
	assert.Equal(t, "alpha,bravo", s.Joined())
}

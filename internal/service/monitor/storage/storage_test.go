package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripCases 모든 백엔드가 동일하게 통과해야 하는 저장/조회 시나리오입니다.
func runCacheStoreContract(t *testing.T, store CacheStore) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		value, ok, err := store.Load("never-saved")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", value)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Save("coffees", `["alpha","bravo"]`))

		value, ok, err := store.Load("coffees")
		require.NoError(t, err)
		assert.True(t, ok)

		// 저장한 값은 byte-for-byte 그대로 돌아와야 합니다.
		assert.Equal(t, `["alpha","bravo"]`, value)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Save("coffees", `["alpha"]`))
		require.NoError(t, store.Save("coffees", `["bravo"]`))

		value, ok, err := store.Load("coffees")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `["bravo"]`, value)
	})

	t.Run("empty value", func(t *testing.T) {
		require.NoError(t, store.Save("empty", ""))

		value, ok, err := store.Load("empty")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "", value)
	})

	t.Run("hostile key is stored safely", func(t *testing.T) {
		key := "../../etc/passwd"

		require.NoError(t, store.Save(key, "value"))

		value, ok, err := store.Load(key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "value", value)
	})
}

func TestFileCacheStore(t *testing.T) {
	t.Parallel()

	store, err := NewFileCacheStore(t.TempDir())
	require.NoError(t, err)

	runCacheStoreContract(t, store)
}

func TestBoltCacheStore(t *testing.T) {
	t.Parallel()

	store, err := NewBoltCacheStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		if closer, ok := store.(io.Closer); ok {
			_ = closer.Close()
		}
	})

	runCacheStoreContract(t, store)
}

func TestNewCacheStore(t *testing.T) {
	t.Parallel()

	t.Run("empty backend defaults to file", func(t *testing.T) {
		t.Parallel()

		store, err := NewCacheStore("", t.TempDir())
		require.NoError(t, err)
		assert.IsType(t, &fileCacheStore{}, store)
	})

	t.Run("bolt backend", func(t *testing.T) {
		t.Parallel()

		store, err := NewCacheStore(BackendBolt, t.TempDir())
		require.NoError(t, err)
		assert.IsType(t, &boltCacheStore{}, store)

		if closer, ok := store.(io.Closer); ok {
			_ = closer.Close()
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Parallel()

		_, err := NewCacheStore("redis", t.TempDir())
		require.Error(t, err)
	})
}

func TestGenerateFilename(t *testing.T) {
	t.Parallel()

	// 같은 키는 항상 같은 파일명을, 다른 키는 다른 파일명을 생성해야 합니다.
	assert.Equal(t, generateFilename("coffees"), generateFilename("coffees"))
	assert.NotEqual(t, generateFilename("coffees"), generateFilename("Coffees"))

	// 경로 구분자가 파일명에 남아있으면 안 됩니다.
	assert.NotContains(t, generateFilename("a/b\\c"), "/")
	assert.NotContains(t, generateFilename("a/b\\c"), "\\")
}

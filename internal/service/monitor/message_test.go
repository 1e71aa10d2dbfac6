package monitor

import (
	"testing"
	"time"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageBuilder(t *testing.T) {
	t.Parallel()

	t.Run("valid timezone", func(t *testing.T) {
		t.Parallel()

		b, err := NewMessageBuilder("https://shop.example.com/collections/coffee", "America/Los_Angeles")
		require.NoError(t, err)
		assert.NotNil(t, b)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		t.Parallel()

		_, err := NewMessageBuilder("https://shop.example.com/collections/coffee", "Mars/Olympus_Mons")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
	})
}

func TestMessageBuilderBuild(t *testing.T) {
	t.Parallel()

	builder, err := NewMessageBuilder("https://shop.example.com/collections/coffee", "America/Los_Angeles")
	require.NoError(t, err)

	// 2024-01-15 12:00 UTC == 2024-01-15 04:00 PST
	updatedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	coffees := []Coffee{
		{Title: "Alpha - Instant Coffee", Handle: "alpha", Price: "9.50"},
		{Title: "Bravo - Instant Coffee", Handle: "bravo", Price: "12.00"},
	}

	t.Run("full message without preview", func(t *testing.T) {
		t.Parallel()

		expected := "☕ **New coffees are up for grabs!**\n" +
			"- ☕ Alpha ($9.50)\n" +
			"- ☕ Bravo ($12.00)\n" +
			"\nCheck out the full lineup: https://shop.example.com/collections/coffee" +
			"\nlast changed on January 15, 2024 PST."

		assert.Equal(t, expected, builder.Build(coffees, updatedAt, ""))
	})

	t.Run("preview URL replaces the closing period", func(t *testing.T) {
		t.Parallel()

		message := builder.Build(coffees, updatedAt, "https://preview.example.com/?payload=abc")

		// 마침표가 미리보기 링크를 담은 마크다운 링크로 대체됩니다.
		assert.Contains(t, message, "last changed on January 15, 2024 PST[.](https://preview.example.com/?payload=abc)")
		assert.NotContains(t, message, "PST.")
	})

	t.Run("suffix is stripped only from the rendered title", func(t *testing.T) {
		t.Parallel()

		message := builder.Build([]Coffee{{Title: "Kenya - Instant Coffee", Price: "16.00"}}, time.Time{}, "")

		assert.Contains(t, message, "- ☕ Kenya ($16.00)")
		assert.NotContains(t, message, "Instant Coffee")
	})

	t.Run("empty listing message", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "There are no coffees available right now.", builder.Build(nil, time.Time{}, ""))
	})

	t.Run("empty listing message keeps the timestamp line", func(t *testing.T) {
		t.Parallel()

		expected := "There are no coffees available right now.\n" +
			"last changed on January 15, 2024 PST."

		assert.Equal(t, expected, builder.Build(nil, updatedAt, ""))
	})

	t.Run("zero updatedAt omits the timestamp line", func(t *testing.T) {
		t.Parallel()

		message := builder.Build(coffees, time.Time{}, "")
		assert.NotContains(t, message, "last changed on")
	})
}

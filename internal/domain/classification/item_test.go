package classification

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	batchID := uuid.New()

	item := NewItem(id, batchID, "https://example.com")

	assert.Equal(t, id, item.ID())
	assert.Equal(t, batchID, item.BatchID())
	assert.Equal(t, "https://example.com", item.URL())
	assert.Equal(t, ItemStatusPending, item.Status())
	assert.Empty(t, item.ErrorMessage())
	assert.Empty(t, item.Content())
	assert.Nil(t, item.ProcessedAt())
}

func TestItem_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start then complete", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")

		require.NoError(t, item.Start())
		assert.Equal(t, ItemStatusProcessing, item.Status())
		assert.Nil(t, item.ProcessedAt())

		require.NoError(t, item.Complete("extracted text"))
		assert.Equal(t, ItemStatusCompleted, item.Status())
		assert.Equal(t, "extracted text", item.Content())
		require.NotNil(t, item.ProcessedAt())
	})

	t.Run("start then fail", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")

		require.NoError(t, item.Start())
		require.NoError(t, item.Fail("content extraction failed"))

		assert.Equal(t, ItemStatusFailed, item.Status())
		assert.Equal(t, "content extraction failed", item.ErrorMessage())
		require.NotNil(t, item.ProcessedAt())
	})

	t.Run("fail straight from pending", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")

		require.NoError(t, item.Fail("enqueue poison"))
		assert.Equal(t, ItemStatusFailed, item.Status())
	})

	t.Run("cancel from pending", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")

		require.NoError(t, item.Cancel("batch cancelled by user"))
		assert.Equal(t, ItemStatusCancelled, item.Status())
		assert.Equal(t, "batch cancelled by user", item.ErrorMessage())
		require.NotNil(t, item.ProcessedAt())
	})

	t.Run("complete from pending is rejected", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")

		assert.Error(t, item.Complete("text"))
		assert.Equal(t, ItemStatusPending, item.Status())
	})

	t.Run("terminal item cannot be reopened", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")
		require.NoError(t, item.Start())
		require.NoError(t, item.Complete("text"))

		assert.Error(t, item.Start())
		assert.Error(t, item.Fail("late failure"))
		assert.Error(t, item.Cancel("late cancel"))
		assert.Equal(t, ItemStatusCompleted, item.Status())
		assert.Empty(t, item.ErrorMessage())
	})

	t.Run("failed item keeps first failure message", func(t *testing.T) {
		t.Parallel()

		item := NewItem(uuid.New(), uuid.New(), "https://example.com")
		require.NoError(t, item.Start())
		require.NoError(t, item.Fail("first"))

		assert.Error(t, item.Fail("second"))
		assert.Equal(t, "first", item.ErrorMessage())
	})
}

func TestItem_Complete_TruncatesContent(t *testing.T) {
	t.Parallel()

	item := NewItem(uuid.New(), uuid.New(), "https://example.com")
	require.NoError(t, item.Start())

	long := strings.Repeat("a", MaxStoredContentLen+1000)
	require.NoError(t, item.Complete(long))

	assert.Len(t, item.Content(), MaxStoredContentLen)
	assert.Equal(t, long[:MaxStoredContentLen], item.Content())
}

func TestItem_Complete_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	item := NewItem(uuid.New(), uuid.New(), "https://example.com")
	require.NoError(t, item.Start())

	// Three bytes per rune, so the byte limit lands mid-rune.
	long := strings.Repeat("€", MaxStoredContentLen)
	require.NoError(t, item.Complete(long))

	assert.True(t, utf8.ValidString(item.Content()))
	assert.LessOrEqual(t, len(item.Content()), MaxStoredContentLen)
	// The rune straddling the limit is dropped whole.
	assert.Equal(t, MaxStoredContentLen/3, utf8.RuneCountInString(item.Content()))
}

package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curatorhq/batchjobs/pkg/core"
)

func TestKind(t *testing.T) {
	assert.NoError(t, Kind(core.KindAnnotate))
	assert.NoError(t, Kind(core.KindCollect))
	assert.NoError(t, Kind("custom-kind.v2"))

	assert.ErrorIs(t, Kind(""), core.ErrInvalidKind)
	assert.ErrorIs(t, Kind("1starts-with-digit"), core.ErrInvalidKind)
	assert.ErrorIs(t, Kind("has spaces"), core.ErrInvalidKind)
	assert.ErrorIs(t, Kind(core.Kind(strings.Repeat("a", MaxKindLength+1))), core.ErrKindTooLong)
}

func TestItems(t *testing.T) {
	assert.ErrorIs(t, Items(nil), core.ErrNoItems)
	assert.ErrorIs(t, Items([]core.Item{}), core.ErrNoItems)
	assert.NoError(t, Items([]core.Item{{ID: "a"}}))

	big := make([]core.Item, MaxItems+1)
	assert.ErrorIs(t, Items(big), core.ErrTooManyItems)
}

func TestMetadata(t *testing.T) {
	assert.NoError(t, Metadata(nil))
	assert.NoError(t, Metadata(map[string]any{"a": 1}))

	big := make(map[string]any, MaxMetadataEntries+1)
	for i := 0; i <= MaxMetadataEntries; i++ {
		big[strings.Repeat("k", i+1)] = i
	}
	assert.ErrorIs(t, Metadata(big), core.ErrMetadataTooBig)
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorMessage(""))
	assert.Equal(t, "plain message", SanitizeErrorMessage("plain message"))
	assert.Equal(t, "no nulls", SanitizeErrorMessage("no\x00 nulls"))
	assert.Equal(t, "keeps\nnewlines", SanitizeErrorMessage("keeps\nnewlines"))

	long := strings.Repeat("x", MaxErrorMessageLength*2)
	out := SanitizeErrorMessage(long)
	assert.Len(t, out, MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestClampAttempts(t *testing.T) {
	assert.Equal(t, 1, ClampAttempts(0))
	assert.Equal(t, 1, ClampAttempts(-5))
	assert.Equal(t, 3, ClampAttempts(3))
	assert.Equal(t, MaxAttempts, ClampAttempts(MaxAttempts+10))
}

func TestClampBatchSize(t *testing.T) {
	assert.Equal(t, 1, ClampBatchSize(0))
	assert.Equal(t, 5, ClampBatchSize(5))
	assert.Equal(t, MaxBatchSize, ClampBatchSize(MaxBatchSize+1))
}

package mediaid

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.True(t, strings.HasPrefix(id, "med_"))
	assert.True(t, IsValid(id))
	assert.False(t, IsValid("jan_"+strings.TrimPrefix(id, "med_")))
	assert.NotEqual(t, id, New())
}

func TestNewLogicalAssetID(t *testing.T) {
	id := NewLogicalAssetID()
	assert.Len(t, id, 26)
	assert.Equal(t, strings.ToLower(id), id)
	assert.True(t, IsLogicalAssetID(id))
	assert.False(t, IsLogicalAssetID(strings.ToUpper(id)))
	assert.False(t, IsLogicalAssetID("not-an-id"))
}

func TestNewUploadID(t *testing.T) {
	id := NewUploadID()
	require.True(t, IsValidUploadID(id), id)

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "image", parts[0])
	_, err := strconv.ParseInt(parts[1], 10, 64)
	assert.NoError(t, err)
	assert.Len(t, parts[2], 8)
}

func TestNewUploadID_MonotonicTimestamp(t *testing.T) {
	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = NewUploadID()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		stamp := strings.Split(id, "-")[1]
		_, dup := seen[stamp]
		assert.False(t, dup, "timestamp %s issued twice", stamp)
		seen[stamp] = struct{}{}
	}
}

func TestNextUploadMillis_ClockGoesBackwards(t *testing.T) {
	first := nextUploadMillis(5_000_000_000_000)
	second := nextUploadMillis(1)
	assert.Greater(t, second, first)
}

func TestIsValidUploadID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "valid", value: "image-1712345678901-0a1b2c3d", want: true},
		{name: "uppercase hex", value: "image-1712345678901-0A1B2C3D", want: false},
		{name: "short suffix", value: "image-1712345678901-0a1b2c", want: false},
		{name: "long suffix", value: "image-1712345678901-0a1b2c3d4", want: false},
		{name: "non numeric timestamp", value: "image-17x2345678901-0a1b2c3d", want: false},
		{name: "wrong prefix", value: "video-1712345678901-0a1b2c3d", want: false},
		{name: "path traversal", value: "image-1-0a1b2c3d/../../etc", want: false},
		{name: "empty", value: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidUploadID(tt.value))
		})
	}
}

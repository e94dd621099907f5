package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lazychat/internal/saas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemaining(t *testing.T) {
	assert.Equal(t, time.Second, Remaining(t0, t0.Add(9*time.Minute+59*time.Second)))
	assert.Zero(t, Remaining(t0, t0.Add(10*time.Minute)))
	assert.Zero(t, Remaining(t0, t0.Add(time.Hour)))
	assert.Equal(t, CooldownWindow, Remaining(t0, t0))
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Minute, "10:00"},
		{61*time.Second + 200*time.Millisecond, "01:02"},
		{time.Second, "00:01"},
		{500 * time.Millisecond, "00:01"},
		{0, "00:00"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.in), tt.in.String())
	}
}

func TestParseServerTime(t *testing.T) {
	got, err := ParseServerTime("2025-12-22 05:59:01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 22, 5, 59, 1, 0, time.Local).UnixMilli(), got.UnixMilli())

	for _, bad := range []string{"2025/12/22", "", "yesterday", "2025-12-22T05:59:01Z"} {
		_, err := ParseServerTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazychat", "cooldown.json")
	store := NewFileStore(path)

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.UnixMilli(1766383141000)
	require.NoError(t, store.Save(at))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"completed_at":1766383141000}`, string(raw))

	got, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(got))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, ok, err = store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreIgnoresGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cooldown.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, ok, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	eta := 125
	p := saas.Progress{Percent: 55, CurrentPage: 3, TotalPages: 6, TotalProducts: 120, ETASeconds: &eta}
	assert.Equal(t, "55%, page 3 of 6, 120 products, about 2m 05s left", Describe(p))
	assert.Equal(t, "0%", Describe(saas.Progress{}))
}

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
)

func sampleDocument() *state.Document {
	doc := state.NewDocument("1.0.0")
	u := doc.EnsureUser("123", "alice", "2026-08-01 10:00:00")
	u.Points = 250
	u.Streak = 5
	u.MaxStreak = 9
	u.LastLogDate = "2026-08-28"
	u.TotalLogs = 20
	u.DaysActive = 18
	u.ConceptFrequency["transformer"] = 4
	doc.SetDailyFlag("2026-08-28", "123", state.FlagEvaluated)
	return doc
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	doc := sampleDocument()

	blob, err := codec.Encode(doc)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(blob, "LMS2:"))
	assert.LessOrEqual(t, len([]rune(blob)), MaxBlobRunes)

	raw, err := codec.Decode(blob)
	require.NoError(t, err)

	assert.Equal(t, float64(state.CurrentVersion), raw["state_version"])
	users, ok := raw["users"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, users, "123")

	user := users["123"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, float64(250), user["points"])
}

func TestCodecDecodeLegacyJSON(t *testing.T) {
	codec := NewCodec()

	raw, err := codec.Decode(`{"state_version": 1, "users": {}, "daily_flags": {}, "bot_metadata": {"version": "0.9"}}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), raw["state_version"])
}

func TestCodecDecodeCorruption(t *testing.T) {
	codec := NewCodec()

	tests := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"garbage", "not a state blob at all"},
		{"wrong prefix", "XYZ1:abcd1234abcd1234:payload"},
		{"missing parts", "LMS2:onlyonechunk"},
		{"bad base64", "LMS2:" + checksum("!!!not-base64!!!") + ":!!!not-base64!!!"},
		{"invalid json legacy", "{broken json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.blob)
			require.Error(t, err)
			assert.True(t, shared.IsCorruption(err), "expected corruption error, got %v", err)
		})
	}
}

func TestCodecDecodeChecksumMismatch(t *testing.T) {
	codec := NewCodec()

	blob, err := codec.Encode(sampleDocument())
	require.NoError(t, err)

	// Flip a payload character past the checksum segment.
	tampered := blob[:len(blob)-2] + "zz"
	_, err = codec.Decode(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrCorruption)
}

func TestCodecEncodeSizeCeiling(t *testing.T) {
	codec := NewCodec()
	doc := state.NewDocument("1.0.0")

	// Incompressible per-user concept maps blow past the ceiling.
	for i := 0; i < 400; i++ {
		u := doc.EnsureUser(randomID(i), "user", "2026-08-01 00:00:00")
		u.ConceptFrequency[randomID(i*7)+randomID(i*13)] = i
	}

	_, err := codec.Encode(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSizeExceeded)
}

func randomID(seed int) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 24)
	x := uint64(seed)*2654435761 + 12345
	for i := range b {
		x = x*6364136223846793005 + 1442695040888963407
		b[i] = chars[x%uint64(len(chars))]
	}
	return string(b)
}

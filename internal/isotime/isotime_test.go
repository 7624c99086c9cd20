package isotime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantMillis int64
		wantOffset int
		wantErr    bool
	}{
		{
			name:       "utc designator",
			value:      "2025-10-01T12:00:00Z",
			wantMillis: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
			wantOffset: 0,
		},
		{
			name:       "positive offset",
			value:      "2025-10-01T12:00:00+09:00",
			wantMillis: time.Date(2025, 10, 1, 3, 0, 0, 0, time.UTC).UnixMilli(),
			wantOffset: 540,
		},
		{
			name:       "negative offset with fraction",
			value:      "2025-10-01T12:00:00.250-05:30",
			wantMillis: time.Date(2025, 10, 1, 17, 30, 0, 250_000_000, time.UTC).UnixMilli(),
			wantOffset: -330,
		},
		{name: "missing offset", value: "2025-10-01T12:00:00", wantErr: true},
		{name: "space separator", value: "2025-10-01 12:00:00Z", wantErr: true},
		{name: "slashes", value: "2025/10/01T12:00:00Z", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := Parse(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMillis, ts.Millis)
			assert.Equal(t, tt.wantOffset, ts.OffsetMinutes)
		})
	}
}

func TestFormat(t *testing.T) {
	ms := time.Date(2025, 10, 1, 3, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2025-10-01T12:00:00+09:00", Format(ms, 540))
	assert.Equal(t, "2025-10-01T03:00:00+00:00", Format(ms, 0))
	assert.Equal(t, "2025-09-30T22:00:00-05:00", Format(ms, -300))
}

func TestLocalDayStart(t *testing.T) {
	// 2025-10-01 01:00 +09:00 is still Sept 30 in UTC.
	ms := time.Date(2025, 9, 30, 16, 0, 0, 0, time.UTC).UnixMilli()
	start := LocalDayStart(ms, 540)
	assert.Equal(t, time.Date(2025, 9, 30, 15, 0, 0, 0, time.UTC).UnixMilli(), start)
	assert.Equal(t, time.Wednesday, Weekday(start, 540))

	negative := time.Date(1969, 12, 31, 10, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC).UnixMilli(), LocalDayStart(negative, 0))
}

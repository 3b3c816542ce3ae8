package timegrid

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlots(t *testing.T) {
	t.Run("single tick window", func(t *testing.T) {
		slots, err := GenerateSlots("09:00", "09:30")
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, slots)
	})

	t.Run("one hour", func(t *testing.T) {
		slots, err := GenerateSlots("09:00", "10:00")
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30"}, slots)
	})

	t.Run("clinic day", func(t *testing.T) {
		slots, err := GenerateSlots("09:00", "21:00")
		require.NoError(t, err)
		assert.Len(t, slots, 24)
		assert.Equal(t, "09:00", slots[0])
		assert.Equal(t, "20:30", slots[len(slots)-1])
	})

	t.Run("empty when end is not after start", func(t *testing.T) {
		slots, err := GenerateSlots("12:00", "12:00")
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := GenerateSlots("08:00", "12:00")
		b, _ := GenerateSlots("08:00", "12:00")
		assert.Equal(t, a, b)
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := GenerateSlots("9am", "17:00")
		assert.True(t, errors.Is(err, ErrInvalidFormat))
	})
}

func TestWindowSlotsHalfOpen(t *testing.T) {
	w := Window{Start: MustMinutes("09:00"), End: MustMinutes("09:30")}
	assert.Equal(t, []string{"09:00"}, w.Slots())
}

func TestWindowSlotsDropsPartialTick(t *testing.T) {
	w, err := NewWindow("20:00", "20:45")
	require.NoError(t, err)
	assert.Equal(t, []string{"20:00"}, w.Slots())
	assert.False(t, w.Contains(MustMinutes("20:30"), DefaultDuration))

	short := Window{Start: MustMinutes("09:00"), End: MustMinutes("09:15")}
	assert.Empty(t, short.Slots())
}

func TestTimeToMinutes(t *testing.T) {
	m, err := TimeToMinutes("10:30")
	require.NoError(t, err)
	assert.Equal(t, 630, m)

	for _, bad := range []string{"", "9:30", "10:3", "10-30", "ab:cd", "10:30:00"} {
		_, err := TimeToMinutes(bad)
		assert.ErrorIs(t, err, ErrInvalidFormat, bad)
	}
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock("10:60"))
	assert.False(t, ValidClock("7:00"))
}

func TestMinutesToTime(t *testing.T) {
	assert.Equal(t, "00:00", MinutesToTime(0))
	assert.Equal(t, "09:05", MinutesToTime(545))
	assert.Equal(t, "20:30", MinutesToTime(1230))

	for m := 0; m < MinutesPerDay; m += SlotMinutes {
		back, err := TimeToMinutes(MinutesToTime(m))
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
}

func TestTickCount(t *testing.T) {
	assert.Equal(t, 1, TickCount(0))
	assert.Equal(t, 1, TickCount(30))
	assert.Equal(t, 2, TickCount(45))
	assert.Equal(t, 2, TickCount(60))
	assert.Equal(t, 3, TickCount(90))
}

func TestWindowContains(t *testing.T) {
	w, err := NewWindow("09:00", "21:00")
	require.NoError(t, err)

	assert.True(t, w.Contains(MustMinutes("09:00"), 30))
	assert.True(t, w.Contains(MustMinutes("20:30"), 30))
	assert.False(t, w.Contains(MustMinutes("20:30"), 60))
	assert.False(t, w.Contains(MustMinutes("08:30"), 30))

	_, err = NewWindow("18:00", "09:00")
	assert.Error(t, err)
}

func TestDayHelpers(t *testing.T) {
	loc := time.FixedZone("GST", 4*60*60)
	ts := time.Date(2024, 3, 12, 17, 45, 0, 0, loc)

	d := Day(ts, loc)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, loc), d)
	assert.True(t, SameDay(d, ts))
	assert.False(t, SameDay(d, ts.AddDate(0, 0, 1)))

	parsed, err := ParseDay("2024-03-12", loc)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(d))

	// 2024-03-12 is a Tuesday
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), WeekStart(ts))
}

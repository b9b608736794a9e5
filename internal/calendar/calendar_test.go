package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// 2024-02-08 .. 2024-02-19 around the Spring Festival break
func springFestival() *Calendar {
	return New([]time.Time{
		day("2024-02-19"),
		day("2024-02-07"),
		day("2024-02-08"),
		day("2024-02-08"), // duplicate
		day("2024-02-06"),
		day("2024-02-20"),
	})
}

func TestNew_SortsAndDeduplicates(t *testing.T) {
	cal := springFestival()

	assert.Equal(t, 5, cal.Len())
	assert.Equal(t, day("2024-02-06"), cal.First())
	assert.Equal(t, day("2024-02-20"), cal.Last())
	assert.True(t, cal.IsSession(day("2024-02-08")))
	assert.False(t, cal.IsSession(day("2024-02-12")))
}

func TestSessionsBetween(t *testing.T) {
	cal := springFestival()

	tests := []struct {
		name       string
		start, end time.Time
		want       []time.Time
	}{
		{"inclusive bounds", day("2024-02-07"), day("2024-02-19"),
			[]time.Time{day("2024-02-07"), day("2024-02-08"), day("2024-02-19")}},
		{"holiday bounds", day("2024-02-10"), day("2024-02-18"), nil},
		{"single session", day("2024-02-20"), day("2024-02-20"), []time.Time{day("2024-02-20")}},
		{"reversed", day("2024-02-20"), day("2024-02-06"), nil},
		{"beyond calendar", day("2024-03-01"), day("2024-03-10"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.SessionsBetween(tt.start, tt.end))
		})
	}
}

func TestSessionCountBetween(t *testing.T) {
	cal := springFestival()

	assert.Equal(t, 5, cal.SessionCountBetween(day("2024-01-01"), day("2024-12-31")))
	assert.Equal(t, 2, cal.SessionCountBetween(day("2024-02-08"), day("2024-02-19")))
	assert.Equal(t, 0, cal.SessionCountBetween(day("2024-02-10"), day("2024-02-18")))
	assert.Equal(t, 0, cal.SessionCountBetween(day("2024-02-19"), day("2024-02-08")))
}

func TestOffset(t *testing.T) {
	cal := springFestival()

	tests := []struct {
		name string
		date time.Time
		n    int
		want time.Time
	}{
		{"next session", day("2024-02-08"), 1, day("2024-02-19")},
		{"previous session", day("2024-02-19"), -1, day("2024-02-08")},
		{"zero on session", day("2024-02-07"), 0, day("2024-02-07")},
		{"holiday forward", day("2024-02-12"), 1, day("2024-02-19")},
		{"holiday forward two", day("2024-02-12"), 2, day("2024-02-20")},
		{"holiday backward", day("2024-02-12"), -1, day("2024-02-08")},
		{"holiday zero rolls forward", day("2024-02-12"), 0, day("2024-02-19")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.Offset(tt.date, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffset_OutOfRange(t *testing.T) {
	cal := springFestival()

	_, err := cal.Offset(day("2024-02-20"), 1)
	assert.ErrorIs(t, err, contracts.ErrOutOfRange)

	_, err = cal.Offset(day("2024-02-06"), -1)
	assert.ErrorIs(t, err, contracts.ErrOutOfRange)
}

func TestNext(t *testing.T) {
	cal := springFestival()

	next, ok := cal.Next(day("2024-02-08"))
	assert.True(t, ok)
	assert.Equal(t, day("2024-02-19"), next)

	_, ok = cal.Next(day("2024-02-20"))
	assert.False(t, ok)
}

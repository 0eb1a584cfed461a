package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/transit/storage"
)

func TestParseTimeOfDay(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out string
		err bool
	}{
		{"00:00", "000000", false},
		{"10:30", "103000", false},
		{"10:30:15", "103015", false},
		{"7:05", "070500", false},
		{"23:59:59", "235959", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"12:00:60", "", true},
		{"-1:00", "", true},
		{"12", "", true},
		{"12:00:00:00", "", true},
		{"ab:cd", "", true},
		{"", "", true},
	} {
		out, err := parseTimeOfDay(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.out, out, tc.in)
	}
}

func TestParseSchedules(t *testing.T) {
	lines := map[string]bool{"A": true}

	for _, tc := range []struct {
		name      string
		content   string
		schedules []*storage.Schedule
		err       bool
	}{
		{
			"file_order_preserved",
			`
line;weekday;departure
A;2;09:00
A;1;10:15:30
A;7;06:00`,
			[]*storage.Schedule{
				{LineCode: "A", Weekday: 2, Departure: "090000"},
				{LineCode: "A", Weekday: 1, Departure: "101530"},
				{LineCode: "A", Weekday: 7, Departure: "060000"},
			},
			false,
		},

		{
			"unknown_line",
			`
line;weekday;departure
B;1;09:00`,
			nil,
			true,
		},

		{
			"weekday_zero",
			`
line;weekday;departure
A;0;09:00`,
			nil,
			true,
		},

		{
			"weekday_eight",
			`
line;weekday;departure
A;8;09:00`,
			nil,
			true,
		},

		{
			"bad_departure",
			`
line;weekday;departure
A;1;25:00`,
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			require.NoError(t, writer.BeginSchedules())
			err = ParseSchedules(writer, bytes.NewBufferString(tc.content), lines)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, writer.EndSchedules())

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			schedules, err := reader.Schedules()
			require.NoError(t, err)
			assert.Equal(t, tc.schedules, schedules)
		})
	}
}

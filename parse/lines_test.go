package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/transit/storage"
)

func TestParseLines(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		lines   []*storage.Line
		err     bool
	}{
		{
			"two_lines",
			`
code;name
B;Bravo
A;Alpha`,
			[]*storage.Line{
				{Code: "A", Name: "Alpha"},
				{Code: "B", Name: "Bravo"},
			},
			false,
		},

		{
			"name_optional",
			`
code
A`,
			[]*storage.Line{{Code: "A"}},
			false,
		},

		{
			"empty_code",
			`
code;name
;Nameless`,
			nil,
			true,
		},

		{
			"repeated_code",
			`
code;name
A;Alpha
A;Again`,
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			codes, err := ParseLines(writer, bytes.NewBufferString(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tc.lines), len(codes))

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			lines, err := reader.Lines()
			require.NoError(t, err)
			assert.Equal(t, tc.lines, lines)
		})
	}
}

func TestParseLineStops(t *testing.T) {
	lines := map[string]bool{"A": true, "B": true}
	stops := map[int]bool{1: true, 2: true, 3: true}

	for _, tc := range []struct {
		name      string
		content   string
		lineStops []*storage.LineStop
		err       string
	}{
		{
			"sorted_by_line_and_sequence",
			`
line;stop;sequence
B;3;20
A;2;2
B;1;10
A;1;1
A;3;5`,
			[]*storage.LineStop{
				{LineCode: "A", StopCode: 1, Sequence: 1},
				{LineCode: "A", StopCode: 2, Sequence: 2},
				{LineCode: "A", StopCode: 3, Sequence: 5},
				{LineCode: "B", StopCode: 1, Sequence: 10},
				{LineCode: "B", StopCode: 3, Sequence: 20},
			},
			"",
		},

		{
			"unknown_line",
			`
line;stop;sequence
C;1;1`,
			nil,
			"unknown line: 'C' (row 1)",
		},

		{
			"unknown_stop",
			`
line;stop;sequence
A;1;1
A;4;2`,
			nil,
			"unknown stop: 4 (row 2)",
		},

		{
			"repeated_stop",
			`
line;stop;sequence
A;1;1
A;2;2
A;1;3`,
			nil,
			"line 'A' repeats stop 1 (row 3)",
		},

		{
			"repeated_sequence",
			`
line;stop;sequence
A;1;1
A;2;1`,
			nil,
			"line 'A' repeats sequence 1 (row 2)",
		},

		{
			"same_stop_on_different_lines",
			`
line;stop;sequence
A;1;1
B;1;1`,
			[]*storage.LineStop{
				{LineCode: "A", StopCode: 1, Sequence: 1},
				{LineCode: "B", StopCode: 1, Sequence: 1},
			},
			"",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			err = ParseLineStops(writer, bytes.NewBufferString(tc.content), lines, stops)
			if tc.err != "" {
				assert.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			lineStops, err := reader.LineStops()
			require.NoError(t, err)
			assert.Equal(t, tc.lineStops, lineStops)
		})
	}
}

package output

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

type rendered struct{}

func (rendered) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, "custom layout\n")
	return err
}

type stringer struct{}

func (stringer) String() string { return "as string" }

func TestWriterFormats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		value  any
		want   string
	}{
		{"json", FormatJSON, sample{"ffmpeg", "7.1"}, "{\n  \"name\": \"ffmpeg\",\n  \"version\": \"7.1\"\n}\n"},
		{"yaml", FormatYAML, sample{"ffmpeg", "7.1"}, "name: ffmpeg\nversion: \"7.1\"\n"},
		{"text renderer", FormatText, rendered{}, "custom layout\n"},
		{"text stringer", FormatText, stringer{}, "as string\n"},
		{"text fallback", FormatText, sample{"yt-dlp", "2024.10.22"}, "{Name:yt-dlp Version:2024.10.22}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewWriter(&buf, tt.format).Write(tt.value))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestStructured(t *testing.T) {
	assert.True(t, NewWriter(nil, FormatJSON).Structured())
	assert.True(t, NewWriter(nil, FormatYAML).Structured())
	assert.False(t, NewWriter(nil, FormatText).Structured())
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	err := Table(&buf, []string{"TOOL", "CURRENT", "LATEST"}, [][]string{
		{"ffmpeg", "6.1", "7.1"},
		{"yt-dlp", "", "2024.10.22"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "TOOL    CURRENT  LATEST", lines[0])
	assert.Equal(t, "ffmpeg  6.1      7.1", lines[1])
	assert.Equal(t, "yt-dlp  -        2024.10.22", lines[2])
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

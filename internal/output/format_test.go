package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type described struct {
	Name string `json:"name"`
}

func (d described) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "name: %s\n", d.Name)
	return err
}

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	formatter := New(FormatJSON)
	formatter.SetWriter(&buf)

	require.NoError(t, formatter.Output(described{Name: "strip"}))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "strip", decoded["name"])
}

func TestFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	formatter := New(FormatText)
	formatter.SetWriter(&buf)

	require.NoError(t, formatter.Output(described{Name: "strip"}))
	assert.Equal(t, "name: strip\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Output(42))
	assert.Equal(t, "42\n", buf.String())
}

func TestFormatter_Unsupported(t *testing.T) {
	formatter := New(Format("yaml"))
	formatter.SetWriter(io.Discard)
	assert.Error(t, formatter.Output("x"))
}

func TestGetFormatFromCmd(t *testing.T) {
	tests := []struct {
		value   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"xml", FormatText, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			AddFormatFlag(cmd)
			require.NoError(t, cmd.Flags().Set("output", tt.value))

			got, err := GetFormatFromCmd(cmd)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

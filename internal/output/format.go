package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Format represents the output format type
type Format string

const (
	// FormatText is the default human-readable text format
	FormatText Format = "text"
	// FormatJSON is the JSON output format
	FormatJSON Format = "json"
)

// TextWriter is implemented by results with a custom text rendering
type TextWriter interface {
	WriteText(w io.Writer) error
}

// Formatter handles different output formats
type Formatter struct {
	format Format
	writer io.Writer
}

// New creates a new Formatter with the specified format
func New(format Format) *Formatter {
	return &Formatter{
		format: format,
		writer: os.Stdout,
	}
}

// SetWriter sets a custom writer for output
func (f *Formatter) SetWriter(w io.Writer) {
	f.writer = w
}

// Output writes the data in the configured format
func (f *Formatter) Output(data interface{}) error {
	switch f.format {
	case FormatJSON:
		encoder := json.NewEncoder(f.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatText:
		if tw, ok := data.(TextWriter); ok {
			return tw.WriteText(f.writer)
		}
		_, err := fmt.Fprintf(f.writer, "%v\n", data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

// AddFormatFlag adds a --output flag to a cobra command
func AddFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text|json)")
}

// GetFormatFromCmd extracts the output format from a cobra command's flags
func GetFormatFromCmd(cmd *cobra.Command) (Format, error) {
	formatStr, err := cmd.Flags().GetString("output")
	if err != nil {
		return FormatText, err
	}

	format := Format(formatStr)
	switch format {
	case FormatText, FormatJSON:
		return format, nil
	default:
		return FormatText, fmt.Errorf("invalid output format: %s (must be 'text' or 'json')", formatStr)
	}
}

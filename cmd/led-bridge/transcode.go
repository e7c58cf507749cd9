package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"led-bridge/internal/hostmsg"
	"led-bridge/internal/output"
	"led-bridge/pkg/pixel"
)

var transcodeCmd = &cobra.Command{
	Use:   "transcode [payload]",
	Short: "Print the wire frame for one pixel payload",
	Long: `transcode decodes a host message ({"neopixels": ...}) or a bare pixel
payload (an array of packed colors or an object with a pixels field) and
prints the wire frame the bridge would send. The payload is read from stdin
when not given as an argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.GetFormatFromCmd(cmd)
		if err != nil {
			return err
		}

		var payload []byte
		if len(args) == 1 {
			payload = []byte(args[0])
		} else {
			payload, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}
		}

		frame, err := decodePayload(payload)
		if err != nil {
			return err
		}

		formatter := output.New(format)
		formatter.SetWriter(cmd.OutOrStdout())
		return formatter.Output(newWireFrameView(frame))
	},
}

func init() {
	output.AddFormatFlag(transcodeCmd)
}

func decodePayload(payload []byte) (pixel.Frame, error) {
	frame, ok, err := hostmsg.ParseMessage(payload)
	if ok {
		return frame, err
	}
	return pixel.DecodeFrame(json.RawMessage(payload))
}

// wireFrameView is the printable form of one transcoded frame
type wireFrameView struct {
	Pixels int    `json:"pixels"`
	Length int    `json:"length"`
	Hex    string `json:"hex"`
	Layout string `json:"layout,omitempty"`
	Rows   int    `json:"rows,omitempty"`
	Cols   int    `json:"cols,omitempty"`

	wire []byte
}

func newWireFrameView(frame pixel.Frame) wireFrameView {
	wire := pixel.TranscodeFrame(frame)
	view := wireFrameView{
		Pixels: pixel.Len(frame),
		Length: len(wire),
		Hex:    hex.EncodeToString(wire),
		wire:   wire,
	}
	if sf, ok := frame.(*pixel.StructuredFrame); ok {
		view.Layout = sf.Layout.String()
		view.Rows = sf.Rows
		view.Cols = sf.Cols
	}
	return view
}

func (v wireFrameView) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d pixels, %d bytes\n", v.Pixels, v.Length); err != nil {
		return err
	}
	for i := 0; i+pixel.BytesPerPixel <= len(v.wire); i += pixel.BytesPerPixel {
		px := v.wire[i : i+pixel.BytesPerPixel]
		if _, err := fmt.Fprintf(w, "%4d  r=%02x g=%02x b=%02x\n", i/pixel.BytesPerPixel, px[0], px[1], px[2]); err != nil {
			return err
		}
	}
	return nil
}

// Package pixel models the color frames emitted by the simulation host and
// their compact wire representation.
//
// A host frame is a sequence of packed 32-bit color values. Within each
// value the low byte is blue, the next byte red, the next green; the top
// byte (alpha) is ignored. The wire frame is the flat sequence of
// red, green, blue bytes, three per pixel, with no header or delimiter.
package pixel

// Layout is the pixel addressing mode announced by matrix parts
type Layout string

const (
	// LayoutLinear addresses pixels row by row in the same direction
	LayoutLinear Layout = ""

	// LayoutSerpentine reverses every other row
	LayoutSerpentine Layout = "serpentine"
)

// String returns a printable layout name
func (l Layout) String() string {
	if l == LayoutLinear {
		return "linear"
	}
	return string(l)
}

// Frame is one pixel update received from the host.
// It is either a FlatFrame or a *StructuredFrame.
type Frame interface {
	// PixelValues returns the packed color values in host order
	PixelValues() []uint32

	isFrame()
}

// FlatFrame is the plain value sequence sent by strip parts
type FlatFrame []uint32

// PixelValues implements Frame
func (f FlatFrame) PixelValues() []uint32 { return f }

func (FlatFrame) isFrame() {}

// StructuredFrame is the matrix form: values plus layout metadata.
// Only Pixels reaches the wire; the metadata is carried for callers
// that want to inspect it.
type StructuredFrame struct {
	Pixels     []uint32 `json:"pixels"`
	Rows       int      `json:"rows"`
	Cols       int      `json:"cols"`
	Layout     Layout   `json:"layout"`
	Brightness float64  `json:"brightness"`
}

// PixelValues implements Frame
func (f *StructuredFrame) PixelValues() []uint32 { return f.Pixels }

func (*StructuredFrame) isFrame() {}

// Len returns the number of pixels in the frame
func Len(f Frame) int {
	if f == nil {
		return 0
	}
	return len(f.PixelValues())
}

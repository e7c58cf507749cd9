package pixel

// BytesPerPixel is the wire size of one pixel
const BytesPerPixel = 3

// Channels extracts the red, green and blue channels from a packed value
func Channels(v uint32) (r, g, b uint8) {
	b = uint8(v & 0xFF)
	r = uint8((v >> 8) & 0xFF)
	g = uint8((v >> 16) & 0xFF)
	return r, g, b
}

// Transcode converts packed values into a new wire frame of len(pixels)*3 bytes
func Transcode(pixels []uint32) []byte {
	return AppendWire(make([]byte, 0, len(pixels)*BytesPerPixel), pixels)
}

// AppendWire appends the wire encoding of pixels to dst and returns the
// extended slice
func AppendWire(dst []byte, pixels []uint32) []byte {
	for _, v := range pixels {
		r, g, b := Channels(v)
		dst = append(dst, r, g, b)
	}
	return dst
}

// TranscodeFrame is Transcode applied to a frame's values
func TranscodeFrame(f Frame) []byte {
	if f == nil {
		return []byte{}
	}
	return Transcode(f.PixelValues())
}

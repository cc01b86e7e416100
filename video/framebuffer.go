package video

// A FrameBuffer is a RasterTarget that keeps the full raster in memory, one
// palette index per pixel.
type FrameBuffer struct {
	pixels     [LinesPerFrame * PixelsPerLine]byte
	lastFrame  uint64
	frameCount uint64
	dropCount  uint64
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Pixels exposes the raster, LinesPerFrame rows of PixelsPerLine bytes.
func (f *FrameBuffer) Pixels() []byte {
	return f.pixels[:]
}

// At returns the palette index at a raster position.
func (f *FrameBuffer) At(line, pixel int) byte {
	return f.pixels[line*PixelsPerLine+pixel]
}

// LastFrame returns the number of the most recently completed frame.
func (f *FrameBuffer) LastFrame() uint64 {
	return f.lastFrame
}

// Frames returns how many frames completed and how many of those were
// dropped by frame skip.
func (f *FrameBuffer) Frames() (completed, dropped uint64) {
	return f.frameCount, f.dropCount
}

// DrawBorder fills a span with the border color.
func (f *FrameBuffer) DrawBorder(line, fromPixel, toPixel int, color byte) {
	row := f.pixels[line*PixelsPerLine : (line+1)*PixelsPerLine]
	for i := fromPixel; i < toPixel; i++ {
		row[i] = color
	}
}

// DrawDisplay unpacks 4-bit VRAM pixels into a display span.
func (f *FrameBuffer) DrawDisplay(line, fromPixel, toPixel int, vram []byte) {
	row := f.pixels[(line+FirstDispLine)*PixelsPerLine+LeftBorder:]
	for i := fromPixel; i < toPixel; i++ {
		b := vram[i/2]
		if i%2 == 0 {
			row[i] = b >> 4
		} else {
			row[i] = b & 0x0F
		}
	}
}

// FrameDone records frame completion.
func (f *FrameBuffer) FrameDone(frame uint64, rendered bool) {
	f.lastFrame = frame
	f.frameCount++
	if !rendered {
		f.dropCount++
	}
}

// A NullTarget discards every span. It serves headless runs where only the
// timing of the renderer matters.
type NullTarget struct {
	frames uint64
}

// DrawBorder discards the span.
func (n *NullTarget) DrawBorder(line, fromPixel, toPixel int, color byte) {}

// DrawDisplay discards the span.
func (n *NullTarget) DrawDisplay(line, fromPixel, toPixel int, vram []byte) {}

// FrameDone counts the frame.
func (n *NullTarget) FrameDone(frame uint64, rendered bool) {
	n.frames++
}

// Frames returns how many frames completed.
func (n *NullTarget) Frames() uint64 {
	return n.frames
}

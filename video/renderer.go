// Package video holds the pixel renderer, the scheduler consumer that works
// at frame grain rather than byte grain. The renderer never draws ahead of
// virtual time: output is materialized only for the span between the last
// rendered position and the position implied by now, so a VRAM or register
// write first syncs the picture up to the write time and therefore lands on
// the correct pixel.
package video

import (
	"fmt"
	"log"
	"time"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/emu/state"
)

// Raster geometry. The pixel clock is 6 MHz so a frame divides the master
// clock exactly.
const (
	PixelFreq = 6 * emu.MHz

	PixelsPerLine = 342
	LinesPerFrame = 262

	DisplayWidth  = 256
	DisplayLines  = 192
	LeftBorder    = 43
	FirstDispLine = 35

	ticksPerFrame = PixelsPerLine * LinesPerFrame
)

// VRAMSize is the video memory size in bytes.
const VRAMSize = 0x8000

// bytesPerLine is the VRAM footprint of one display line (4 bits per pixel).
const bytesPerLine = DisplayWidth / 2

// Frame-skip bounds.
const (
	maxFrameSkip = 8

	// emaAlpha weights the newest frame cost at 1/8 in the moving average.
	emaAlphaShift = 3
)

const vidSyncFrame emu.SyncTag = 0

// A RasterTarget receives the materialized pixel spans.
type RasterTarget interface {
	// DrawBorder fills [fromPixel, toPixel) of a raster line with the
	// border color.
	DrawBorder(line, fromPixel, toPixel int, color byte)

	// DrawDisplay renders [fromPixel, toPixel) of a display line from the
	// line's VRAM bytes (4 bits per pixel).
	DrawDisplay(line, fromPixel, toPixel int, vram []byte)

	// FrameDone marks the end of a frame. Skipped frames are reported
	// with rendered set to false.
	FrameDone(frame uint64, rendered bool)
}

// A Renderer derives the raster position from elapsed virtual time and
// materializes output spans on demand.
type Renderer struct {
	name   string
	sched  *emu.Scheduler
	target RasterTarget

	frameClock emu.Clock // pixel clock, origin = start of current frame

	vram        [VRAMSize]byte
	borderColor byte
	blanked     bool

	frame         uint64
	renderedTicks uint64

	// Adaptive frame skip: frames whose host render cost keeps the moving
	// average above budget are dropped, timing preserved.
	frameSkip   int
	skipCounter int
	renderCost  time.Duration // EMA of host time per rendered frame
	costBudget  time.Duration
	frameStart  time.Time
}

// NewRenderer creates a renderer and schedules its first frame boundary.
// A zero budget disables adaptive frame skip.
func NewRenderer(
	name string,
	sched *emu.Scheduler,
	target RasterTarget,
	budget time.Duration,
	now emu.VTime,
) *Renderer {
	r := &Renderer{
		name:       name,
		sched:      sched,
		target:     target,
		frameClock: emu.NewClock(PixelFreq, now),
		costBudget: budget,
		frameStart: time.Now(),
	}

	r.sched.SetSyncPoint(r, vidSyncFrame, r.frameEnd())

	return r
}

// SchedName identifies the renderer in logs and traces.
func (r *Renderer) SchedName() string {
	return r.name
}

func (r *Renderer) frameEnd() emu.VTime {
	return r.frameClock.Origin().Add(PixelFreq.NTicks(ticksPerFrame))
}

func (r *Renderer) skipping() bool {
	return r.skipCounter > 0
}

// SetBorderColor changes the border color. The picture is synced first so
// the change takes effect mid-frame at the right pixel.
func (r *Renderer) SetBorderColor(color byte, now emu.VTime) {
	r.RenderUntil(now)
	r.borderColor = color
}

// SetBlanked turns display generation on or off; a blanked screen shows
// border color everywhere.
func (r *Renderer) SetBlanked(blanked bool, now emu.VTime) {
	r.RenderUntil(now)
	r.blanked = blanked
}

// WriteVRAM stores a byte of video memory, syncing the picture first.
func (r *Renderer) WriteVRAM(addr uint16, value byte, now emu.VTime) {
	r.RenderUntil(now)
	r.vram[int(addr)%VRAMSize] = value
}

// ReadVRAM returns a byte of video memory.
func (r *Renderer) ReadVRAM(addr uint16) byte {
	return r.vram[int(addr)%VRAMSize]
}

// Frame returns the current frame number.
func (r *Renderer) Frame() uint64 {
	return r.frame
}

// RasterPos returns the line and pixel the beam sits at.
func (r *Renderer) RasterPos(now emu.VTime) (line, pixel int) {
	ticks := r.frameTicks(now)
	return int(ticks / PixelsPerLine), int(ticks % PixelsPerLine)
}

func (r *Renderer) frameTicks(now emu.VTime) uint64 {
	ticks := r.frameClock.TicksTill(now)
	if ticks > ticksPerFrame {
		ticks = ticksPerFrame
	}
	return ticks
}

// RenderUntil materializes output up to the raster position implied by now.
func (r *Renderer) RenderUntil(now emu.VTime) {
	target := r.frameTicks(now)
	if target <= r.renderedTicks || r.skipping() {
		r.renderedTicks = target
		return
	}

	from := r.renderedTicks
	for from < target {
		line := int(from / PixelsPerLine)
		lineStart := uint64(line) * PixelsPerLine
		lineEnd := lineStart + PixelsPerLine
		if lineEnd > target {
			lineEnd = target
		}

		r.renderLineSpan(line, int(from-lineStart), int(lineEnd-lineStart))
		from = lineEnd
	}

	r.renderedTicks = target
}

// renderLineSpan subdivides [fromPixel, toPixel) of one line into border
// and display regions.
func (r *Renderer) renderLineSpan(line, fromPixel, toPixel int) {
	dispLine := line - FirstDispLine
	inWindow := !r.blanked && dispLine >= 0 && dispLine < DisplayLines
	if !inWindow {
		r.target.DrawBorder(line, fromPixel, toPixel, r.borderColor)
		return
	}

	dispStart := LeftBorder
	dispEnd := LeftBorder + DisplayWidth

	if fromPixel < dispStart {
		to := min(toPixel, dispStart)
		r.target.DrawBorder(line, fromPixel, to, r.borderColor)
		fromPixel = to
	}
	if fromPixel < dispEnd && toPixel > dispStart {
		to := min(toPixel, dispEnd)
		row := r.vram[dispLine*bytesPerLine : (dispLine+1)*bytesPerLine]
		r.target.DrawDisplay(dispLine, fromPixel-dispStart, to-dispStart, row)
		fromPixel = to
	}
	if fromPixel < toPixel {
		r.target.DrawBorder(line, fromPixel, toPixel, r.borderColor)
	}
}

// ExecuteUntil finishes the current frame and opens the next one.
func (r *Renderer) ExecuteUntil(t emu.VTime, tag emu.SyncTag) {
	if tag != vidSyncFrame {
		log.Panicf("%s: unknown sync tag %d", r.name, tag)
	}

	rendered := !r.skipping()
	r.RenderUntil(t)
	r.target.FrameDone(r.frame, rendered)

	r.updateFrameSkip(rendered)

	r.frame++
	r.renderedTicks = 0
	r.frameClock.Advance(t)
	r.frameStart = time.Now()

	r.sched.SetSyncPoint(r, vidSyncFrame, r.frameEnd())
}

// updateFrameSkip folds the host cost of the finished frame into the moving
// average and adjusts the skip counter.
func (r *Renderer) updateFrameSkip(rendered bool) {
	if r.costBudget == 0 {
		return
	}

	if rendered {
		cost := time.Since(r.frameStart)
		r.renderCost += (cost - r.renderCost) >> emaAlphaShift
	}

	switch {
	case r.skipCounter > 0:
		r.skipCounter--
	case r.renderCost > r.costBudget && r.frameSkip < maxFrameSkip:
		r.frameSkip++
		r.skipCounter = r.frameSkip
	case r.renderCost < r.costBudget/2 && r.frameSkip > 0:
		r.frameSkip--
	}
}

// Snapshot dumps the renderer state as a flat record. Host-side frame-skip
// bookkeeping is not persisted; it rebuilds from fresh measurements.
func (r *Renderer) Snapshot() (map[string]any, error) {
	record := map[string]any{
		"frameClock":    uint64(r.frameClock.Origin()),
		"vram":          append([]byte(nil), r.vram[:]...),
		"borderColor":   uint64(r.borderColor),
		"blanked":       r.blanked,
		"frame":         r.frame,
		"renderedTicks": r.renderedTicks,
	}

	if t, ok := r.sched.SyncPointTime(r, vidSyncFrame); ok {
		record["frameSyncPoint"] = uint64(t)
	}

	return record, nil
}

// Restore loads a record produced by Snapshot.
func (r *Renderer) Restore(record map[string]any) error {
	rd := state.NewReader(record)

	r.frameClock.SetOrigin(emu.VTime(rd.Uint64("frameClock")))
	vram := rd.Bytes("vram")
	r.borderColor = rd.Byte("borderColor")
	r.blanked = rd.Bool("blanked")
	r.frame = rd.Uint64("frame")
	r.renderedTicks = rd.Uint64("renderedTicks")

	if err := rd.Err(); err != nil {
		return err
	}

	if len(vram) != len(r.vram) {
		return fmt.Errorf("video: snapshot VRAM is %d bytes, want %d",
			len(vram), len(r.vram))
	}
	copy(r.vram[:], vram)

	r.sched.RemoveSyncPoint(r, vidSyncFrame)
	if t, ok := rd.OptionalUint64("frameSyncPoint"); ok {
		r.sched.SetSyncPoint(r, vidSyncFrame, emu.VTime(t))
	}
	if err := rd.Err(); err != nil {
		return err
	}

	r.skipCounter = 0
	r.frameStart = time.Now()

	return nil
}

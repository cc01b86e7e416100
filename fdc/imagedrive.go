package fdc

import (
	"fmt"

	"github.com/emusim/torii/emu"
)

// Rotation and head-load timing for a 300 RPM single-sided drive.
const (
	rotationsPerSecond = 5
	indexPulseWidthMS  = 2
	headLoadDelayMS    = 10
)

// An ImageDrive is a Drive backed by an in-memory sector image. It models
// the physical facts the controller asks about: head position, 300 RPM
// rotation with one index pulse per revolution, rotational position of each
// sector, and head-load settling.
type ImageDrive struct {
	tracks          int
	sectorsPerTrack int
	image           []byte

	inserted       bool
	writeProtected bool

	headTrack  int
	headLoaded bool
	headClock  emu.Clock // origin = when loading started

	// The spindle turns from time zero; rotational position is derived
	// from absolute time, never accumulated.
	rotation emu.Duration // master ticks per revolution
}

// NewImageDrive creates a drive with no disk in it.
func NewImageDrive() *ImageDrive {
	return &ImageDrive{
		headClock: emu.NewClock(emu.KHz, 0),
		rotation:  emu.Duration(emu.MainFreq / rotationsPerSecond),
	}
}

// Insert loads a disk image. The image must be tracks × sectorsPerTrack
// sectors of 512 bytes.
func (d *ImageDrive) Insert(image []byte, tracks, sectorsPerTrack int) error {
	want := tracks * sectorsPerTrack * SectorSize
	if len(image) != want {
		return fmt.Errorf("fdc: image is %d bytes, want %d", len(image), want)
	}

	d.image = image
	d.tracks = tracks
	d.sectorsPerTrack = sectorsPerTrack
	d.inserted = true

	return nil
}

// InsertBlank loads a freshly formatted, empty disk.
func (d *ImageDrive) InsertBlank(tracks, sectorsPerTrack int) {
	err := d.Insert(
		make([]byte, tracks*sectorsPerTrack*SectorSize),
		tracks, sectorsPerTrack)
	if err != nil {
		panic(err)
	}
}

// Eject removes the disk. The head position is kept.
func (d *ImageDrive) Eject() {
	d.inserted = false
	d.image = nil
}

// Image exposes the raw sector data, for writing the disk back to a file.
func (d *ImageDrive) Image() []byte {
	return d.image
}

// SetWriteProtected sets the write-protect tab.
func (d *ImageDrive) SetWriteProtected(protected bool) {
	d.writeProtected = protected
}

// IsDiskInserted reports whether media is present.
func (d *ImageDrive) IsDiskInserted() bool {
	return d.inserted
}

// IsWriteProtected reports whether the media refuses writes.
func (d *ImageDrive) IsWriteProtected() bool {
	return d.writeProtected
}

// IsTrack00 reports whether the head sits on track 0.
func (d *ImageDrive) IsTrack00() bool {
	return d.headTrack == 0
}

// HeadLoaded reports whether the head is loaded and has settled.
func (d *ImageDrive) HeadLoaded(now emu.VTime) bool {
	return d.headLoaded &&
		d.headClock.TicksTill(now) >= headLoadDelayMS
}

// SetHeadLoaded starts loading or unloading the head.
func (d *ImageDrive) SetHeadLoaded(loaded bool, now emu.VTime) {
	if loaded && !d.headLoaded {
		d.headClock.Advance(now)
	}
	d.headLoaded = loaded
}

// Step moves the head one track.
func (d *ImageDrive) Step(inward bool, now emu.VTime) {
	if inward {
		if d.headTrack < d.tracks-1 || !d.inserted {
			d.headTrack++
		}
	} else if d.headTrack > 0 {
		d.headTrack--
	}
}

// HeadTrack returns the physical track under the head.
func (d *ImageDrive) HeadTrack() int {
	return d.headTrack
}

func (d *ImageDrive) rotationPos(now emu.VTime) emu.Duration {
	return emu.Duration(now) % d.rotation
}

// IndexPulse reports whether the index hole is under the sensor.
func (d *ImageDrive) IndexPulse(now emu.VTime) bool {
	if !d.inserted {
		return false
	}
	return d.rotationPos(now) < emu.KHz.NTicks(indexPulseWidthMS)
}

// IndexPulseCount returns how many index pulses occurred in (since, now].
func (d *ImageDrive) IndexPulseCount(since, now emu.VTime) int {
	if !d.inserted {
		return 0
	}
	return int(emu.Duration(now)/d.rotation) -
		int(emu.Duration(since)/d.rotation)
}

// TimeTillIndexPulse returns the time until the next index pulse.
func (d *ImageDrive) TimeTillIndexPulse(now emu.VTime) emu.Duration {
	return d.rotation - d.rotationPos(now)
}

// TimeTillSector returns the time until the requested sector's angular
// position comes under the head. Sectors are laid out evenly around the
// revolution, sector 1 starting at the index pulse.
func (d *ImageDrive) TimeTillSector(sector byte, now emu.VTime) emu.Duration {
	if !d.inserted || d.sectorsPerTrack == 0 {
		return 0
	}

	slice := int(sector-1) % d.sectorsPerTrack
	target := d.rotation / emu.Duration(d.sectorsPerTrack) * emu.Duration(slice)
	pos := d.rotationPos(now)
	if target >= pos {
		return target - pos
	}
	return d.rotation - pos + target
}

func (d *ImageDrive) sectorOffset(sector byte) (int, error) {
	if !d.inserted {
		return 0, ErrNoDisk
	}
	if sector < 1 || int(sector) > d.sectorsPerTrack {
		return 0, ErrNoSuchSector
	}

	return (d.headTrack*d.sectorsPerTrack + int(sector) - 1) * SectorSize, nil
}

// ReadSector copies the sector under the current head track into buf.
func (d *ImageDrive) ReadSector(sector byte, buf []byte) (SectorHeader, error) {
	offset, err := d.sectorOffset(sector)
	if err != nil {
		return SectorHeader{}, err
	}

	copy(buf, d.image[offset:offset+SectorSize])

	return d.header(sector), nil
}

// WriteSector writes buf to the sector under the current head track.
func (d *ImageDrive) WriteSector(sector byte, buf []byte) (SectorHeader, error) {
	if d.inserted && d.writeProtected {
		return SectorHeader{}, ErrWriteProtected
	}

	offset, err := d.sectorOffset(sector)
	if err != nil {
		return SectorHeader{}, err
	}

	copy(d.image[offset:offset+SectorSize], buf[:SectorSize])

	return d.header(sector), nil
}

func (d *ImageDrive) header(sector byte) SectorHeader {
	return SectorHeader{
		Track:  byte(d.headTrack),
		Sector: sector,
		Side:   0,
		Size:   SectorSize,
	}
}

// WriteTrackData formats the track under the head. The raw byte stream's
// gap and mark structure is not preserved in a sector image, so formatting
// clears the track's sectors.
func (d *ImageDrive) WriteTrackData(buf []byte) error {
	if !d.inserted {
		return ErrNoDisk
	}
	if d.writeProtected {
		return ErrWriteProtected
	}

	start := d.headTrack * d.sectorsPerTrack * SectorSize
	end := start + d.sectorsPerTrack*SectorSize
	for i := start; i < end; i++ {
		d.image[i] = 0
	}

	return nil
}

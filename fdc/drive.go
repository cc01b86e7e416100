// Package fdc emulates floppy-disk controller chips. The controllers model
// register-level, cycle-accurate behavior against the virtual clock: seek
// and head-load delays, rotational latency, and per-byte transfer pacing are
// all represented as scheduled sync points or lazily derived signals, never
// as blocking waits.
package fdc

import (
	"errors"

	"github.com/emusim/torii/emu"
)

// SectorSize is the number of bytes in one sector.
const SectorSize = 512

// RawTrackSize is the number of raw bytes on one track, including gaps and
// address marks. It sizes the controller transfer buffer for write-track.
const RawTrackSize = 6250

// Media faults. The controller translates these into status-register bits;
// they never propagate past a register access.
var (
	ErrNoDisk         = errors.New("fdc: no disk inserted")
	ErrWriteProtected = errors.New("fdc: disk is write protected")
	ErrNoSuchSector   = errors.New("fdc: sector not found")
)

// SectorHeader describes the address mark the drive found on disk. The
// controller re-validates it against its own registers instead of trusting
// them, because media can be swapped between calls.
type SectorHeader struct {
	Track  byte
	Sector byte
	Side   byte
	Size   int
}

// Drive is the backend media collaborator: it supplies physical geometry
// facts and performs the actual sector I/O against a disk image. The
// controller queries these facts fresh on every call and never caches them.
type Drive interface {
	// IsDiskInserted reports whether media is present.
	IsDiskInserted() bool

	// IsWriteProtected reports whether the media refuses writes.
	IsWriteProtected() bool

	// IsTrack00 reports whether the head sits on the outermost track.
	IsTrack00() bool

	// HeadLoaded reports whether the head is loaded and settled at now.
	HeadLoaded(now emu.VTime) bool

	// SetHeadLoaded starts loading or unloading the head at now.
	SetHeadLoaded(loaded bool, now emu.VTime)

	// Step moves the head one track, inward when inward is true.
	Step(inward bool, now emu.VTime)

	// IndexPulse reports whether the index hole is under the sensor at now.
	IndexPulse(now emu.VTime) bool

	// IndexPulseCount returns how many index pulses occurred in
	// (since, now].
	IndexPulseCount(since, now emu.VTime) int

	// TimeTillIndexPulse returns the time until the next index pulse.
	TimeTillIndexPulse(now emu.VTime) emu.Duration

	// TimeTillSector returns the time until the requested sector rotates
	// under the head. It depends on the current rotational position, not a
	// fixed constant.
	TimeTillSector(sector byte, now emu.VTime) emu.Duration

	// ReadSector copies the sector's data into buf and returns the address
	// mark found on disk.
	ReadSector(sector byte, buf []byte) (SectorHeader, error)

	// WriteSector writes buf to the sector and returns the address mark the
	// data went to.
	WriteSector(sector byte, buf []byte) (SectorHeader, error)

	// WriteTrackData hands a raw track image to the drive. Byte-level track
	// encoding semantics are the drive's concern.
	WriteTrackData(buf []byte) error
}

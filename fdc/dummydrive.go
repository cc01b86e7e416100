package fdc

import (
	"github.com/emusim/torii/emu"
)

// A DummyDrive stands in for an unpopulated drive slot. It never has media
// and every I/O attempt fails.
type DummyDrive struct {
}

// IsDiskInserted always reports false.
func (d *DummyDrive) IsDiskInserted() bool {
	return false
}

// IsWriteProtected always reports false.
func (d *DummyDrive) IsWriteProtected() bool {
	return false
}

// IsTrack00 always reports true.
func (d *DummyDrive) IsTrack00() bool {
	return true
}

// HeadLoaded always reports false.
func (d *DummyDrive) HeadLoaded(now emu.VTime) bool {
	return false
}

// SetHeadLoaded does nothing.
func (d *DummyDrive) SetHeadLoaded(loaded bool, now emu.VTime) {
}

// Step does nothing.
func (d *DummyDrive) Step(inward bool, now emu.VTime) {
}

// IndexPulse always reports false.
func (d *DummyDrive) IndexPulse(now emu.VTime) bool {
	return false
}

// IndexPulseCount always returns 0.
func (d *DummyDrive) IndexPulseCount(since, now emu.VTime) int {
	return 0
}

// TimeTillIndexPulse returns 0.
func (d *DummyDrive) TimeTillIndexPulse(now emu.VTime) emu.Duration {
	return 0
}

// TimeTillSector returns 0.
func (d *DummyDrive) TimeTillSector(sector byte, now emu.VTime) emu.Duration {
	return 0
}

// ReadSector fails with ErrNoDisk.
func (d *DummyDrive) ReadSector(sector byte, buf []byte) (SectorHeader, error) {
	return SectorHeader{}, ErrNoDisk
}

// WriteSector fails with ErrNoDisk.
func (d *DummyDrive) WriteSector(sector byte, buf []byte) (SectorHeader, error) {
	return SectorHeader{}, ErrNoDisk
}

// WriteTrackData fails with ErrNoDisk.
func (d *DummyDrive) WriteTrackData(buf []byte) error {
	return ErrNoDisk
}

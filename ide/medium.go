// Package ide emulates an ATA-2 hard-disk device sitting on a two-device
// IDE bus. Like the floppy controllers, the device derives its handshake
// bits from elapsed virtual time instead of running its own goroutine or
// timer callbacks.
package ide

import (
	"errors"
	"fmt"
)

// SectorSize is the ATA logical sector size in bytes.
const SectorSize = 512

var (
	// ErrOutOfRange reports an access past the end of the medium.
	ErrOutOfRange = errors.New("ide: sector out of range")

	// ErrWriteProtected reports a write to read-only media.
	ErrWriteProtected = errors.New("ide: medium is write protected")
)

// A BlockMedium is the storage behind an IDE device. Addresses are logical
// block addresses, 512 bytes per sector.
type BlockMedium interface {
	NumSectors() uint64
	IsWriteProtected() bool
	ReadSector(lba uint64, buf []byte) error
	WriteSector(lba uint64, buf []byte) error
}

// A MemMedium is a BlockMedium held entirely in memory.
type MemMedium struct {
	data           []byte
	writeProtected bool
}

// NewMemMedium wraps a raw disk image. The image length must be a whole
// number of sectors.
func NewMemMedium(data []byte) (*MemMedium, error) {
	if len(data)%SectorSize != 0 {
		return nil, fmt.Errorf(
			"ide: image is %d bytes, not a multiple of %d",
			len(data), SectorSize)
	}

	return &MemMedium{data: data}, nil
}

// NewBlankMedium creates an all-zero medium of the given size.
func NewBlankMedium(numSectors uint64) *MemMedium {
	return &MemMedium{data: make([]byte, numSectors*SectorSize)}
}

// SetWriteProtected sets the write-protect flag.
func (m *MemMedium) SetWriteProtected(protected bool) {
	m.writeProtected = protected
}

// NumSectors returns the medium capacity in sectors.
func (m *MemMedium) NumSectors() uint64 {
	return uint64(len(m.data)) / SectorSize
}

// IsWriteProtected reports whether writes are refused.
func (m *MemMedium) IsWriteProtected() bool {
	return m.writeProtected
}

func (m *MemMedium) offset(lba uint64) (uint64, error) {
	if lba >= m.NumSectors() {
		return 0, ErrOutOfRange
	}
	return lba * SectorSize, nil
}

// ReadSector copies sector lba into buf.
func (m *MemMedium) ReadSector(lba uint64, buf []byte) error {
	off, err := m.offset(lba)
	if err != nil {
		return err
	}

	copy(buf, m.data[off:off+SectorSize])

	return nil
}

// WriteSector writes buf to sector lba.
func (m *MemMedium) WriteSector(lba uint64, buf []byte) error {
	if m.writeProtected {
		return ErrWriteProtected
	}

	off, err := m.offset(lba)
	if err != nil {
		return err
	}

	copy(m.data[off:off+SectorSize], buf[:SectorSize])

	return nil
}

// Image exposes the raw image data.
func (m *MemMedium) Image() []byte {
	return m.data
}

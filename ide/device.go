package ide

import (
	"fmt"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/emu/state"
)

// Reg indexes the ATA task-file registers.
type Reg int

// Task-file registers. RegError reads the error register and writes the
// feature register; RegStatus reads status and writes the command register.
const (
	RegData Reg = iota
	RegError
	RegSectorCount
	RegSectorNumber
	RegCylinderLow
	RegCylinderHigh
	RegDeviceHead
	RegStatus

	RegFeature = RegError
	RegCommand = RegStatus
)

// Status register bits.
const (
	StatusERR  = 0x01
	StatusDRQ  = 0x08
	StatusDSC  = 0x10
	StatusDF   = 0x20
	StatusDRDY = 0x40
	StatusBSY  = 0x80
)

// Error register bits.
const (
	ErrorAbort = 0x04
	ErrorIDNF  = 0x10
	ErrorUNC   = 0x40
)

// CHS geometry reported for media addressed without LBA.
const (
	numHeads          = 16
	sectorsPerTrackHS = 32
)

// sectorAccessUS is how long the device stays busy per sector access, in
// microseconds. The value approximates a fast spinning disk and gives the
// guest a realistic BSY window to poll through.
const sectorAccessUS = 100

// transferMode says which way the data register currently streams.
type transferMode int

const (
	transferNone transferMode = iota
	transferRead
	transferWrite

	numTransferModes
)

var transferModeNames = map[transferMode]string{
	transferNone:  "NONE",
	transferRead:  "READ",
	transferWrite: "WRITE",
}

func transferModeFromName(name string) (transferMode, bool) {
	for m, n := range transferModeNames {
		if n == name {
			return m, true
		}
	}
	return transferNone, false
}

// A Device is one ATA device. BSY and DRQ are not stored: they are derived
// from the busy clock and the transfer state on every status query, so
// peeking the status register equals reading it.
type Device struct {
	name   string
	medium BlockMedium

	busyClock emu.Clock // 1 MHz, origin = start of last command
	busyTicks uint64    // busy window length in clock ticks

	errorReg     byte
	sectorCount  byte
	sectorNumber byte
	cylinderLow  byte
	cylinderHigh byte
	deviceHead   byte
	statusError  bool // ERR bit

	mode        transferMode
	buffer      [SectorSize]byte
	bufOffset   int
	sectorsLeft int
	lba         uint64
}

// NewDevice creates a device over a medium. A nil medium models an absent
// device: every command aborts.
func NewDevice(name string, medium BlockMedium, now emu.VTime) *Device {
	d := &Device{
		name:      name,
		medium:    medium,
		busyClock: emu.NewClock(emu.MHz, now),
	}

	d.Reset(now)

	return d
}

// Name identifies the device in logs and the inspector.
func (d *Device) Name() string {
	return d.name
}

// Reset puts the device in its post-power-on state.
func (d *Device) Reset(now emu.VTime) {
	d.errorReg = 0x01 // diagnostic passed
	d.sectorCount = 0x01
	d.sectorNumber = 0x01
	d.cylinderLow = 0
	d.cylinderHigh = 0
	d.deviceHead = 0
	d.statusError = false
	d.mode = transferNone
	d.bufOffset = 0
	d.sectorsLeft = 0
	d.lba = 0
	d.busyClock.Advance(now)
	d.busyTicks = 0
}

func (d *Device) busy(now emu.VTime) bool {
	return d.busyClock.TicksTill(now) < d.busyTicks
}

// statusValue derives the status register at now. Both the read and the
// peek path use it; neither mutates.
func (d *Device) statusValue(now emu.VTime) byte {
	if d.medium == nil {
		return 0
	}
	if d.busy(now) {
		return StatusBSY
	}

	v := byte(StatusDRDY | StatusDSC)
	if d.mode != transferNone {
		v |= StatusDRQ
	}
	if d.statusError {
		v |= StatusERR
	}

	return v
}

// ReadReg reads a task-file register.
func (d *Device) ReadReg(reg Reg, now emu.VTime) byte {
	switch reg {
	case RegError:
		return d.errorReg
	case RegSectorCount:
		return d.sectorCount
	case RegSectorNumber:
		return d.sectorNumber
	case RegCylinderLow:
		return d.cylinderLow
	case RegCylinderHigh:
		return d.cylinderHigh
	case RegDeviceHead:
		return d.deviceHead
	case RegStatus:
		return d.statusValue(now)
	default:
		return 0
	}
}

// PeekReg returns what ReadReg would return without mutating anything. The
// task-file registers are side-effect free to read, so the two coincide.
func (d *Device) PeekReg(reg Reg, now emu.VTime) byte {
	return d.ReadReg(reg, now)
}

// PeekRegister adapts PeekReg to the index-based interface the inspection
// server uses.
func (d *Device) PeekRegister(index int, now emu.VTime) byte {
	if index < int(RegData) || index > int(RegStatus) {
		return 0xFF
	}
	return d.PeekReg(Reg(index), now)
}

// WriteReg writes a task-file register.
func (d *Device) WriteReg(reg Reg, value byte, now emu.VTime) {
	switch reg {
	case RegFeature:
		// Stored nowhere: no feature this model implements consumes it.
	case RegSectorCount:
		d.sectorCount = value
	case RegSectorNumber:
		d.sectorNumber = value
	case RegCylinderLow:
		d.cylinderLow = value
	case RegCylinderHigh:
		d.cylinderHigh = value
	case RegDeviceHead:
		d.deviceHead = value
	case RegCommand:
		d.executeCommand(value, now)
	}
}

// ReadData reads one 16-bit word from the data register, little endian.
func (d *Device) ReadData(now emu.VTime) uint16 {
	if d.mode != transferRead || d.busy(now) {
		return 0xFFFF
	}

	v := uint16(d.buffer[d.bufOffset]) |
		uint16(d.buffer[d.bufOffset+1])<<8
	d.bufOffset += 2

	if d.bufOffset == SectorSize {
		d.readBlockDone(now)
	}

	return v
}

// PeekData returns what ReadData would return without advancing the
// transfer.
func (d *Device) PeekData(now emu.VTime) uint16 {
	if d.mode != transferRead || d.busy(now) {
		return 0xFFFF
	}

	return uint16(d.buffer[d.bufOffset]) |
		uint16(d.buffer[d.bufOffset+1])<<8
}

// WriteData writes one 16-bit word to the data register.
func (d *Device) WriteData(value uint16, now emu.VTime) {
	if d.mode != transferWrite || d.busy(now) {
		return
	}

	d.buffer[d.bufOffset] = byte(value)
	d.buffer[d.bufOffset+1] = byte(value >> 8)
	d.bufOffset += 2

	if d.bufOffset == SectorSize {
		d.writeBlockDone(now)
	}
}

func (d *Device) executeCommand(cmd byte, now emu.VTime) {
	if d.medium == nil {
		return
	}

	d.statusError = false
	d.errorReg = 0
	d.mode = transferNone
	d.bufOffset = 0
	d.startBusy(now, sectorAccessUS)

	switch cmd {
	case 0x20, 0x21: // read sectors
		d.startReadWrite(transferRead, now)
	case 0x30: // write sectors
		d.startReadWrite(transferWrite, now)
	case 0xEC: // identify device
		d.fillIdentifyBlock()
		d.mode = transferRead
		d.sectorsLeft = 1
	case 0x91: // initialize device parameters
	case 0xE7: // flush cache
	default:
		d.setError(ErrorAbort)
	}
}

func (d *Device) startBusy(now emu.VTime, us uint64) {
	d.busyClock.Advance(now)
	d.busyTicks = us
}

func (d *Device) startReadWrite(mode transferMode, now emu.VTime) {
	lba, ok := d.currentLBA()
	if !ok {
		d.setError(ErrorIDNF)
		return
	}
	if mode == transferWrite && d.medium.IsWriteProtected() {
		d.setError(ErrorAbort)
		return
	}

	d.lba = lba
	d.sectorsLeft = int(d.sectorCount)
	if d.sectorsLeft == 0 {
		d.sectorsLeft = 256
	}
	d.mode = mode

	if mode == transferRead {
		d.loadSector()
	}
}

// currentLBA decodes the task-file address. Bit 6 of the device/head
// register selects LBA addressing; otherwise the address is CHS against the
// fixed reported geometry.
func (d *Device) currentLBA() (uint64, bool) {
	var lba uint64
	if d.deviceHead&0x40 != 0 {
		lba = uint64(d.deviceHead&0x0F)<<24 |
			uint64(d.cylinderHigh)<<16 |
			uint64(d.cylinderLow)<<8 |
			uint64(d.sectorNumber)
	} else {
		if d.sectorNumber == 0 {
			return 0, false
		}
		cylinder := uint64(d.cylinderHigh)<<8 | uint64(d.cylinderLow)
		head := uint64(d.deviceHead & 0x0F)
		lba = (cylinder*numHeads+head)*sectorsPerTrackHS +
			uint64(d.sectorNumber) - 1
	}

	if lba >= d.medium.NumSectors() {
		return 0, false
	}
	return lba, true
}

func (d *Device) loadSector() {
	if err := d.medium.ReadSector(d.lba, d.buffer[:]); err != nil {
		d.setError(ErrorUNC)
	}
}

func (d *Device) readBlockDone(now emu.VTime) {
	d.bufOffset = 0
	d.sectorsLeft--
	if d.sectorsLeft == 0 {
		d.mode = transferNone
		return
	}

	d.lba++
	d.startBusy(now, sectorAccessUS)
	d.loadSector()
}

func (d *Device) writeBlockDone(now emu.VTime) {
	if err := d.medium.WriteSector(d.lba, d.buffer[:]); err != nil {
		d.setError(ErrorUNC)
		return
	}

	d.bufOffset = 0
	d.sectorsLeft--
	if d.sectorsLeft == 0 {
		d.mode = transferNone
		return
	}

	d.lba++
	d.startBusy(now, sectorAccessUS)
}

// setError records an error and aborts any transfer in flight.
func (d *Device) setError(bits byte) {
	d.errorReg = bits
	d.statusError = true
	d.mode = transferNone
	d.bufOffset = 0
	d.sectorsLeft = 0
}

// fillIdentifyBlock builds the 512-byte IDENTIFY DEVICE response in the
// transfer buffer.
func (d *Device) fillIdentifyBlock() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}

	putWord := func(word int, v uint16) {
		d.buffer[2*word] = byte(v)
		d.buffer[2*word+1] = byte(v >> 8)
	}

	sectors := d.medium.NumSectors()
	cylinders := sectors / (numHeads * sectorsPerTrackHS)
	if cylinders > 0xFFFF {
		cylinders = 0xFFFF
	}

	putWord(0, 0x0040) // fixed device
	putWord(1, uint16(cylinders))
	putWord(3, numHeads)
	putWord(6, sectorsPerTrackHS)
	putWord(49, 1<<9) // LBA supported
	putWord(60, uint16(sectors))
	putWord(61, uint16(sectors>>16))

	putIdentifyString(d.buffer[:], 10, 20, "0000000000") // serial
	putIdentifyString(d.buffer[:], 23, 8, "1.0")         // firmware
	putIdentifyString(d.buffer[:], 27, 40, "TORII HARDDISK")
}

// putIdentifyString stores an ATA string: space padded, bytes swapped
// within each word.
func putIdentifyString(buf []byte, word, length int, s string) {
	for i := 0; i < length; i++ {
		c := byte(' ')
		if i < len(s) {
			c = s[i]
		}
		buf[2*word+(i^1)] = c
	}
}

// Snapshot dumps the complete device state as a flat record.
func (d *Device) Snapshot() (map[string]any, error) {
	return map[string]any{
		"busyClock": uint64(d.busyClock.Origin()),
		"busyTicks": d.busyTicks,

		"errorReg":     uint64(d.errorReg),
		"sectorCount":  uint64(d.sectorCount),
		"sectorNumber": uint64(d.sectorNumber),
		"cylinderLow":  uint64(d.cylinderLow),
		"cylinderHigh": uint64(d.cylinderHigh),
		"deviceHead":   uint64(d.deviceHead),
		"statusError":  d.statusError,

		"mode":        transferModeNames[d.mode],
		"buffer":      append([]byte(nil), d.buffer[:]...),
		"bufOffset":   d.bufOffset,
		"sectorsLeft": d.sectorsLeft,
		"lba":         d.lba,
	}, nil
}

// Restore loads a record produced by Snapshot.
func (d *Device) Restore(record map[string]any) error {
	r := state.NewReader(record)

	d.busyClock.SetOrigin(emu.VTime(r.Uint64("busyClock")))
	d.busyTicks = r.Uint64("busyTicks")

	d.errorReg = r.Byte("errorReg")
	d.sectorCount = r.Byte("sectorCount")
	d.sectorNumber = r.Byte("sectorNumber")
	d.cylinderLow = r.Byte("cylinderLow")
	d.cylinderHigh = r.Byte("cylinderHigh")
	d.deviceHead = r.Byte("deviceHead")
	d.statusError = r.Bool("statusError")

	modeName := r.String("mode")
	buf := r.Bytes("buffer")
	d.bufOffset = r.Int("bufOffset")
	d.sectorsLeft = r.Int("sectorsLeft")
	d.lba = r.Uint64("lba")

	if err := r.Err(); err != nil {
		return err
	}

	mode, ok := transferModeFromName(modeName)
	if !ok {
		return fmt.Errorf("ide: unknown transfer mode %q", modeName)
	}
	d.mode = mode

	if len(buf) != len(d.buffer) {
		return fmt.Errorf("ide: snapshot buffer is %d bytes, want %d",
			len(buf), len(d.buffer))
	}
	copy(d.buffer[:], buf)

	return nil
}

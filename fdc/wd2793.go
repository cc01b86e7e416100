package fdc

import (
	"fmt"
	"log"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/emu/state"
)

// Status register bits. Several positions are shared between command types:
// bit 1 is INDEX for type I commands and DRQ otherwise, bit 4 is SEEK_ERROR
// or RECORD_NOT_FOUND, bit 5 is HEAD_LOADED or RECORD_TYPE.
const (
	StatusBusy           = 0x01
	StatusIndex          = 0x02
	StatusDRQ            = 0x02
	StatusTrack00        = 0x04
	StatusLostData       = 0x04
	StatusCRCError       = 0x08
	StatusSeekError      = 0x10
	StatusRecordNotFound = 0x10
	StatusHeadLoaded     = 0x20
	StatusRecordType     = 0x20
	StatusWriteProtected = 0x40
	StatusNotReady       = 0x80
)

// Command register bits.
const (
	cmdStepRate    = 0x03
	cmdVerify      = 0x04 // type I
	cmdSettle      = 0x04 // type II/III
	cmdHeadLoad    = 0x08 // type I
	cmdUpdateTrack = 0x10 // step commands
	cmdMulti       = 0x10 // type II
	cmdN2RIRQ      = 0x01 // type IV
	cmdR2NIRQ      = 0x02 // type IV
	cmdIdxIRQ      = 0x04 // type IV
	cmdImmIRQ      = 0x08 // type IV
)

// Sync point tags.
const (
	syncFSM emu.SyncTag = iota
	syncIdxIRQ
)

// Reg indexes the controller's register ports. Index 0 reads the status
// register and writes the command register.
type Reg int

// Register ports.
const (
	RegStatus Reg = iota
	RegTrack
	RegSector
	RegData
)

// RegCommand is the write view of port 0.
const RegCommand = RegStatus

// fsmState is the phase a multi-step command is suspended in while waiting
// for its sync point to fire.
type fsmState int

const (
	fsmNone fsmState = iota
	fsmSeek
	fsmType2WaitLoad
	fsmType2Loaded
	fsmType2Rotated
	fsmType3WaitLoad
	fsmType3Loaded

	numFSMStates
)

// fsmStateNames maps each state to its name in snapshots. The table must
// stay exhaustive; the accompanying test fails when a state is added without
// an entry.
var fsmStateNames = map[fsmState]string{
	fsmNone:          "NONE",
	fsmSeek:          "SEEK",
	fsmType2WaitLoad: "TYPE2_WAIT_LOAD",
	fsmType2Loaded:   "TYPE2_LOADED",
	fsmType2Rotated:  "TYPE2_ROTATED",
	fsmType3WaitLoad: "TYPE3_WAIT_LOAD",
	fsmType3Loaded:   "TYPE3_LOADED",
}

func fsmStateFromName(name string) (fsmState, bool) {
	for s, n := range fsmStateNames {
		if n == name {
			return s, true
		}
	}
	return fsmNone, false
}

// stepDelayMS holds the four selectable step rates, in milliseconds with a
// 1 MHz controller clock.
var stepDelayMS = [4]uint64{6, 12, 20, 30}

// drqDelayTicks is the minimum inter-byte delay during a sector transfer,
// in ticks of the 1 MHz DRQ clock.
const drqDelayTicks = 15

// writeTrackDRQDelayTicks is the delay after the first index pulse before
// the first write-track byte is requested.
const writeTrackDRQDelayTicks = 16

// WD2793 emulates the Western Digital 2793 floppy-disk controller. All
// externally visible signals that depend on elapsed time (DRQ, the status
// byte during a transfer) are reconstructed from stored clock origins at
// query time; the chip's multi-phase commands suspend themselves by
// registering scheduler sync points.
type WD2793 struct {
	name  string
	sched *emu.Scheduler
	drive Drive

	commandStart emu.VTime
	drqTimer     emu.Clock // 1 MHz

	fsm fsmState

	statusReg  byte
	commandReg byte
	sectorReg  byte
	trackReg   byte
	dataReg    byte

	directionIn  bool
	irq          bool
	immediateIRQ bool
	drq          bool
	transferring bool
	formatting   bool

	dataBuffer    [RawTrackSize]byte
	dataCurrent   int
	dataAvailable int
}

// NewWD2793 creates a controller attached to one drive and puts it through
// its power-on reset.
func NewWD2793(
	name string,
	sched *emu.Scheduler,
	drive Drive,
	now emu.VTime,
) *WD2793 {
	w := &WD2793{
		name:         name,
		sched:        sched,
		drive:        drive,
		commandStart: now,
		drqTimer:     emu.NewClock(emu.MHz, now),
	}

	w.Reset(now)

	return w
}

// SchedName identifies the controller in logs and traces.
func (w *WD2793) SchedName() string {
	return w.name
}

// Reset brings the chip to its power-on state, equivalent to pulsing the
// RESET line. Like the real chip, it finishes by executing a Restore
// command.
func (w *WD2793) Reset(now emu.VTime) {
	w.sched.RemoveSyncPoint(w, syncFSM)
	w.sched.RemoveSyncPoint(w, syncIdxIRQ)
	w.fsm = fsmNone

	w.statusReg = 0
	w.trackReg = 0
	w.dataReg = 0
	w.directionIn = true

	w.setDRQ(false, now)
	w.irq = false
	w.immediateIRQ = false

	w.formatting = false
	w.transferring = false

	w.sectorReg = 0x01
	w.SetCommandReg(0x03, now)
}

// ReadReg reads a register port, advancing transfer state when the data
// port is read during an active transfer.
func (w *WD2793) ReadReg(reg Reg, now emu.VTime) byte {
	switch reg {
	case RegStatus:
		return w.StatusReg(now)
	case RegTrack:
		return w.TrackReg(now)
	case RegSector:
		return w.SectorReg(now)
	case RegData:
		return w.DataReg(now)
	default:
		log.Panicf("%s: read of unknown register %d", w.name, reg)
		return 0
	}
}

// PeekReg returns what ReadReg would return at now without mutating any
// state. External inspectors use it to observe the chip without disturbing
// determinism.
func (w *WD2793) PeekReg(reg Reg, now emu.VTime) byte {
	switch reg {
	case RegStatus:
		return w.PeekStatusReg(now)
	case RegTrack:
		return w.PeekTrackReg(now)
	case RegSector:
		return w.PeekSectorReg(now)
	case RegData:
		return w.PeekDataReg(now)
	default:
		log.Panicf("%s: peek of unknown register %d", w.name, reg)
		return 0
	}
}

// PeekRegister adapts PeekReg to the index-based interface the inspection
// server uses. Out-of-range indexes read as 0xFF instead of panicking.
func (w *WD2793) PeekRegister(index int, now emu.VTime) byte {
	if index < int(RegStatus) || index > int(RegData) {
		return 0xFF
	}
	return w.PeekReg(Reg(index), now)
}

// WriteReg writes a register port. A write to port 0 dispatches a command.
func (w *WD2793) WriteReg(reg Reg, value byte, now emu.VTime) {
	switch reg {
	case RegCommand:
		w.SetCommandReg(value, now)
	case RegTrack:
		w.SetTrackReg(value, now)
	case RegSector:
		w.SetSectorReg(value, now)
	case RegData:
		w.SetDataReg(value, now)
	default:
		log.Panicf("%s: write of unknown register %d", w.name, reg)
	}
}

// reconcile applies any lazy transition that is due at now: it folds the
// derived DRQ value back into the stored line and ends a write-track command
// once the second index pulse has passed.
func (w *WD2793) reconcile(now emu.VTime) {
	if w.writeTrackBusy() &&
		w.drive.IndexPulseCount(w.commandStart, now) >= 2 {
		w.endWriteTrackCmd()
	}
	w.drq = w.currentDTRQ(now)
}

// currentDTRQ derives the data-request line from the relationship between
// now and the stored timer origins. It mutates nothing; both the mutating
// and the peek paths compute through it.
func (w *WD2793) currentDTRQ(now emu.VTime) bool {
	if w.sectorTransferBusy() {
		if w.transferring && w.drqTimer.TicksTill(now) >= drqDelayTicks {
			return true
		}
		return w.drq
	}

	if w.writeTrackBusy() {
		switch w.drive.IndexPulseCount(w.commandStart, now) {
		case 0: // no index pulse yet
			return w.drq
		case 1: // first index pulse passed
			if w.drqTimer.TicksTill(now) >= writeTrackDRQDelayTicks {
				return true
			}
			return w.drq
		default: // second index pulse passed, command is over
			return false
		}
	}

	return w.drq
}

func (w *WD2793) sectorTransferBusy() bool {
	return (w.commandReg&0xC0) == 0x80 && w.statusReg&StatusBusy != 0
}

func (w *WD2793) writeTrackBusy() bool {
	return (w.commandReg&0xF0) == 0xF0 && w.statusReg&StatusBusy != 0
}

// DTRQ samples the data-request line at now.
func (w *WD2793) DTRQ(now emu.VTime) bool {
	w.reconcile(now)
	return w.drq
}

// PeekDTRQ returns the value DTRQ would return at now, without mutating.
func (w *WD2793) PeekDTRQ(now emu.VTime) bool {
	return w.currentDTRQ(now)
}

// IRQ samples the interrupt-request line.
func (w *WD2793) IRQ(now emu.VTime) bool {
	return w.irq || w.immediateIRQ
}

// PeekIRQ returns the value IRQ would return.
func (w *WD2793) PeekIRQ(now emu.VTime) bool {
	return w.IRQ(now)
}

func (w *WD2793) setDRQ(drq bool, now emu.VTime) {
	w.drq = drq
	w.drqTimer.Advance(now)
}

// SetCommandReg dispatches a command. Any in-flight command's FSM sync point
// is cancelled first, so a new command always supersedes the previous one.
func (w *WD2793) SetCommandReg(value byte, now emu.VTime) {
	w.sched.RemoveSyncPoint(w, syncFSM)

	w.commandReg = value
	w.irq = false
	w.transferring = false

	switch value & 0xF0 {
	case 0x00, // restore
		0x10, // seek
		0x20, // step
		0x30, // step (update track register)
		0x40, // step-in
		0x50, // step-in (update track register)
		0x60, // step-out
		0x70: // step-out (update track register)
		w.startType1Cmd(now)

	case 0x80, // read sector
		0x90, // read sector (multi)
		0xA0, // write sector
		0xB0: // write sector (multi)
		w.startType2Cmd(now)

	case 0xC0, // read address
		0xE0, // read track
		0xF0: // write track
		w.startType3Cmd(now)

	case 0xD0: // force interrupt
		w.startType4Cmd(now)
	}
}

// currentStatus derives the status byte at now without mutating anything.
// For type I and IV commands bits 1/2/5/6 mirror the drive; otherwise bit 1
// is the derived DRQ. A write-track command whose second index pulse has
// passed reports as already ended.
func (w *WD2793) currentStatus(now emu.VTime) byte {
	v := w.statusReg

	if (w.commandReg&0x80) == 0 || (w.commandReg&0xF0) == 0xD0 {
		v &^= StatusIndex | StatusTrack00 | StatusHeadLoaded | StatusWriteProtected
		if w.drive.IndexPulse(now) {
			v |= StatusIndex
		}
		if w.drive.IsTrack00() {
			v |= StatusTrack00
		}
		if w.drive.HeadLoaded(now) {
			v |= StatusHeadLoaded
		}
		if w.drive.IsWriteProtected() {
			v |= StatusWriteProtected
		}
	} else {
		if w.currentDTRQ(now) {
			v |= StatusDRQ
		} else {
			v &^= StatusDRQ
		}
		if w.writeTrackBusy() &&
			w.drive.IndexPulseCount(w.commandStart, now) >= 2 {
			v &^= StatusBusy | StatusDRQ
		}
	}

	if w.drive.IsDiskInserted() {
		v &^= StatusNotReady
	} else {
		v |= StatusNotReady
	}

	return v
}

// StatusReg reads the status register. Reading it acknowledges the
// interrupt.
func (w *WD2793) StatusReg(now emu.VTime) byte {
	w.reconcile(now)

	v := w.currentStatus(now)
	w.statusReg = v
	w.irq = false

	return v
}

// PeekStatusReg returns what StatusReg would return, without acknowledging
// the interrupt or advancing any transfer state.
func (w *WD2793) PeekStatusReg(now emu.VTime) byte {
	return w.currentStatus(now)
}

// SetTrackReg writes the track register.
func (w *WD2793) SetTrackReg(value byte, now emu.VTime) {
	w.trackReg = value
}

// TrackReg reads the track register.
func (w *WD2793) TrackReg(now emu.VTime) byte {
	return w.trackReg
}

// PeekTrackReg returns the track register without mutating.
func (w *WD2793) PeekTrackReg(now emu.VTime) byte {
	return w.trackReg
}

// SetSectorReg writes the sector register.
func (w *WD2793) SetSectorReg(value byte, now emu.VTime) {
	w.sectorReg = value
}

// SectorReg reads the sector register.
func (w *WD2793) SectorReg(now emu.VTime) byte {
	return w.sectorReg
}

// PeekSectorReg returns the sector register without mutating.
func (w *WD2793) PeekSectorReg(now emu.VTime) byte {
	return w.sectorReg
}

// SetDataReg writes the data register. During a write-sector transfer each
// write accumulates one byte into the buffer; filling the buffer hands the
// sector to the drive. During write-track, accumulation is gated on the
// drive's index pulses.
func (w *WD2793) SetDataReg(value byte, now emu.VTime) {
	w.dataReg = value

	if w.sectorWriteActive() {
		w.writeSectorByte(value, now)
	} else if w.writeTrackBusy() {
		w.writeTrackByte(value, now)
	}
}

func (w *WD2793) writeSectorByte(value byte, now emu.VTime) {
	w.dataBuffer[w.dataCurrent] = value
	w.dataCurrent++
	w.dataAvailable--
	w.setDRQ(false, now)

	if w.dataAvailable != 0 {
		return
	}

	w.transferring = false
	w.dataCurrent = 0

	header, err := w.drive.WriteSector(w.sectorReg, w.dataBuffer[:SectorSize])
	if err != nil {
		// The drive could not take the data (swapped to a protected or
		// differently shaped disk mid-command).
		w.statusReg |= StatusRecordNotFound
		w.endCmd()
		return
	}

	w.dataAvailable = header.Size
	if header.Track != w.trackReg {
		w.statusReg |= StatusRecordNotFound
		w.endCmd()
		return
	}

	if header.Size != SectorSize {
		log.Panicf("%s: drive wrote a %d-byte sector", w.name, header.Size)
	}

	// Multi-sector write ends after the first sector, matching the
	// single-sector path.
	w.endCmd()
}

func (w *WD2793) writeTrackByte(value byte, now emu.VTime) {
	if !w.formatting {
		return
	}
	w.setDRQ(false, now)

	switch w.drive.IndexPulseCount(w.commandStart, now) {
	case 0: // not at the track start yet, byte is lost
	case 1: // between the two index pulses, accumulate
		if w.dataCurrent >= RawTrackSize {
			log.Panicf("%s: raw track overflow", w.name)
		}
		w.dataBuffer[w.dataCurrent] = value
		w.dataCurrent++
	default: // second index pulse passed
		w.endWriteTrackCmd()
	}
}

// DataReg reads the data register. During a read-sector transfer each read
// consumes one buffered byte; exhausting the buffer either ends the command
// or, with the multi flag, moves to the next sector.
func (w *WD2793) DataReg(now emu.VTime) byte {
	if w.sectorReadActive() {
		w.dataReg = w.dataBuffer[w.dataCurrent]
		w.dataCurrent++
		w.dataAvailable--
		w.setDRQ(false, now)

		if w.dataAvailable == 0 {
			w.transferring = false
			if w.commandReg&cmdMulti == 0 {
				w.endCmd()
			} else {
				w.sectorReg++
				w.tryToReadSector()
			}
		}
	}
	return w.dataReg
}

// PeekDataReg returns what DataReg would return at now without advancing
// the buffer cursor.
func (w *WD2793) PeekDataReg(now emu.VTime) byte {
	if w.sectorReadActive() {
		return w.dataBuffer[w.dataCurrent]
	}
	return w.dataReg
}

// sectorReadActive reports whether a read-sector command is mid transfer.
// During the head-load and rotational wait phases the buffer holds nothing
// yet, so data-port accesses must leave it alone.
func (w *WD2793) sectorReadActive() bool {
	return (w.commandReg&0xE0) == 0x80 &&
		w.statusReg&StatusBusy != 0 &&
		w.transferring
}

func (w *WD2793) sectorWriteActive() bool {
	return (w.commandReg&0xE0) == 0xA0 &&
		w.statusReg&StatusBusy != 0 &&
		w.transferring
}

func (w *WD2793) tryToReadSector() {
	header, err := w.drive.ReadSector(w.sectorReg, w.dataBuffer[:SectorSize])
	if err != nil {
		w.drq = false
		w.statusReg |= StatusRecordNotFound
		w.endCmd()
		return
	}

	if header.Track != w.trackReg {
		w.statusReg |= StatusRecordNotFound
		w.endCmd()
		return
	}

	if header.Size != SectorSize {
		log.Panicf("%s: drive read a %d-byte sector", w.name, header.Size)
	}

	w.dataCurrent = 0
	w.dataAvailable = header.Size
	w.drq = false
	w.transferring = true
}

func (w *WD2793) schedule(s fsmState, t emu.VTime) {
	if w.sched.PendingSyncPoint(w, syncFSM) {
		log.Panicf("%s: FSM sync point already pending", w.name)
	}
	w.fsm = s
	w.sched.SetSyncPoint(w, syncFSM, t)
}

// ExecuteUntil resumes a suspended command phase. The command register is
// re-checked because a different command may have been dispatched between
// registration and firing.
func (w *WD2793) ExecuteUntil(t emu.VTime, tag emu.SyncTag) {
	if tag == syncIdxIRQ {
		w.irq = true
		return
	}

	if tag != syncFSM {
		log.Panicf("%s: unknown sync tag %d", w.name, tag)
	}

	s := w.fsm
	w.fsm = fsmNone
	switch s {
	case fsmSeek:
		if (w.commandReg & 0x80) == 0x00 { // type I
			w.seekNext(t)
		}
	case fsmType2WaitLoad:
		if (w.commandReg & 0xC0) == 0x80 { // type II
			w.type2WaitLoad(t)
		}
	case fsmType2Loaded:
		if (w.commandReg & 0xC0) == 0x80 { // type II
			w.type2Loaded(t)
		}
	case fsmType2Rotated:
		if (w.commandReg & 0xC0) == 0x80 { // type II
			w.type2Rotated()
		}
	case fsmType3WaitLoad:
		if (w.commandReg&0xC0) == 0xC0 && (w.commandReg&0xF0) != 0xD0 { // type III
			w.type3WaitLoad(t)
		}
	case fsmType3Loaded:
		if (w.commandReg&0xC0) == 0xC0 && (w.commandReg&0xF0) != 0xD0 { // type III
			w.type3Loaded(t)
		}
	default:
		log.Panicf("%s: sync point fired in state %d", w.name, s)
	}
}

func (w *WD2793) startType1Cmd(now emu.VTime) {
	w.statusReg &^= StatusSeekError | StatusCRCError
	w.statusReg |= StatusBusy
	w.setDRQ(false, now)

	w.drive.SetHeadLoaded(w.commandReg&cmdHeadLoad != 0, now)

	switch w.commandReg & 0xF0 {
	case 0x00: // restore
		w.trackReg = 0xFF
		w.dataReg = 0x00
		w.seek(now)

	case 0x10: // seek
		w.seek(now)

	case 0x20, 0x30: // step
		w.step(now)

	case 0x40, 0x50: // step-in
		w.directionIn = true
		w.step(now)

	case 0x60, 0x70: // step-out
		w.directionIn = false
		w.step(now)
	}
}

func (w *WD2793) seek(now emu.VTime) {
	if w.trackReg == w.dataReg {
		w.endType1Cmd()
	} else {
		w.directionIn = w.dataReg > w.trackReg
		w.step(now)
	}
}

func (w *WD2793) step(now emu.VTime) {
	if w.commandReg&cmdUpdateTrack != 0 || (w.commandReg&0xE0) == 0x00 {
		// restore, seek, or an explicit update-track step
		if w.directionIn {
			w.trackReg++
		} else {
			w.trackReg--
		}
	}

	if !w.directionIn && w.drive.IsTrack00() {
		w.trackReg = 0
		w.endType1Cmd()
	} else {
		w.drive.Step(w.directionIn, now)
		delay := emu.KHz.NTicks(stepDelayMS[w.commandReg&cmdStepRate])
		w.schedule(fsmSeek, now.Add(delay))
	}
}

func (w *WD2793) seekNext(now emu.VTime) {
	if (w.commandReg & 0xE0) == 0x00 { // restore or seek
		w.seek(now)
	} else {
		w.endType1Cmd()
	}
}

func (w *WD2793) endType1Cmd() {
	if w.commandReg&cmdVerify != 0 {
		// The verify sequence is not modelled; the command still ends.
	}
	w.endCmd()
}

func (w *WD2793) startType2Cmd(now emu.VTime) {
	w.statusReg &^= StatusLostData | StatusRecordNotFound |
		StatusRecordType | StatusWriteProtected
	w.statusReg |= StatusBusy
	w.setDRQ(false, now)

	if !w.drive.IsDiskInserted() {
		w.endCmd()
		return
	}

	w.drive.SetHeadLoaded(true, now)

	if w.commandReg&cmdSettle != 0 {
		w.schedule(fsmType2WaitLoad, now.Add(emu.KHz.NTicks(30)))
	} else {
		w.type2WaitLoad(now)
	}
}

func (w *WD2793) type2WaitLoad(now emu.VTime) {
	w.schedule(fsmType2Loaded, now.Add(emu.KHz.NTicks(1)))
}

func (w *WD2793) type2Loaded(now emu.VTime) {
	if (w.commandReg&0xE0) == 0xA0 && w.drive.IsWriteProtected() {
		w.statusReg |= StatusWriteProtected
		w.endCmd()
		return
	}

	wait := w.drive.TimeTillSector(w.sectorReg, now)
	w.schedule(fsmType2Rotated, now.Add(wait))
}

func (w *WD2793) type2Rotated() {
	switch w.commandReg & 0xF0 {
	case 0x80, 0x90: // read sector
		w.tryToReadSector()

	case 0xA0, 0xB0: // write sector
		w.dataCurrent = 0
		w.dataAvailable = SectorSize
		w.drq = true
		w.transferring = true
	}
}

func (w *WD2793) startType3Cmd(now emu.VTime) {
	w.statusReg &^= StatusLostData | StatusRecordNotFound | StatusRecordType
	w.statusReg |= StatusBusy
	w.setDRQ(false, now)
	w.commandStart = now // set again when execution starts

	if !w.drive.IsDiskInserted() {
		w.endCmd()
		return
	}

	w.drive.SetHeadLoaded(true, now)

	if w.commandReg&cmdSettle != 0 {
		w.schedule(fsmType3WaitLoad, now.Add(emu.KHz.NTicks(30)))
	} else {
		w.type3WaitLoad(now)
	}
}

func (w *WD2793) type3WaitLoad(now emu.VTime) {
	w.schedule(fsmType3Loaded, now.Add(emu.KHz.NTicks(1)))
}

func (w *WD2793) type3Loaded(now emu.VTime) {
	w.commandStart = now
	switch w.commandReg & 0xF0 {
	case 0xC0:
		w.readAddressCmd()
	case 0xE0:
		w.readTrackCmd()
	case 0xF0:
		w.writeTrackCmd(now)
	}
}

// readAddressCmd is deliberately not implemented beyond ending the command;
// the reference behavior for this path is incomplete.
func (w *WD2793) readAddressCmd() {
	w.endCmd()
}

// readTrackCmd is deliberately not implemented beyond ending the command.
func (w *WD2793) readTrackCmd() {
	w.endCmd()
}

func (w *WD2793) writeTrackCmd(now emu.VTime) {
	if w.drive.IsWriteProtected() {
		w.statusReg |= StatusWriteProtected
		w.endCmd()
		return
	}

	w.formatting = true
	w.dataCurrent = 0
	for i := range w.dataBuffer {
		w.dataBuffer[i] = 0
	}
	w.setDRQ(true, now)
}

func (w *WD2793) endWriteTrackCmd() {
	// A failure here is ignored: write protection was already checked when
	// the command started, so it can only happen when the disk is swapped
	// during the format.
	_ = w.drive.WriteTrackData(w.dataBuffer[:])

	w.dataAvailable = 0
	w.dataCurrent = 0
	w.drq = false
	w.formatting = false
	w.endCmd()
}

// startType4Cmd handles force interrupt, the only command that never sets
// BUSY. The not-ready-to-ready and ready-to-not-ready flag combinations are
// deliberately not implemented.
func (w *WD2793) startType4Cmd(now emu.VTime) {
	flags := w.commandReg & 0x0F

	if flags == 0x00 {
		w.immediateIRQ = false
	}

	w.sched.RemoveSyncPoint(w, syncIdxIRQ)
	if flags&cmdIdxIRQ != 0 && w.drive.IsDiskInserted() {
		wait := w.drive.TimeTillIndexPulse(now)
		w.sched.SetSyncPoint(w, syncIdxIRQ, now.Add(wait))
	}

	if flags&cmdImmIRQ != 0 {
		w.immediateIRQ = true
	}

	w.setDRQ(false, now)
	w.statusReg &^= StatusBusy
}

func (w *WD2793) endCmd() {
	w.irq = true
	w.statusReg &^= StatusBusy
}

// Snapshot dumps the complete controller state, including the pending sync
// point times, as a flat record.
func (w *WD2793) Snapshot() (map[string]any, error) {
	record := map[string]any{
		"commandStart": uint64(w.commandStart),
		"drqTimer":     uint64(w.drqTimer.Origin()),

		"fsmState":   fsmStateNames[w.fsm],
		"statusReg":  uint64(w.statusReg),
		"commandReg": uint64(w.commandReg),
		"sectorReg":  uint64(w.sectorReg),
		"trackReg":   uint64(w.trackReg),
		"dataReg":    uint64(w.dataReg),

		"directionIn":  w.directionIn,
		"irq":          w.irq,
		"immediateIRQ": w.immediateIRQ,
		"drq":          w.drq,
		"transferring": w.transferring,
		"formatting":   w.formatting,

		"dataBuffer":    append([]byte(nil), w.dataBuffer[:]...),
		"dataCurrent":   w.dataCurrent,
		"dataAvailable": w.dataAvailable,
	}

	for name, tag := range map[string]emu.SyncTag{
		"fsmSyncPoint":    syncFSM,
		"idxIRQSyncPoint": syncIdxIRQ,
	} {
		if t, ok := w.sched.SyncPointTime(w, tag); ok {
			record[name] = uint64(t)
		}
	}

	return record, nil
}

// Restore loads a record produced by Snapshot, re-registering any pending
// sync points so an in-flight command resumes where it left off.
func (w *WD2793) Restore(record map[string]any) error {
	r := state.NewReader(record)

	w.commandStart = emu.VTime(r.Uint64("commandStart"))
	w.drqTimer.SetOrigin(emu.VTime(r.Uint64("drqTimer")))

	fsmName := r.String("fsmState")
	w.statusReg = r.Byte("statusReg")
	w.commandReg = r.Byte("commandReg")
	w.sectorReg = r.Byte("sectorReg")
	w.trackReg = r.Byte("trackReg")
	w.dataReg = r.Byte("dataReg")

	w.directionIn = r.Bool("directionIn")
	w.irq = r.Bool("irq")
	w.immediateIRQ = r.Bool("immediateIRQ")
	w.drq = r.Bool("drq")
	w.transferring = r.Bool("transferring")
	w.formatting = r.Bool("formatting")

	buffer := r.Bytes("dataBuffer")
	w.dataCurrent = r.Int("dataCurrent")
	w.dataAvailable = r.Int("dataAvailable")

	if err := r.Err(); err != nil {
		return err
	}

	fsm, ok := fsmStateFromName(fsmName)
	if !ok {
		return fmt.Errorf("fdc: unknown FSM state %q", fsmName)
	}
	w.fsm = fsm

	if len(buffer) != len(w.dataBuffer) {
		return fmt.Errorf("fdc: snapshot buffer is %d bytes, want %d",
			len(buffer), len(w.dataBuffer))
	}
	copy(w.dataBuffer[:], buffer)

	w.sched.RemoveSyncPoint(w, syncFSM)
	w.sched.RemoveSyncPoint(w, syncIdxIRQ)
	if t, ok := r.OptionalUint64("fsmSyncPoint"); ok {
		w.sched.SetSyncPoint(w, syncFSM, emu.VTime(t))
	}
	if t, ok := r.OptionalUint64("idxIRQSyncPoint"); ok {
		w.sched.SetSyncPoint(w, syncIdxIRQ, emu.VTime(t))
	}
	if err := r.Err(); err != nil {
		return err
	}

	return nil
}

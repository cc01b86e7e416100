package fdc

import (
	"fmt"
	"log"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/emu/state"
)

// TCReg indexes the TC8566AF's register ports.
type TCReg int

// Register ports. Ports 0 and 1 exist on the bus but the chip ignores them.
const (
	TCRegControl0 TCReg = 2
	TCRegControl1 TCReg = 3
	TCRegStatus   TCReg = 4
	TCRegData     TCReg = 5
)

// Main status register bits.
const (
	tcStatusD0Busy = 0x01
	tcStatusD1Busy = 0x02
	tcStatusD2Busy = 0x04
	tcStatusD3Busy = 0x08
	tcStatusCB     = 0x10 // controller busy
	tcStatusNDM    = 0x20 // non-DMA execution
	tcStatusDIO    = 0x40 // direction: set = controller to CPU
	tcStatusRQM    = 0x80 // request for master
)

// ST0 bits.
const (
	tcST0SeekEnd        = 0x20
	tcST0EquipmentCheck = 0x10
	tcST0InvalidCommand = 0x80
	tcST0AbnormalEnd    = 0x40
)

// ST1 bits.
const (
	tcST1NotWritable = 0x02
	tcST1NoData      = 0x04
)

// ST3 bits.
const (
	tcST3Track0         = 0x10
	tcST3Ready          = 0x20
	tcST3WriteProtected = 0x40
)

// tcCommand identifies the decoded command.
type tcCommand int

const (
	tcCmdUnknown tcCommand = iota
	tcCmdReadData
	tcCmdWriteData
	tcCmdFormat
	tcCmdSeek
	tcCmdRecalibrate
	tcCmdSenseInterruptStatus
	tcCmdSpecify
	tcCmdSenseDeviceStatus

	numTCCommands
)

var tcCommandNames = map[tcCommand]string{
	tcCmdUnknown:              "UNKNOWN",
	tcCmdReadData:             "READ_DATA",
	tcCmdWriteData:            "WRITE_DATA",
	tcCmdFormat:               "FORMAT",
	tcCmdSeek:                 "SEEK",
	tcCmdRecalibrate:          "RECALIBRATE",
	tcCmdSenseInterruptStatus: "SENSE_INTERRUPT_STATUS",
	tcCmdSpecify:              "SPECIFY",
	tcCmdSenseDeviceStatus:    "SENSE_DEVICE_STATUS",
}

// tcPhase is the chip's high-level phase. Exactly one is active at a time.
type tcPhase int

const (
	tcPhaseIdle tcPhase = iota
	tcPhaseCommand
	tcPhaseDataTransfer
	tcPhaseResult

	numTCPhases
)

var tcPhaseNames = map[tcPhase]string{
	tcPhaseIdle:         "IDLE",
	tcPhaseCommand:      "COMMAND",
	tcPhaseDataTransfer: "DATATRANSFER",
	tcPhaseResult:       "RESULT",
}

func tcNameLookup[T comparable](table map[T]string, name string) (T, bool) {
	for v, n := range table {
		if n == name {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Sync point tags.
const (
	tcSyncSeek emu.SyncTag = iota
	tcSyncExec
)

// tcByteDelayUS is the minimum delay between execution-phase bytes, in
// microseconds (MFM, 250 kbit/s).
const tcByteDelayUS = 32

// tcSectorBufSize fits the largest sector size code the chip accepts.
const tcSectorBufSize = 4096

// TC8566AF emulates the Toshiba TC8566AF floppy-disk controller. It follows
// the same discipline as the WD2793: phases advance through scheduler sync
// points, and the RQM/DIO handshake bits of the main status register are
// derived from elapsed time on every query.
type TC8566AF struct {
	name   string
	sched  *emu.Scheduler
	drives [4]Drive

	delayTime emu.Clock // 1 MHz, origin = last execution-phase byte

	command   tcCommand
	phase     tcPhase
	phaseStep int

	driveSelect byte
	commandCode byte

	status0 byte
	status1 byte
	status2 byte
	status3 byte

	cylinderNumber byte
	headNumber     byte
	sectorNumber   byte
	number         byte // sector size code

	currentTrack       byte
	seekTarget         byte
	seeking            bool
	interruptPending   bool
	sectorsPerCylinder byte
	fillerByte         byte
	specifyData        [2]byte

	sectorSize   int
	sectorOffset int
	sectorBuf    [tcSectorBufSize]byte

	result     []byte
	resultStep int
}

// NewTC8566AF creates a controller with four drive slots. Unpopulated slots
// should carry a DummyDrive.
func NewTC8566AF(
	name string,
	sched *emu.Scheduler,
	drives [4]Drive,
	now emu.VTime,
) *TC8566AF {
	tc := &TC8566AF{
		name:      name,
		sched:     sched,
		drives:    drives,
		delayTime: emu.NewClock(emu.MHz, now),
	}

	tc.Reset(now)

	return tc
}

// SchedName identifies the controller in logs and traces.
func (tc *TC8566AF) SchedName() string {
	return tc.name
}

// Reset brings the chip to its power-on state.
func (tc *TC8566AF) Reset(now emu.VTime) {
	tc.sched.RemoveSyncPoint(tc, tcSyncSeek)
	tc.sched.RemoveSyncPoint(tc, tcSyncExec)

	tc.command = tcCmdUnknown
	tc.phase = tcPhaseIdle
	tc.phaseStep = 0
	tc.driveSelect = 0
	tc.commandCode = 0
	tc.status0 = 0
	tc.status1 = 0
	tc.status2 = 0
	tc.status3 = 0
	tc.cylinderNumber = 0
	tc.headNumber = 0
	tc.sectorNumber = 0
	tc.number = 0
	tc.currentTrack = 0
	tc.seekTarget = 0
	tc.seeking = false
	tc.interruptPending = false
	tc.sectorsPerCylinder = 0
	tc.fillerByte = 0
	tc.specifyData = [2]byte{}
	tc.sectorSize = 0
	tc.sectorOffset = 0
	tc.result = nil
	tc.resultStep = 0
	tc.delayTime.Advance(now)
}

func (tc *TC8566AF) drive() Drive {
	return tc.drives[tc.driveSelect&0x03]
}

// ReadReg reads a register port.
func (tc *TC8566AF) ReadReg(reg TCReg, now emu.VTime) byte {
	switch reg {
	case TCRegStatus:
		return tc.statusValue(now)
	case TCRegData:
		return tc.readDataPort(now)
	default:
		return 0xFF
	}
}

// PeekReg returns what ReadReg would return at now without mutating any
// state.
func (tc *TC8566AF) PeekReg(reg TCReg, now emu.VTime) byte {
	switch reg {
	case TCRegStatus:
		return tc.statusValue(now)
	case TCRegData:
		return tc.peekDataPort(now)
	default:
		return 0xFF
	}
}

// PeekRegister adapts PeekReg to the index-based interface the inspection
// server uses.
func (tc *TC8566AF) PeekRegister(index int, now emu.VTime) byte {
	return tc.PeekReg(TCReg(index), now)
}

// WriteReg writes a register port.
func (tc *TC8566AF) WriteReg(reg TCReg, value byte, now emu.VTime) {
	switch reg {
	case TCRegControl0:
		tc.driveSelect = value & 0x03
	case TCRegControl1:
		// Motor and C1 density bits; no timing consequence modelled.
	case TCRegData:
		tc.writeDataPort(value, now)
	}
}

// statusValue derives the main status register at now. It mutates nothing,
// so the read and peek paths share it.
func (tc *TC8566AF) statusValue(now emu.VTime) byte {
	var v byte

	if tc.seeking {
		v |= tcStatusD0Busy << (tc.driveSelect & 0x03)
	}

	switch tc.phase {
	case tcPhaseIdle:
		v |= tcStatusRQM
	case tcPhaseCommand:
		v |= tcStatusRQM | tcStatusCB
	case tcPhaseDataTransfer:
		v |= tcStatusCB | tcStatusNDM
		if tc.execByteReady(now) {
			v |= tcStatusRQM
			if tc.command == tcCmdReadData {
				v |= tcStatusDIO
			}
		}
	case tcPhaseResult:
		v |= tcStatusRQM | tcStatusDIO | tcStatusCB
	}

	return v
}

// execByteReady derives the per-byte handshake: a byte may be transferred
// once the inter-byte delay has elapsed and the execution sync point (head
// load plus rotational wait) has fired.
func (tc *TC8566AF) execByteReady(now emu.VTime) bool {
	if tc.sched.PendingSyncPoint(tc, tcSyncExec) {
		return false
	}
	return tc.delayTime.TicksTill(now) >= tcByteDelayUS
}

func (tc *TC8566AF) readDataPort(now emu.VTime) byte {
	switch tc.phase {
	case tcPhaseDataTransfer:
		if tc.command == tcCmdReadData {
			return tc.executionPhaseRead(now)
		}
		return 0xFF
	case tcPhaseResult:
		return tc.resultsPhaseRead()
	default:
		return 0xFF
	}
}

func (tc *TC8566AF) peekDataPort(now emu.VTime) byte {
	switch tc.phase {
	case tcPhaseDataTransfer:
		if tc.command == tcCmdReadData {
			return tc.sectorBuf[tc.sectorOffset]
		}
		return 0xFF
	case tcPhaseResult:
		if tc.resultStep < len(tc.result) {
			return tc.result[tc.resultStep]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (tc *TC8566AF) executionPhaseRead(now emu.VTime) byte {
	value := tc.sectorBuf[tc.sectorOffset]
	tc.sectorOffset++
	tc.delayTime.Advance(now)

	if tc.sectorOffset == tc.sectorSize {
		tc.enterResultPhase(tc.readWriteResult())
	}

	return value
}

func (tc *TC8566AF) resultsPhaseRead() byte {
	if tc.resultStep >= len(tc.result) {
		return 0xFF
	}

	value := tc.result[tc.resultStep]
	tc.resultStep++
	if tc.resultStep == len(tc.result) {
		tc.endCommand()
	}

	return value
}

func (tc *TC8566AF) writeDataPort(value byte, now emu.VTime) {
	switch tc.phase {
	case tcPhaseIdle:
		tc.idlePhaseWrite(value, now)
	case tcPhaseCommand:
		tc.commandPhaseWrite(value, now)
	case tcPhaseDataTransfer:
		tc.executionPhaseWrite(value, now)
	}
}

// idlePhaseWrite decodes a command byte. The decode mirrors the chip's
// opcode bit patterns.
func (tc *TC8566AF) idlePhaseWrite(value byte, now emu.VTime) {
	tc.commandCode = value
	tc.command = decodeTCCommand(value)
	tc.phase = tcPhaseCommand
	tc.phaseStep = 0

	switch tc.command {
	case tcCmdSenseInterruptStatus:
		tc.senseInterruptStatus()
	case tcCmdUnknown:
		tc.enterResultPhase([]byte{tcST0InvalidCommand})
	}
}

func decodeTCCommand(value byte) tcCommand {
	switch {
	case value&0x1F == 0x06:
		return tcCmdReadData
	case value&0x3F == 0x05:
		return tcCmdWriteData
	case value&0xBF == 0x0D:
		return tcCmdFormat
	case value == 0x0F:
		return tcCmdSeek
	case value == 0x07:
		return tcCmdRecalibrate
	case value == 0x08:
		return tcCmdSenseInterruptStatus
	case value == 0x03:
		return tcCmdSpecify
	case value == 0x04:
		return tcCmdSenseDeviceStatus
	default:
		return tcCmdUnknown
	}
}

func (tc *TC8566AF) commandPhaseWrite(value byte, now emu.VTime) {
	switch tc.command {
	case tcCmdReadData, tcCmdWriteData:
		tc.readWriteParam(value, now)

	case tcCmdFormat:
		tc.formatParam(value, now)

	case tcCmdSeek:
		switch tc.phaseStep {
		case 0:
			tc.driveSelect = value & 0x03
			tc.phaseStep++
		case 1:
			tc.startSeek(value, now)
		}

	case tcCmdRecalibrate:
		tc.driveSelect = value & 0x03
		tc.startSeek(0, now)

	case tcCmdSpecify:
		tc.specifyData[tc.phaseStep] = value
		tc.phaseStep++
		if tc.phaseStep == 2 {
			tc.endCommand()
		}

	case tcCmdSenseDeviceStatus:
		tc.driveSelect = value & 0x03
		tc.senseDeviceStatus(now)

	default:
		tc.endCommand()
	}
}

func (tc *TC8566AF) readWriteParam(value byte, now emu.VTime) {
	switch tc.phaseStep {
	case 0:
		tc.driveSelect = value & 0x03
		tc.headNumber = (value >> 2) & 0x01
	case 1:
		tc.cylinderNumber = value
	case 2:
		tc.headNumber = value & 0x01
	case 3:
		tc.sectorNumber = value
	case 4:
		tc.number = value
		// Only 512-byte sectors exist on the media the drives model.
		tc.sectorSize = SectorSize
	case 7:
		tc.startReadWrite(now)
		return
	}
	tc.phaseStep++
}

func (tc *TC8566AF) formatParam(value byte, now emu.VTime) {
	switch tc.phaseStep {
	case 0:
		tc.driveSelect = value & 0x03
		tc.status0 = tc.driveSelect
		tc.status1 = 0
		tc.status2 = 0
	case 1:
		tc.number = value
	case 2:
		tc.sectorsPerCylinder = value
		tc.sectorNumber = 1
	case 4:
		tc.fillerByte = value
		tc.sectorOffset = 0
		tc.phaseStep = 0
		tc.phase = tcPhaseDataTransfer
		tc.scheduleExec(now)
		return
	}
	tc.phaseStep++
}

// startSeek begins stepping the selected drive toward the target track.
// Seeking does not hold the controller busy: the CPU is expected to poll
// with SENSE INTERRUPT STATUS.
func (tc *TC8566AF) startSeek(target byte, now emu.VTime) {
	tc.seekTarget = target
	tc.seeking = true
	tc.interruptPending = false
	tc.phase = tcPhaseIdle
	tc.phaseStep = 0

	tc.sched.RemoveSyncPoint(tc, tcSyncSeek)
	tc.sched.SetSyncPoint(tc, tcSyncSeek, now.Add(tc.stepDelay()))
}

// stepDelay returns the per-track step time from the SPECIFY command's SRT
// nibble.
func (tc *TC8566AF) stepDelay() emu.Duration {
	srt := uint64(16 - (tc.specifyData[0] >> 4))
	return emu.KHz.NTicks(srt)
}

func (tc *TC8566AF) seekStep(now emu.VTime) {
	drive := tc.drive()

	switch {
	case tc.seekTarget == 0 && drive.IsTrack00():
		tc.currentTrack = 0
	case tc.currentTrack < tc.seekTarget:
		drive.Step(true, now)
		tc.currentTrack++
	case tc.currentTrack > tc.seekTarget:
		drive.Step(false, now)
		tc.currentTrack--
	}

	if tc.currentTrack == tc.seekTarget ||
		(tc.seekTarget == 0 && drive.IsTrack00()) {
		tc.currentTrack = tc.seekTarget
		tc.seeking = false
		tc.interruptPending = true
		tc.status0 = tcST0SeekEnd | (tc.driveSelect & 0x03)
		if !drive.IsDiskInserted() {
			tc.status0 |= tcST0EquipmentCheck
		}
		return
	}

	tc.sched.SetSyncPoint(tc, tcSyncSeek, now.Add(tc.stepDelay()))
}

func (tc *TC8566AF) senseInterruptStatus() {
	if !tc.interruptPending {
		tc.enterResultPhase([]byte{tcST0InvalidCommand})
		return
	}

	tc.interruptPending = false
	tc.enterResultPhase([]byte{tc.status0, tc.currentTrack})
}

func (tc *TC8566AF) senseDeviceStatus(now emu.VTime) {
	drive := tc.drive()

	tc.status3 = tc.driveSelect & 0x03
	if drive.IsTrack00() {
		tc.status3 |= tcST3Track0
	}
	if drive.IsDiskInserted() {
		tc.status3 |= tcST3Ready
	}
	if drive.IsWriteProtected() {
		tc.status3 |= tcST3WriteProtected
	}

	tc.enterResultPhase([]byte{tc.status3})
}

// startReadWrite finishes the command phase of READ/WRITE DATA: the head is
// loaded and an execution sync point is registered for when the target
// sector rotates under it.
func (tc *TC8566AF) startReadWrite(now emu.VTime) {
	drive := tc.drive()

	tc.status0 = tc.driveSelect & 0x03
	tc.status1 = 0
	tc.status2 = 0

	if !drive.IsDiskInserted() {
		tc.status0 |= tcST0AbnormalEnd | tcST0EquipmentCheck
		tc.enterResultPhase(tc.readWriteResult())
		return
	}

	if tc.command == tcCmdWriteData && drive.IsWriteProtected() {
		tc.status0 |= tcST0AbnormalEnd
		tc.status1 |= tcST1NotWritable
		tc.enterResultPhase(tc.readWriteResult())
		return
	}

	drive.SetHeadLoaded(true, now)
	tc.sectorOffset = 0
	tc.phase = tcPhaseDataTransfer
	tc.scheduleExec(now)
}

// scheduleExec registers the execution sync point at head load plus
// rotational position of the target sector.
func (tc *TC8566AF) scheduleExec(now emu.VTime) {
	drive := tc.drive()

	at := now.Add(tc.headLoadDelay())
	if drive.IsDiskInserted() {
		at = at.Add(drive.TimeTillSector(tc.sectorNumber, at))
	}

	tc.sched.RemoveSyncPoint(tc, tcSyncExec)
	tc.sched.SetSyncPoint(tc, tcSyncExec, at)
}

// headLoadDelay returns the head-load time from the SPECIFY command's HLT
// field.
func (tc *TC8566AF) headLoadDelay() emu.Duration {
	hlt := uint64(tc.specifyData[1] >> 1)
	if hlt == 0 {
		hlt = 1
	}
	return emu.KHz.NTicks(2 * hlt)
}

// ExecuteUntil resumes a suspended phase.
func (tc *TC8566AF) ExecuteUntil(t emu.VTime, tag emu.SyncTag) {
	switch tag {
	case tcSyncSeek:
		tc.seekStep(t)
	case tcSyncExec:
		tc.execReady(t)
	default:
		log.Panicf("%s: unknown sync tag %d", tc.name, tag)
	}
}

// execReady runs when the target sector arrives under the head.
func (tc *TC8566AF) execReady(now emu.VTime) {
	tc.delayTime.SetOrigin(0) // first byte is available immediately

	if tc.command != tcCmdReadData {
		return
	}

	header, err := tc.drive().ReadSector(
		tc.sectorNumber, tc.sectorBuf[:SectorSize])
	if err != nil {
		tc.status0 |= tcST0AbnormalEnd
		tc.status1 |= tcST1NoData
		tc.enterResultPhase(tc.readWriteResult())
		return
	}
	if header.Track != tc.cylinderNumber {
		tc.status0 |= tcST0AbnormalEnd
		tc.status1 |= tcST1NoData
		tc.enterResultPhase(tc.readWriteResult())
		return
	}
}

func (tc *TC8566AF) executionPhaseWrite(value byte, now emu.VTime) {
	switch tc.command {
	case tcCmdWriteData:
		tc.sectorBuf[tc.sectorOffset] = value
		tc.sectorOffset++
		tc.delayTime.Advance(now)

		if tc.sectorOffset == tc.sectorSize {
			tc.flushWrittenSector()
		}

	case tcCmdFormat:
		tc.formatByte(value, now)
	}
}

func (tc *TC8566AF) flushWrittenSector() {
	header, err := tc.drive().WriteSector(
		tc.sectorNumber, tc.sectorBuf[:SectorSize])
	if err != nil || header.Track != tc.cylinderNumber {
		tc.status0 |= tcST0AbnormalEnd
		tc.status1 |= tcST1NoData
	}

	tc.enterResultPhase(tc.readWriteResult())
}

// formatByte consumes the four ID bytes the CPU supplies per sector, then
// fills that sector with the filler byte.
func (tc *TC8566AF) formatByte(value byte, now emu.VTime) {
	switch tc.phaseStep & 3 {
	case 0:
		tc.cylinderNumber = value
	case 2:
		tc.sectorNumber = value
	}
	tc.phaseStep++
	tc.delayTime.Advance(now)

	if tc.phaseStep&3 != 0 {
		return
	}

	for i := 0; i < SectorSize; i++ {
		tc.sectorBuf[i] = tc.fillerByte
	}
	_, err := tc.drive().WriteSector(tc.sectorNumber, tc.sectorBuf[:SectorSize])
	if err != nil {
		tc.status0 |= tcST0AbnormalEnd
		tc.status1 |= tcST1NotWritable
		tc.enterResultPhase(tc.readWriteResult())
		return
	}

	if tc.phaseStep/4 >= int(tc.sectorsPerCylinder) {
		tc.enterResultPhase(tc.readWriteResult())
	}
}

func (tc *TC8566AF) readWriteResult() []byte {
	return []byte{
		tc.status0,
		tc.status1,
		tc.status2,
		tc.cylinderNumber,
		tc.headNumber,
		tc.sectorNumber,
		tc.number,
	}
}

func (tc *TC8566AF) enterResultPhase(result []byte) {
	tc.result = result
	tc.resultStep = 0
	tc.phase = tcPhaseResult
}

func (tc *TC8566AF) endCommand() {
	tc.command = tcCmdUnknown
	tc.phase = tcPhaseIdle
	tc.phaseStep = 0
	tc.result = nil
	tc.resultStep = 0
}

// Snapshot dumps the complete controller state as a flat record.
func (tc *TC8566AF) Snapshot() (map[string]any, error) {
	record := map[string]any{
		"delayTime": uint64(tc.delayTime.Origin()),

		"command":   tcCommandNames[tc.command],
		"phase":     tcPhaseNames[tc.phase],
		"phaseStep": tc.phaseStep,

		"driveSelect": uint64(tc.driveSelect),
		"commandCode": uint64(tc.commandCode),

		"status0": uint64(tc.status0),
		"status1": uint64(tc.status1),
		"status2": uint64(tc.status2),
		"status3": uint64(tc.status3),

		"cylinderNumber": uint64(tc.cylinderNumber),
		"headNumber":     uint64(tc.headNumber),
		"sectorNumber":   uint64(tc.sectorNumber),
		"number":         uint64(tc.number),

		"currentTrack":       uint64(tc.currentTrack),
		"seekTarget":         uint64(tc.seekTarget),
		"seeking":            tc.seeking,
		"interruptPending":   tc.interruptPending,
		"sectorsPerCylinder": uint64(tc.sectorsPerCylinder),
		"fillerByte":         uint64(tc.fillerByte),
		"specifyData0":       uint64(tc.specifyData[0]),
		"specifyData1":       uint64(tc.specifyData[1]),

		"sectorSize":   tc.sectorSize,
		"sectorOffset": tc.sectorOffset,
		"sectorBuf":    append([]byte(nil), tc.sectorBuf[:]...),

		"result":     append([]byte(nil), tc.result...),
		"resultStep": tc.resultStep,
	}

	for name, tag := range map[string]emu.SyncTag{
		"seekSyncPoint": tcSyncSeek,
		"execSyncPoint": tcSyncExec,
	} {
		if t, ok := tc.sched.SyncPointTime(tc, tag); ok {
			record[name] = uint64(t)
		}
	}

	return record, nil
}

// Restore loads a record produced by Snapshot.
func (tc *TC8566AF) Restore(record map[string]any) error {
	r := state.NewReader(record)

	tc.delayTime.SetOrigin(emu.VTime(r.Uint64("delayTime")))

	commandName := r.String("command")
	phaseName := r.String("phase")
	tc.phaseStep = r.Int("phaseStep")

	tc.driveSelect = r.Byte("driveSelect")
	tc.commandCode = r.Byte("commandCode")

	tc.status0 = r.Byte("status0")
	tc.status1 = r.Byte("status1")
	tc.status2 = r.Byte("status2")
	tc.status3 = r.Byte("status3")

	tc.cylinderNumber = r.Byte("cylinderNumber")
	tc.headNumber = r.Byte("headNumber")
	tc.sectorNumber = r.Byte("sectorNumber")
	tc.number = r.Byte("number")

	tc.currentTrack = r.Byte("currentTrack")
	tc.seekTarget = r.Byte("seekTarget")
	tc.seeking = r.Bool("seeking")
	tc.interruptPending = r.Bool("interruptPending")
	tc.sectorsPerCylinder = r.Byte("sectorsPerCylinder")
	tc.fillerByte = r.Byte("fillerByte")
	tc.specifyData[0] = r.Byte("specifyData0")
	tc.specifyData[1] = r.Byte("specifyData1")

	tc.sectorSize = r.Int("sectorSize")
	tc.sectorOffset = r.Int("sectorOffset")
	buf := r.Bytes("sectorBuf")

	tc.result = r.Bytes("result")
	tc.resultStep = r.Int("resultStep")

	if err := r.Err(); err != nil {
		return err
	}

	command, ok := tcNameLookup(tcCommandNames, commandName)
	if !ok {
		return fmt.Errorf("fdc: unknown command %q", commandName)
	}
	tc.command = command

	phase, ok := tcNameLookup(tcPhaseNames, phaseName)
	if !ok {
		return fmt.Errorf("fdc: unknown phase %q", phaseName)
	}
	tc.phase = phase

	if len(buf) != len(tc.sectorBuf) {
		return fmt.Errorf("fdc: snapshot buffer is %d bytes, want %d",
			len(buf), len(tc.sectorBuf))
	}
	copy(tc.sectorBuf[:], buf)

	tc.sched.RemoveSyncPoint(tc, tcSyncSeek)
	tc.sched.RemoveSyncPoint(tc, tcSyncExec)
	if t, ok := r.OptionalUint64("seekSyncPoint"); ok {
		tc.sched.SetSyncPoint(tc, tcSyncSeek, emu.VTime(t))
	}
	if t, ok := r.OptionalUint64("execSyncPoint"); ok {
		tc.sched.SetSyncPoint(tc, tcSyncExec, emu.VTime(t))
	}
	if err := r.Err(); err != nil {
		return err
	}

	return nil
}

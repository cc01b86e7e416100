package fdc

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/emu/state"
)

// sectorPattern fills a sector with a recognizable byte sequence.
func sectorPattern(buf []byte) {
	for i := range buf {
		buf[i] = byte(i % 251)
	}
}

var _ = Describe("WD2793", func() {
	var (
		sched *emu.Scheduler
		drive *ImageDrive
		wd    *WD2793
	)

	advance := func(d emu.Duration) {
		sched.AdvanceTo(sched.Now().Add(d))
	}

	now := func() emu.VTime {
		return sched.Now()
	}

	seekTo := func(track byte) {
		wd.WriteReg(RegData, track, now())
		wd.WriteReg(RegCommand, 0x10, now())
		advance(emu.KHz.NTicks(1000))
	}

	BeforeEach(func() {
		sched = emu.NewScheduler()
		drive = NewImageDrive()
		drive.InsertBlank(80, 9)
		wd = NewWD2793("fdc0", sched, drive, 0)
	})

	It("should finish the power-on restore on track 0", func() {
		advance(emu.KHz.NTicks(1000))

		Expect(wd.PeekTrackReg(now())).To(Equal(byte(0x00)))
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
		Expect(wd.PeekStatusReg(now()) & StatusTrack00).NotTo(BeZero())
	})

	It("should restore from a non-zero track", func() {
		seekTo(5)
		Expect(wd.PeekTrackReg(now())).To(Equal(byte(5)))
		Expect(drive.HeadTrack()).To(Equal(5))

		wd.WriteReg(RegCommand, 0x00, now())
		advance(emu.KHz.NTicks(1000))

		Expect(wd.PeekTrackReg(now())).To(Equal(byte(0x00)))
		Expect(drive.IsTrack00()).To(BeTrue())
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
	})

	It("should step one track per step-rate delay while seeking", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegData, 3, now())
		wd.WriteReg(RegCommand, 0x10, now()) // 6 ms per step

		// The first step happens at dispatch; each further one 6 ms later.
		Expect(drive.HeadTrack()).To(Equal(1))

		advance(emu.KHz.NTicks(7))
		Expect(drive.HeadTrack()).To(Equal(2))
		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())

		advance(emu.KHz.NTicks(6))
		Expect(drive.HeadTrack()).To(Equal(3))
		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())

		advance(emu.KHz.NTicks(6))
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
		Expect(wd.PeekIRQ(now())).To(BeTrue())
	})

	It("should end a seek immediately when already on target", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegData, 0, now())
		wd.WriteReg(RegCommand, 0x10, now())

		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
		Expect(sched.PendingSyncPoint(wd, syncFSM)).To(BeFalse())
	})

	Describe("read sector", func() {
		var want [SectorSize]byte

		BeforeEach(func() {
			advance(emu.KHz.NTicks(1000))
			seekTo(2)

			sectorPattern(want[:])
			_, err := drive.WriteSector(1, want[:])
			Expect(err).NotTo(HaveOccurred())

			wd.WriteReg(RegSector, 1, now())
			wd.WriteReg(RegCommand, 0x80, now())

			// Head load, then rotational wait for the target sector.
			advance(emu.KHz.NTicks(1))
			advance(drive.TimeTillSector(1, now()))
			advance(1)
		})

		It("should serve all 512 bytes in order and then end", func() {
			var got [SectorSize]byte
			for i := 0; i < SectorSize; i++ {
				Expect(wd.PeekDTRQ(now())).To(BeTrue())
				got[i] = wd.ReadReg(RegData, now())
				advance(emu.MHz.NTicks(drqDelayTicks))
			}

			Expect(bytes.Equal(got[:], want[:])).To(BeTrue())
			Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
			Expect(wd.PeekIRQ(now())).To(BeTrue())
			Expect(wd.PeekDTRQ(now())).To(BeFalse())
		})

		It("should pace DRQ by the inter-byte delay", func() {
			wd.ReadReg(RegData, now())

			Expect(wd.PeekDTRQ(now())).To(BeFalse())
			advance(emu.MHz.NTicks(drqDelayTicks) - 1)
			Expect(wd.PeekDTRQ(now())).To(BeFalse())
			advance(1)
			Expect(wd.PeekDTRQ(now())).To(BeTrue())
		})

		It("should not mutate through peeks", func() {
			before, _ := wd.Snapshot()

			v1 := wd.PeekReg(RegData, now())
			v2 := wd.PeekReg(RegData, now())
			s1 := wd.PeekReg(RegStatus, now())
			s2 := wd.PeekReg(RegStatus, now())
			wd.PeekDTRQ(now())
			wd.PeekIRQ(now())

			after, _ := wd.Snapshot()

			Expect(v2).To(Equal(v1))
			Expect(s2).To(Equal(s1))
			Expect(after).To(Equal(before))
		})

		It("should make peek and read agree at the same instant", func() {
			peeked := wd.PeekReg(RegData, now())
			read := wd.ReadReg(RegData, now())
			Expect(read).To(Equal(peeked))

			peekedStatus := wd.PeekReg(RegStatus, now())
			readStatus := wd.ReadReg(RegStatus, now())
			Expect(readStatus).To(Equal(peekedStatus))
		})

		It("should keep a snapshot isolated from later transfers", func() {
			record, err := wd.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(record["dataBuffer"].([]byte)[:SectorSize]).
				To(Equal(want[:]))

			// Abort the read and overwrite the transfer buffer with a
			// write-sector command.
			wd.WriteReg(RegCommand, 0xD0, now())
			wd.WriteReg(RegSector, 2, now())
			wd.WriteReg(RegCommand, 0xA0, now())
			advance(emu.KHz.NTicks(1))
			advance(drive.TimeTillSector(2, now()) + 1)
			for i := 0; i < SectorSize; i++ {
				wd.WriteReg(RegData, 0xEE, now())
				advance(emu.MHz.NTicks(drqDelayTicks))
			}

			Expect(record["dataBuffer"].([]byte)[:SectorSize]).
				To(Equal(want[:]))
		})

		It("should resume identically after a snapshot round trip", func() {
			for i := 0; i < 100; i++ {
				wd.ReadReg(RegData, now())
				advance(emu.MHz.NTicks(drqDelayTicks))
			}

			record, err := wd.Snapshot()
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			codec := state.NewJSONCodec()
			Expect(codec.Encode(record, &buf)).To(Succeed())
			decoded, err := codec.Decode(&buf)
			Expect(err).NotTo(HaveOccurred())

			wd2 := NewWD2793("fdc0b", sched, drive, now())
			advance(emu.KHz.NTicks(1000))
			Expect(wd2.Restore(decoded)).To(Succeed())

			for i := 0; i < 50; i++ {
				Expect(wd2.PeekReg(RegStatus, now())).
					To(Equal(wd.PeekReg(RegStatus, now())))
				Expect(wd2.PeekDTRQ(now())).To(Equal(wd.PeekDTRQ(now())))

				b1 := wd.ReadReg(RegData, now())
				b2 := wd2.ReadReg(RegData, now())
				Expect(b2).To(Equal(b1))

				advance(emu.MHz.NTicks(drqDelayTicks))
			}
		})
	})

	It("should ignore data-port reads before the transfer starts", func() {
		advance(emu.KHz.NTicks(1000))

		var want [SectorSize]byte
		sectorPattern(want[:])
		_, err := drive.WriteSector(1, want[:])
		Expect(err).NotTo(HaveOccurred())

		wd.WriteReg(RegSector, 1, now())
		wd.WriteReg(RegCommand, 0x80, now())

		// The command is still in its head-load and rotational wait; the
		// buffer holds nothing, so polling the data port must leave the
		// command undisturbed no matter how often it happens.
		for i := 0; i < RawTrackSize+1; i++ {
			wd.ReadReg(RegData, now())
		}

		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())
		Expect(wd.PeekDTRQ(now())).To(BeFalse())

		advance(emu.KHz.NTicks(1))
		advance(drive.TimeTillSector(1, now()))
		advance(1)

		var got [SectorSize]byte
		for i := 0; i < SectorSize; i++ {
			got[i] = wd.ReadReg(RegData, now())
			advance(emu.MHz.NTicks(drqDelayTicks))
		}

		Expect(bytes.Equal(got[:], want[:])).To(BeTrue())
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
	})

	It("should ignore data-port writes before the transfer starts", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegSector, 2, now())
		wd.WriteReg(RegCommand, 0xA0, now())

		for i := 0; i < RawTrackSize+1; i++ {
			wd.WriteReg(RegData, 0x77, now())
		}

		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())
		Expect(wd.PeekDTRQ(now())).To(BeFalse())

		advance(emu.KHz.NTicks(1))
		advance(drive.TimeTillSector(2, now()) + 1)

		var want [SectorSize]byte
		sectorPattern(want[:])
		for i := 0; i < SectorSize; i++ {
			Expect(wd.PeekDTRQ(now())).To(BeTrue())
			wd.WriteReg(RegData, want[i], now())
			advance(emu.MHz.NTicks(drqDelayTicks))
		}

		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())

		var got [SectorSize]byte
		_, err := drive.ReadSector(2, got[:])
		Expect(err).NotTo(HaveOccurred())
		Expect(bytes.Equal(got[:], want[:])).To(BeTrue())
	})

	It("should advance to the next sector with the multi flag", func() {
		advance(emu.KHz.NTicks(1000))

		var s1, s2 [SectorSize]byte
		sectorPattern(s1[:])
		for i := range s2 {
			s2[i] = byte(255 - i%251)
		}
		_, err := drive.WriteSector(1, s1[:])
		Expect(err).NotTo(HaveOccurred())
		_, err = drive.WriteSector(2, s2[:])
		Expect(err).NotTo(HaveOccurred())

		wd.WriteReg(RegSector, 1, now())
		wd.WriteReg(RegCommand, 0x90, now())

		advance(emu.KHz.NTicks(1))
		advance(drive.TimeTillSector(1, now()))
		advance(1)

		var got [SectorSize]byte
		for i := 0; i < SectorSize; i++ {
			got[i] = wd.ReadReg(RegData, now())
			advance(emu.MHz.NTicks(drqDelayTicks))
		}
		Expect(bytes.Equal(got[:], s1[:])).To(BeTrue())

		// The command moved on to the next sector instead of ending.
		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())
		Expect(wd.PeekSectorReg(now())).To(Equal(byte(2)))

		for i := 0; i < SectorSize; i++ {
			got[i] = wd.ReadReg(RegData, now())
			advance(emu.MHz.NTicks(drqDelayTicks))
		}
		Expect(bytes.Equal(got[:], s2[:])).To(BeTrue())
		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())
		Expect(wd.PeekSectorReg(now())).To(Equal(byte(3)))

		wd.WriteReg(RegCommand, 0xD0, now())
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
	})

	It("should report record-not-found when the sector does not exist", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegSector, 200, now())
		wd.WriteReg(RegCommand, 0x80, now())

		advance(emu.KHz.NTicks(1))
		advance(drive.TimeTillSector(200, now()) + 1)

		status := wd.PeekStatusReg(now())
		Expect(status & StatusRecordNotFound).NotTo(BeZero())
		Expect(status & StatusBusy).To(BeZero())
		Expect(wd.PeekIRQ(now())).To(BeTrue())
	})

	It("should refuse to write a protected disk", func() {
		advance(emu.KHz.NTicks(1000))
		drive.SetWriteProtected(true)

		wd.WriteReg(RegSector, 1, now())
		wd.WriteReg(RegCommand, 0xA0, now())
		advance(emu.KHz.NTicks(2))

		status := wd.PeekStatusReg(now())
		Expect(status & StatusWriteProtected).NotTo(BeZero())
		Expect(status & StatusBusy).To(BeZero())
	})

	It("should write a full sector through the data register", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegSector, 3, now())
		wd.WriteReg(RegCommand, 0xA0, now())

		advance(emu.KHz.NTicks(1))
		advance(drive.TimeTillSector(3, now()) + 1)

		var want [SectorSize]byte
		sectorPattern(want[:])
		for i := 0; i < SectorSize; i++ {
			Expect(wd.PeekDTRQ(now())).To(BeTrue())
			wd.WriteReg(RegData, want[i], now())
			advance(emu.MHz.NTicks(drqDelayTicks))
		}

		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())

		var got [SectorSize]byte
		_, err := drive.ReadSector(3, got[:])
		Expect(err).NotTo(HaveOccurred())
		Expect(bytes.Equal(got[:], want[:])).To(BeTrue())
	})

	It("should cancel a mid-step seek on force interrupt", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegData, 60, now())
		wd.WriteReg(RegCommand, 0x13, now()) // 30 ms per step
		advance(emu.KHz.NTicks(45))
		Expect(wd.PeekStatusReg(now()) & StatusBusy).NotTo(BeZero())

		wd.WriteReg(RegCommand, 0xD8, now()) // force interrupt, immediate

		Expect(sched.PendingSyncPoint(wd, syncFSM)).To(BeFalse())
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
		Expect(wd.PeekIRQ(now())).To(BeTrue())

		wd.WriteReg(RegCommand, 0xD0, now())
		Expect(wd.PeekIRQ(now())).To(BeFalse())
	})

	It("should raise the interrupt on the next index pulse", func() {
		advance(emu.KHz.NTicks(1000))

		wd.WriteReg(RegCommand, 0xD4, now())
		Expect(sched.PendingSyncPoint(wd, syncIdxIRQ)).To(BeTrue())

		wait := drive.TimeTillIndexPulse(now())
		advance(wait - 1)
		Expect(wd.PeekIRQ(now())).To(BeFalse())

		advance(1)
		Expect(wd.PeekIRQ(now())).To(BeTrue())
	})

	It("should end read-address and read-track as not implemented", func() {
		advance(emu.KHz.NTicks(1000))

		for _, cmd := range []byte{0xC0, 0xE0} {
			wd.WriteReg(RegCommand, cmd, now())
			advance(emu.KHz.NTicks(2))

			Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
			Expect(wd.PeekIRQ(now())).To(BeTrue())
		}
	})

	Describe("write track", func() {
		BeforeEach(func() {
			advance(emu.KHz.NTicks(1000))
			seekTo(4)

			var data [SectorSize]byte
			sectorPattern(data[:])
			_, err := drive.WriteSector(2, data[:])
			Expect(err).NotTo(HaveOccurred())

			wd.WriteReg(RegCommand, 0xF0, now())
			advance(emu.KHz.NTicks(2))
		})

		It("should request data only after the first index pulse", func() {
			Expect(wd.PeekDTRQ(now())).To(BeTrue())

			// Bytes written before the first index pulse are lost.
			wd.WriteReg(RegData, 0x4E, now())
			Expect(wd.dataCurrent).To(BeZero())

			advance(drive.TimeTillIndexPulse(now()))
			advance(emu.MHz.NTicks(writeTrackDRQDelayTicks))

			Expect(wd.PeekDTRQ(now())).To(BeTrue())
			wd.WriteReg(RegData, 0x4E, now())
			Expect(wd.dataCurrent).To(Equal(1))
		})

		It("should end after the second index pulse and clear the track", func() {
			advance(drive.TimeTillIndexPulse(now()))
			advance(drive.TimeTillIndexPulse(now()) + 1)

			Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())

			wd.ReadReg(RegStatus, now())
			Expect(wd.PeekDTRQ(now())).To(BeFalse())

			var got [SectorSize]byte
			_, err := drive.ReadSector(2, got[:])
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([SectorSize]byte{}))
		})
	})

	Describe("with a misbehaving drive", func() {
		var (
			mockCtrl *gomock.Controller
			mock     *MockDrive
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mock = NewMockDrive(mockCtrl)

			mock.EXPECT().IsDiskInserted().Return(true).AnyTimes()
			mock.EXPECT().IsWriteProtected().Return(false).AnyTimes()
			mock.EXPECT().IsTrack00().Return(true).AnyTimes()
			mock.EXPECT().HeadLoaded(gomock.Any()).Return(true).AnyTimes()
			mock.EXPECT().SetHeadLoaded(gomock.Any(), gomock.Any()).AnyTimes()
			mock.EXPECT().IndexPulse(gomock.Any()).Return(false).AnyTimes()
			mock.EXPECT().
				IndexPulseCount(gomock.Any(), gomock.Any()).
				Return(0).AnyTimes()
			mock.EXPECT().
				TimeTillSector(gomock.Any(), gomock.Any()).
				Return(emu.Duration(0)).AnyTimes()

			wd = NewWD2793("fdc0", sched, mock, 0)
			advance(emu.KHz.NTicks(10))
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should translate a track mismatch on write into record-not-found",
			func() {
				mock.EXPECT().
					WriteSector(byte(1), gomock.Any()).
					Return(SectorHeader{
						Track:  0x42,
						Sector: 1,
						Size:   SectorSize,
					}, nil)

				wd.WriteReg(RegSector, 1, now())
				wd.WriteReg(RegCommand, 0xA0, now())
				advance(emu.KHz.NTicks(1))
				advance(1)

				Expect(wd.PeekDTRQ(now())).To(BeTrue())
				for i := 0; i < SectorSize; i++ {
					wd.WriteReg(RegData, 0xAA, now())
					advance(emu.MHz.NTicks(drqDelayTicks))
				}

				status := wd.PeekStatusReg(now())
				Expect(status & StatusRecordNotFound).NotTo(BeZero())
				Expect(status & StatusBusy).To(BeZero())
				Expect(wd.PeekIRQ(now())).To(BeTrue())
			})

		It("should translate a track mismatch on read into record-not-found",
			func() {
				mock.EXPECT().
					ReadSector(byte(1), gomock.Any()).
					Return(SectorHeader{
						Track:  0x42,
						Sector: 1,
						Size:   SectorSize,
					}, nil)

				wd.WriteReg(RegSector, 1, now())
				wd.WriteReg(RegCommand, 0x80, now())
				advance(emu.KHz.NTicks(1))
				advance(1)

				status := wd.PeekStatusReg(now())
				Expect(status & StatusRecordNotFound).NotTo(BeZero())
				Expect(status & StatusBusy).To(BeZero())
			})
	})

	It("should report not ready without a disk", func() {
		advance(emu.KHz.NTicks(1000))
		drive.Eject()

		Expect(wd.PeekStatusReg(now()) & StatusNotReady).NotTo(BeZero())

		wd.WriteReg(RegCommand, 0x80, now())
		Expect(wd.PeekStatusReg(now()) & StatusBusy).To(BeZero())
	})
})

var _ = Describe("FSM state names", func() {
	It("should name every state exactly once", func() {
		Expect(fsmStateNames).To(HaveLen(int(numFSMStates)))

		seen := map[string]bool{}
		for s := fsmState(0); s < numFSMStates; s++ {
			name, ok := fsmStateNames[s]
			Expect(ok).To(BeTrue())
			Expect(name).NotTo(BeEmpty())
			Expect(seen[name]).To(BeFalse())
			seen[name] = true

			back, ok := fsmStateFromName(name)
			Expect(ok).To(BeTrue())
			Expect(back).To(Equal(s))
		}
	})

	It("should reject unknown names", func() {
		_, ok := fsmStateFromName("NO_SUCH_STATE")
		Expect(ok).To(BeFalse())
	})
})

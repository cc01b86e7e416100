package cmd

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/fdc"
	"github.com/emusim/torii/ide"
	"github.com/emusim/torii/inspect"
	"github.com/emusim/torii/recording"
	"github.com/emusim/torii/video"
)

// Demo disk geometry: 80 tracks of 9 sectors, 360 KB per side.
const (
	demoTracks  = 80
	demoSectors = 9
)

var (
	runSeconds   float64
	diskPath     string
	tracePath    string
	enableTrace  bool
	inspectFlag  bool
	inspectPort  int
	openBrowser  bool
	holdSeconds  int
	verboseFlag  bool
	hdSectors    uint64
	stepMillis   uint64
	demoScript   bool
	reportFrames bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scripted machine for a stretch of virtual time.",
	Long: `Run builds a machine from the timing core's devices, drives its ` +
		`scheduler for the requested amount of virtual time, and reports ` +
		`what the devices did. With --demo it also plays a floppy and IDE ` +
		`exercise script against the controllers.`,
	Run: func(cmd *cobra.Command, args []string) {
		runMachine()
	},
}

func init() {
	runCmd.Flags().Float64Var(&runSeconds, "seconds", 1.0,
		"virtual seconds to emulate")
	runCmd.Flags().StringVar(&diskPath, "disk", "",
		"disk image for drive 0 (blank disk when empty)")
	runCmd.Flags().BoolVar(&enableTrace, "trace", false,
		"record fired sync points to an SQLite trace")
	runCmd.Flags().StringVar(&tracePath, "trace-file", "",
		"trace database path, without extension")
	runCmd.Flags().BoolVar(&inspectFlag, "inspect", false,
		"start the inspection web server")
	runCmd.Flags().IntVar(&inspectPort, "inspect-port", 0,
		"inspection server port (random when 0)")
	runCmd.Flags().BoolVar(&openBrowser, "open-browser", false,
		"open the inspection server in a browser")
	runCmd.Flags().IntVar(&holdSeconds, "hold", 0,
		"keep the process alive this many wall-clock seconds after the run")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"log every fired sync point")
	runCmd.Flags().Uint64Var(&hdSectors, "hd-sectors", 16384,
		"hard disk size in sectors")
	runCmd.Flags().Uint64Var(&stepMillis, "step", 1,
		"scheduler advance quantum in virtual milliseconds")
	runCmd.Flags().BoolVar(&demoScript, "demo", true,
		"play the controller exercise script")
	runCmd.Flags().BoolVar(&reportFrames, "frames", true,
		"report renderer frame statistics")

	rootCmd.AddCommand(runCmd)
}

// machine bundles the devices one run drives.
type machine struct {
	sched    *emu.Scheduler
	drive    *fdc.ImageDrive
	wd       *fdc.WD2793
	tc       *fdc.TC8566AF
	hd       *ide.Device
	renderer *video.Renderer
	fb       *video.FrameBuffer
}

func buildMachine() *machine {
	sched := emu.NewScheduler()

	drive := fdc.NewImageDrive()
	if diskPath != "" {
		image, err := os.ReadFile(diskPath)
		if err != nil {
			log.Fatalf("cannot read disk image: %s", err)
		}
		if err := drive.Insert(image, demoTracks, demoSectors); err != nil {
			log.Fatalf("cannot insert disk image: %s", err)
		}
	} else {
		drive.InsertBlank(demoTracks, demoSectors)
	}

	secondDrive := fdc.NewImageDrive()
	secondDrive.InsertBlank(demoTracks, demoSectors)

	fb := video.NewFrameBuffer()

	m := &machine{
		sched: sched,
		drive: drive,
		wd:    fdc.NewWD2793("fdc0", sched, drive, 0),
		tc: fdc.NewTC8566AF("fdc1", sched, [4]fdc.Drive{
			secondDrive,
			&fdc.DummyDrive{},
			&fdc.DummyDrive{},
			&fdc.DummyDrive{},
		}, 0),
		hd:       ide.NewDevice("ide0", ide.NewBlankMedium(hdSectors), 0),
		renderer: video.NewRenderer("vdp", sched, fb, 0, 0),
		fb:       fb,
	}

	return m
}

func runMachine() {
	m := buildMachine()

	if verboseFlag {
		logger := log.New(os.Stderr, "", 0)
		m.sched.AcceptHook(emu.NewSyncPointLogger(logger))
	}

	if enableTrace || tracePath != "" {
		recorder := recording.New(tracePath)
		m.sched.AcceptHook(recording.NewSyncPointTrace(recorder))
	}

	if inspectFlag || openBrowser {
		server := inspect.NewServer()
		server.WithPortNumber(inspectPort)
		server.RegisterScheduler(m.sched)
		server.RegisterDevice("fdc0", m.wd)
		server.RegisterDevice("fdc1", m.tc)
		server.RegisterDevice("ide0", m.hd)
		server.RegisterDevice("vdp", m.renderer)
		server.StartServer()

		if openBrowser {
			err := browser.OpenURL("http://" + server.Addr())
			if err != nil {
				fmt.Fprintf(os.Stderr, "cannot open browser: %s\n", err)
			}
		}
	}

	if demoScript {
		playFloppyScript(m)
		playIDEScript(m)
	}

	end := emu.VTime(runSeconds * float64(emu.MainFreq))
	quantum := emu.KHz.NTicks(stepMillis)
	for now := m.sched.Now(); now < end; {
		now = now.Add(quantum)
		if now > end {
			now = end
		}
		m.sched.AdvanceTo(now)
	}

	fmt.Printf("emulated %.3f s of virtual time\n", m.sched.Now().Seconds())
	if reportFrames {
		completed, dropped := m.fb.Frames()
		fmt.Printf("renderer: %d frames, %d dropped\n", completed, dropped)
	}

	if holdSeconds > 0 {
		time.Sleep(time.Duration(holdSeconds) * time.Second)
	}
}

// playFloppyScript seeks to track 2 and reads one sector, polling the
// controller the way a driver would.
func playFloppyScript(m *machine) {
	advance := func(d emu.Duration) {
		m.sched.AdvanceTo(m.sched.Now().Add(d))
	}

	// The power-on restore is still running; let it finish.
	advance(emu.KHz.NTicks(200))

	m.wd.WriteReg(fdc.RegData, 2, m.sched.Now())
	m.wd.WriteReg(fdc.RegCommand, 0x10, m.sched.Now()) // seek
	advance(emu.KHz.NTicks(200))

	m.wd.WriteReg(fdc.RegSector, 1, m.sched.Now())
	m.wd.WriteReg(fdc.RegCommand, 0x80, m.sched.Now()) // read sector

	read := 0
	for i := 0; i < 20000 && read < fdc.SectorSize; i++ {
		advance(emu.MHz.NTicks(20))

		now := m.sched.Now()
		if m.wd.PeekDTRQ(now) {
			m.wd.ReadReg(fdc.RegData, now)
			read++
		}
		if m.wd.PeekStatusReg(now)&fdc.StatusBusy == 0 && read > 0 {
			break
		}
	}

	fmt.Printf("fdc0: track %d, %d bytes read, status %02x\n",
		m.wd.PeekReg(fdc.RegTrack, m.sched.Now()),
		read,
		m.wd.PeekReg(fdc.RegStatus, m.sched.Now()))
}

// playIDEScript identifies the hard disk and reads its first sector.
func playIDEScript(m *machine) {
	advance := func(d emu.Duration) {
		m.sched.AdvanceTo(m.sched.Now().Add(d))
	}

	now := m.sched.Now()
	m.hd.WriteReg(ide.RegDeviceHead, 0x40, now)
	m.hd.WriteReg(ide.RegCommand, 0xEC, now) // identify device
	advance(emu.KHz.NTicks(1))

	words := 0
	for m.hd.ReadReg(ide.RegStatus, m.sched.Now())&ide.StatusDRQ != 0 {
		m.hd.ReadData(m.sched.Now())
		words++
	}

	fmt.Printf("ide0: identify read %d words, status %02x\n",
		words, m.hd.ReadReg(ide.RegStatus, m.sched.Now()))
}

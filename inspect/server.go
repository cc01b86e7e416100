// Package inspect turns a running emulation into a small web server so the
// machine state can be observed from outside. Every query goes through the
// devices' peek paths, so inspection never disturbs emulation determinism.
package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/emusim/torii/emu"
	"github.com/emusim/torii/emu/state"
)

// A RegisterFile is a device whose registers the inspector can peek by
// index.
type RegisterFile interface {
	PeekRegister(index int, now emu.VTime) byte
}

type namedDevice struct {
	name   string
	device any
}

// A Server exposes the emulated machine over HTTP.
type Server struct {
	sched      *emu.Scheduler
	devices    []namedDevice
	portNumber int
	addr       string
}

// NewServer creates a Server.
func NewServer() *Server {
	return &Server{}
}

// WithPortNumber sets the port number of the server.
func (s *Server) WithPortNumber(portNumber int) *Server {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the inspection server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	s.portNumber = portNumber

	return s
}

// RegisterScheduler registers the scheduler that drives the emulation.
func (s *Server) RegisterScheduler(sched *emu.Scheduler) {
	s.sched = sched
}

// RegisterDevice registers a device to be inspected.
func (s *Server) RegisterDevice(name string, device any) {
	s.devices = append(s.devices, namedDevice{name: name, device: device})
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() string {
	return s.addr
}

// StartServer starts the inspection web server.
func (s *Server) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", s.now)
	r.HandleFunc("/api/devices", s.listDevices)
	r.HandleFunc("/api/device/{name}", s.deviceDetails)
	r.HandleFunc("/api/device/{name}/state", s.deviceState)
	r.HandleFunc("/api/device/{name}/reg/{index}", s.peekRegister)
	r.HandleFunc("/api/field/{json}", s.fieldValue)
	r.HandleFunc("/api/resource", s.listResources)
	r.HandleFunc("/api/profile", s.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if s.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(s.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	s.addr = fmt.Sprintf("localhost:%d", port)

	fmt.Fprintf(os.Stderr,
		"Inspecting emulation with http://%s\n", s.addr)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (s *Server) now(w http.ResponseWriter, _ *http.Request) {
	now := s.sched.Now()
	fmt.Fprintf(w, "{\"now\":%d,\"seconds\":%.10f}",
		uint64(now), now.Seconds())
}

func (s *Server) listDevices(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, d := range s.devices {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", d.name)
	}
	fmt.Fprint(w, "]")
}

func (s *Server) deviceDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	device := s.findDeviceOr404(w, name)
	if device == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(device)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (s *Server) deviceState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	device := s.findDeviceOr404(w, name)
	if device == nil {
		return
	}

	snap, ok := device.(state.Snapshotter)
	if !ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	record, err := snap.Snapshot()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = state.JSONCodec{}.Encode(record, w)
	dieOnErr(err)
}

func (s *Server) peekRegister(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	device := s.findDeviceOr404(w, vars["name"])
	if device == nil {
		return
	}

	regFile, ok := device.(RegisterFile)
	if !ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	value := regFile.PeekRegister(index, s.sched.Now())
	fmt.Fprintf(w, "{\"register\":%d,\"value\":%d}", index, value)
}

type fieldReq struct {
	DeviceName string `json:"device_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (s *Server) fieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		dieOnErr(err)
	}

	fields := strings.Split(req.FieldName, ".")

	device := s.findDeviceOr404(w, req.DeviceName)
	if device == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(device)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (s *Server) findDeviceOr404(
	w http.ResponseWriter,
	name string,
) any {
	for _, d := range s.devices {
		if d.name == name {
			return d.device
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Device not found"))
	dieOnErr(err)

	return nil
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (s *Server) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (s *Server) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

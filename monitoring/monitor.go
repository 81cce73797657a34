// Package monitoring serves the live state of streams over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/idgen"
	"github.com/sarchlab/davidrt/monitoring/web"
	"github.com/sarchlab/davidrt/stream"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// ErrInvalidQuery is returned for malformed query parameters.
var ErrInvalidQuery = errors.Define("monitoring: invalid query")

// Monitor turns a running engine into a server that exposes the state of
// its streams.
type Monitor struct {
	portNumber  int
	profileTime time.Duration
	logger      zerolog.Logger

	lock     sync.Mutex
	contexts []*stream.Context
	streams  []*stream.Stream

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		profileTime: time.Second,
		logger:      zerolog.Nop(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileTime sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileTime(d time.Duration) *Monitor {
	m.profileTime = d
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(l zerolog.Logger) *Monitor {
	m.logger = l
	return m
}

// RegisterContext monitors all the streams of a context, including streams
// created later.
func (m *Monitor) RegisterContext(c *stream.Context) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.contexts = append(m.contexts, c)
}

// RegisterStream monitors a single stream.
func (m *Monitor) RegisterStream(s *stream.Stream) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.streams = append(m.streams, s)
}

func (m *Monitor) allStreams() []*stream.Stream {
	m.lock.Lock()
	defer m.lock.Unlock()

	seen := make(map[*stream.Stream]bool)
	out := make([]*stream.Stream, 0, len(m.streams))

	add := func(s *stream.Stream) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, c := range m.contexts {
		for _, s := range c.Streams() {
			add(s)
		}
	}

	for _, s := range m.streams {
		add(s)
	}

	return out
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        idgen.SessionID(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the monitor.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			bars = append(bars, b)
		}
	}

	m.progressBars = bars
}

// Handler returns the router serving the monitor API and web pages.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_streams", m.listStreams)
	r.HandleFunc("/api/stream/{name}", m.streamDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/hangdetector/rings", m.hangDetectorRings)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer serves the monitor in the background and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	addr := ":" + strconv.Itoa(m.portNumber)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, err
	}

	port := listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(os.Stderr,
		"Monitoring engine with http://localhost:%d\n", port)

	go func() {
		if err := http.Serve(listener, m.Handler()); err != nil {
			m.logger.Error().Err(err).Msg("monitor server stopped")
		}
	}()

	return port, nil
}

func (m *Monitor) listStreams(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0)
	for _, s := range m.allStreams() {
		names = append(names, s.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) findStreamOr404(
	w http.ResponseWriter,
	name string,
) *stream.Stream {
	for _, s := range m.allStreams() {
		if s.Name() == name {
			return s
		}
	}

	http.Error(w, "Stream not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) streamDetails(w http.ResponseWriter, r *http.Request) {
	s := m.findStreamOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	snap := snapshotOf(s)
	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snap)
	serializer.SetMaxDepth(1)

	buf := bytes.NewBuffer(nil)
	if err := serializer.Serialize(buf); err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type fieldReq struct {
	StreamName string `json:"stream_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	if err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req); err != nil {
		m.writeErr(w, http.StatusBadRequest, err)
		return
	}

	s := m.findStreamOr404(w, req.StreamName)
	if s == nil {
		return
	}

	snap := snapshotOf(s)
	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snap)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint(strings.Split(req.FieldName, ".")); err != nil {
		m.writeErr(w, http.StatusBadRequest, err)
		return
	}

	buf := bytes.NewBuffer(nil)
	if err := serializer.Serialize(buf); err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	_, _ = w.Write(buf.Bytes())
}

type ringLevel struct {
	Stream  string  `json:"stream"`
	Level   int     `json:"level"`
	Cap     int     `json:"cap"`
	Percent float64 `json:"percent"`
}

func (m *Monitor) hangDetectorRings(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := parseRingParams(r)
	if err != nil {
		m.writeErr(w, http.StatusBadRequest, err)
		return
	}

	levels := make([]ringLevel, 0)

	for _, s := range m.allStreams() {
		capacity := int(s.Depth()) - 1
		level := int(s.Ring().InFlight())

		levels = append(levels, ringLevel{
			Stream:  s.Name(),
			Level:   level,
			Cap:     capacity,
			Percent: float64(level) / float64(capacity),
		})
	}

	m.writeJSON(w, sortAndSelect(levels, sortMethod, limit, offset))
}

func parseRingParams(r *http.Request) (sortMethod string, limit, offset int, err error) {
	query := r.URL.Query()

	sortMethod = query.Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, errors.From(ErrInvalidQuery,
			errors.WithMeta("sort", sortMethod))
	}

	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			return "", 0, 0, errors.From(ErrInvalidQuery,
				errors.WithMeta("limit", s))
		}
	}

	if s := query.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return "", 0, 0, errors.From(ErrInvalidQuery,
				errors.WithMeta("offset", s))
		}
	}

	return sortMethod, limit, offset, nil
}

// sortAndSelect orders the rings by the primary key of the sort method,
// breaking ties with the other key. A limit of zero keeps every ring after
// the offset.
func sortAndSelect(
	levels []ringLevel,
	sortMethod string,
	limit, offset int,
) []ringLevel {
	sort.SliceStable(levels, func(i, j int) bool {
		a, b := levels[i], levels[j]

		if sortMethod == "level" {
			if a.Level != b.Level {
				return a.Level > b.Level
			}

			return a.Percent > b.Percent
		}

		if a.Percent != b.Percent {
			return a.Percent > b.Percent
		}

		return a.Level > b.Level
	})

	if offset > len(levels) {
		offset = len(levels)
	}

	end := len(levels)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return levels[offset:end]
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarState, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.State())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: mem.RSS})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.writeErr(w, http.StatusConflict, err)
		return
	}

	time.Sleep(m.profileTime)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.writeErr(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (m *Monitor) writeErr(w http.ResponseWriter, code int, err error) {
	m.logger.Warn().Err(err).Int("code", code).Msg("monitor request failed")
	http.Error(w, "Error: "+err.Error(), code)
}

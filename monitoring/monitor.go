// Package monitoring serves a running clinic over HTTP so that it can be
// watched and steered while it runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/clinicsim/clinic"
	"github.com/sarchlab/clinicsim/erlang"
	"github.com/sarchlab/clinicsim/idgen"
	"github.com/sarchlab/clinicsim/monitoring/web"
)

// Monitor turns a Driver into a server that allows external monitoring and
// controlling of the clinic.
type Monitor struct {
	driver      *Driver
	portNumber  int
	openBrowser bool
	logger      logrus.FieldLogger

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor(driver *Driver) *Monitor {
	return &Monitor{
		driver: driver,
		logger: logrus.StandardLogger(),
	}
}

// WithPortNumber sets the port number of the monitor. Zero picks a random
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnf("Port number %d is not allowed for the monitoring "+
			"server. Using a random port instead.", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the dashboard in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// CreateProgressBar creates a new progress bar over total simulated hours.
func (m *Monitor) CreateProgressBar(name string, total float64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", m.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/start", m.start).Methods(http.MethodPost)
	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost)
	r.HandleFunc("/api/resume", m.resume).Methods(http.MethodPost)
	r.HandleFunc("/api/reset", m.reset).Methods(http.MethodPost)
	r.HandleFunc("/api/step", m.step).Methods(http.MethodPost)
	r.HandleFunc("/api/params", m.getParams).Methods(http.MethodGet)
	r.HandleFunc("/api/params", m.putParams).Methods(http.MethodPut)
	r.HandleFunc("/api/theory", m.theory).Methods(http.MethodGet)
	r.HandleFunc("/api/history", m.history).Methods(http.MethodGet)
	r.HandleFunc("/api/patient/{id}", m.patient).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// dashboard.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: listening on port %d: %w",
			m.portNumber, err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()

	m.logger.WithField("url", url).Info("Monitoring clinic")

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("cannot open browser")
		}
	}

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	s := m.driver.Snapshot()
	m.writeJSON(w, map[string]any{"now": s.SimTime, "running": s.Running})
}

func (m *Monitor) snapshot(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.driver.Snapshot())
}

func (m *Monitor) start(w http.ResponseWriter, _ *http.Request) {
	m.driver.Start()
	m.logger.Info("run started")
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.driver.Do(func(e *clinic.Engine) { e.Pause() })
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.driver.Do(func(e *clinic.Engine) { e.Resume() })
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) reset(w http.ResponseWriter, _ *http.Request) {
	m.driver.Reset()
	m.logger.Info("run reset")
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) step(w http.ResponseWriter, r *http.Request) {
	dt, err := strconv.ParseFloat(r.URL.Query().Get("dt"), 64)
	if err != nil || !(dt > 0) || math.IsInf(dt, 1) {
		m.writeError(w, http.StatusBadRequest,
			fmt.Errorf("dt must be a positive number of hours, got %q",
				r.URL.Query().Get("dt")))

		return
	}

	m.driver.Step(dt)
	m.writeJSON(w, m.driver.Snapshot())
}

func (m *Monitor) getParams(w http.ResponseWriter, _ *http.Request) {
	var p clinic.Params

	m.driver.Do(func(e *clinic.Engine) { p = e.Params() })
	m.writeJSON(w, p)
}

// putParams accepts a partial Params document; absent fields keep their
// value.
func (m *Monitor) putParams(w http.ResponseWriter, r *http.Request) {
	var p clinic.Params

	m.driver.Do(func(e *clinic.Engine) {
		p = e.Params()
	})

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&p); err != nil {
		m.writeError(w, http.StatusBadRequest, err)
		return
	}

	m.driver.Do(func(e *clinic.Engine) {
		e.SetParams(p.Lambda, p.Mu, p.Servers)
		e.SetPriorityProbability(p.Priority)
		e.SetTimeScale(p.TimeScale)
	})

	m.logger.WithFields(logrus.Fields{
		"lambda":   p.Lambda,
		"mu":       p.Mu,
		"servers":  p.Servers,
		"priority": p.Priority,
	}).Info("parameters changed")

	m.writeJSON(w, p)
}

// theory evaluates the closed form for the query, falling back to the
// current parameters for absent values.
func (m *Monitor) theory(w http.ResponseWriter, r *http.Request) {
	var p clinic.Params

	m.driver.Do(func(e *clinic.Engine) { p = e.Params() })

	q := r.URL.Query()

	var err error

	if v := q.Get("lambda"); v != "" {
		p.Lambda, err = strconv.ParseFloat(v, 64)
	}

	if v := q.Get("mu"); v != "" && err == nil {
		p.Mu, err = strconv.ParseFloat(v, 64)
	}

	if v := q.Get("c"); v != "" && err == nil {
		p.Servers, err = strconv.Atoi(v)
	}

	if err != nil {
		m.writeError(w, http.StatusBadRequest, err)
		return
	}

	m.writeJSON(w, erlang.C(p.Lambda, p.Mu, p.Servers))
}

func (m *Monitor) history(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.driver.History())
}

func (m *Monitor) patient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		m.writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		p     clinic.Patient
		found bool
	)

	m.driver.Do(func(e *clinic.Engine) {
		p, found = e.Patient(idgen.ID(id))
	})

	if !found {
		m.writeError(w, http.StatusNotFound,
			fmt.Errorf("patient %d not found", id))

		return
	}

	buf := bytes.NewBuffer(nil)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&p)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(buf); err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	m.write(w, buf.Bytes())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	m.write(w, data)
}

func (m *Monitor) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		m.logger.WithError(err).Error("monitoring request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	m.write(w, data)
}

func (m *Monitor) write(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		m.logger.WithError(err).Debug("writing response")
	}
}

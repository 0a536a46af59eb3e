// Package udp implements the drone.Vehicle boundary over a simple
// CSV-datagram bridge, the shape used when a MAVSDK (or similar) sidecar
// translates autopilot telemetry onto a local UDP socket. Telemetry arrives
// as "north,east,down,mode,battery" datagrams; commands leave as
// "setpoint,n,e,d,yaw", "rtl" and "land" datagrams.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rollpitchyall/printinflight/internal/drone"
	"github.com/rollpitchyall/printinflight/internal/nav"
)

const defaultStaleAfter = 2 * time.Second

// ErrNoTelemetry is returned for reads before the first telemetry datagram
// arrives, or once the latest snapshot has gone stale.
var ErrNoTelemetry = errors.New("no fresh telemetry")

// Config holds the bridge endpoints.
type Config struct {
	// ListenAddr is the host:port to receive telemetry datagrams on.
	ListenAddr string

	// CommandAddr is the host:port to send command datagrams to.
	CommandAddr string

	// StaleAfter bounds how old the latest snapshot may be before reads
	// fail as transient errors. Zero means the default of 2s.
	StaleAfter time.Duration

	// ReadBuffer is the receive buffer size in bytes. Zero means 2048.
	ReadBuffer int
}

type snapshot struct {
	position nav.PositionNED
	mode     drone.Mode
	battery  float64
	received time.Time
}

// Adapter is a drone.Vehicle backed by the UDP bridge.
type Adapter struct {
	in         *net.UDPConn
	staleAfter time.Duration

	mu   sync.RWMutex
	last snapshot
	seq  uint64

	outMu sync.Mutex // one command datagram at a time
	out   *net.UDPConn

	closeOnce sync.Once
}

// New opens both sockets and starts the telemetry listener goroutine.
func New(cfg Config) (*Adapter, error) {
	listenAddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving listen address: %w", err)
	}
	in, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listening for telemetry: %w", err)
	}

	cmdAddr, err := net.ResolveUDPAddr("udp", cfg.CommandAddr)
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("resolving command address: %w", err)
	}
	out, err := net.DialUDP("udp", nil, cmdAddr)
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("dialing command endpoint: %w", err)
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	a := &Adapter{
		in:         in,
		out:        out,
		staleAfter: staleAfter,
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}
	go a.listen(bufSize)

	return a, nil
}

func (a *Adapter) listen(bufSize int) {
	buf := make([]byte, bufSize)
	for {
		n, _, err := a.in.ReadFromUDP(buf)
		if err != nil {
			return // socket closed
		}
		snap, err := parseTelemetry(buf[:n])
		if err != nil {
			continue
		}

		a.mu.Lock()
		a.last = snap
		a.seq++
		a.mu.Unlock()
	}
}

// parseTelemetry parses a "north,east,down,mode,battery" payload.
func parseTelemetry(b []byte) (snapshot, error) {
	parts := strings.Split(strings.TrimSpace(string(b)), ",")
	if len(parts) != 5 {
		return snapshot{}, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	var snap snapshot
	for i, dst := range []*float64{&snap.position.North, &snap.position.East, &snap.position.Down} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return snapshot{}, err
		}
		*dst = v
	}

	snap.mode = drone.Mode(strings.ToUpper(strings.TrimSpace(parts[3])))
	battery, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return snapshot{}, err
	}

	snap.battery = battery
	snap.received = time.Now()
	return snap, nil
}

func (a *Adapter) fresh() (snapshot, error) {
	a.mu.RLock()
	snap, seq := a.last, a.seq
	a.mu.RUnlock()

	if seq == 0 || time.Since(snap.received) > a.staleAfter {
		return snapshot{}, ErrNoTelemetry
	}
	return snap, nil
}

// Position returns the latest received NED position.
func (a *Adapter) Position() (nav.PositionNED, error) {
	snap, err := a.fresh()
	if err != nil {
		return nav.PositionNED{}, err
	}
	return snap.position, nil
}

// Mode returns the latest received flight mode.
func (a *Adapter) Mode() (drone.Mode, error) {
	snap, err := a.fresh()
	if err != nil {
		return "", err
	}
	return snap.mode, nil
}

// Battery returns the latest received battery fraction.
func (a *Adapter) Battery() (float64, error) {
	snap, err := a.fresh()
	if err != nil {
		return 0, err
	}
	return snap.battery, nil
}

// SendSetpoint transmits one position+yaw command datagram.
func (a *Adapter) SendSetpoint(sp drone.Setpoint) error {
	payload := fmt.Sprintf("setpoint,%.4f,%.4f,%.4f,%.2f",
		sp.Position.North, sp.Position.East, sp.Position.Down, sp.YawDeg)
	return a.send(payload)
}

// ReturnToLaunch transmits the RTL directive.
func (a *Adapter) ReturnToLaunch() error {
	return a.send("rtl")
}

// Land transmits the land directive.
func (a *Adapter) Land() error {
	return a.send("land")
}

func (a *Adapter) send(payload string) error {
	a.outMu.Lock()
	defer a.outMu.Unlock()

	if _, err := a.out.Write([]byte(payload)); err != nil {
		return fmt.Errorf("sending %q: %w", payload, err)
	}
	return nil
}

// Close releases both sockets and stops the listener.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = errors.Join(a.in.Close(), a.out.Close())
	})
	return err
}

// Package simulation generates BaseStation traffic for simulated aircraft so
// the tracker can run without a receiver. Aircraft fly straight lines by
// dead reckoning and are steered through the API.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/feed/basestation"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// Address is the feed address the simulator answers to
const Address = config.SimulatorAddress

const (
	defaultMaxAircraft = 10
	defaultInterval    = time.Second
)

var (
	ErrTooManyAircraft = errors.New("maximum number of simulated aircraft reached")
	ErrUnknownAircraft = errors.New("simulated aircraft not found")
)

// Controls steer a simulated aircraft
type Controls struct {
	Heading      float64 `json:"heading"`       // degrees true
	Speed        float64 `json:"speed"`         // knots
	VerticalRate float64 `json:"vertical_rate"` // feet per minute
}

// Validate checks the controls are within what an airliner does
func (c Controls) Validate() error {
	if c.Heading < 0 || c.Heading >= 360 {
		return fmt.Errorf("invalid heading (0-359 degrees)")
	}
	if c.Speed < 0 || c.Speed > 500 {
		return fmt.Errorf("invalid speed (0-500 knots)")
	}
	if c.VerticalRate < -6000 || c.VerticalRate > 6000 {
		return fmt.Errorf("invalid vertical rate (-6000 to +6000 fpm)")
	}
	return nil
}

// SimulatedAircraft represents a single simulated aircraft with its current state
type SimulatedAircraft struct {
	Icao24     transponder.Icao24   `json:"icao"`
	Callsign   string               `json:"callsign"`
	Squawk     int16                `json:"squawk"`
	Location   transponder.Location `json:"location"`
	Altitude   float64              `json:"altitude"`
	Controls   Controls             `json:"controls"`
	LastUpdate time.Time            `json:"last_update"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Options tune the simulator
type Options struct {
	MaxAircraft int
	Interval    time.Duration // time between transmissions of one aircraft
}

// Service manages simulated aircraft and the feeds that report them
type Service struct {
	options Options
	logger  *logger.Logger
	clock   func() time.Time

	mu       sync.RWMutex
	aircraft map[transponder.Icao24]*SimulatedAircraft
	rand     *rand.Rand
	nextID   int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new simulation service
func NewService(opts Options, log *logger.Logger) *Service {
	if opts.MaxAircraft <= 0 {
		opts.MaxAircraft = defaultMaxAircraft
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Service{
		options:  opts,
		logger:   log.Named("simulation"),
		clock:    time.Now,
		aircraft: make(map[transponder.Icao24]*SimulatedAircraft),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:   make(chan struct{}),
	}
}

// CreateAircraft creates a new simulated aircraft
func (s *Service) CreateAircraft(location transponder.Location, altitude float64, controls Controls) (*SimulatedAircraft, error) {
	if location.Lat < -90 || location.Lat > 90 || location.Lon < -180 || location.Lon > 180 {
		return nil, fmt.Errorf("invalid coordinates")
	}
	if altitude < 0 || altitude > 60000 {
		return nil, fmt.Errorf("invalid altitude (0-60000 ft)")
	}
	if err := controls.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.aircraft) >= s.options.MaxAircraft {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyAircraft, s.options.MaxAircraft)
	}

	now := s.clock().UTC()
	s.nextID++
	a := &SimulatedAircraft{
		Icao24:     s.uniqueIcao(),
		Callsign:   fmt.Sprintf("SIM%03d", s.nextID%1000),
		Squawk:     2000,
		Location:   location,
		Altitude:   altitude,
		Controls:   controls,
		LastUpdate: now,
		CreatedAt:  now,
	}
	s.aircraft[a.Icao24] = a

	s.logger.Info("Created simulated aircraft",
		logger.String("icao", a.Icao24.String()),
		logger.String("callsign", a.Callsign),
		logger.Float64("lat", location.Lat),
		logger.Float64("lon", location.Lon))

	out := *a
	return &out, nil
}

// UpdateControls updates the control parameters for a simulated aircraft
func (s *Service) UpdateControls(icao transponder.Icao24, controls Controls) error {
	if err := controls.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.aircraft[icao]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, icao)
	}
	s.advance(a, s.clock().UTC())
	a.Controls = controls

	s.logger.Debug("Updated simulation controls",
		logger.String("icao", icao.String()),
		logger.Float64("heading", controls.Heading),
		logger.Float64("speed", controls.Speed),
		logger.Float64("vertical_rate", controls.VerticalRate))
	return nil
}

// RemoveAircraft removes a simulated aircraft
func (s *Service) RemoveAircraft(icao transponder.Icao24) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aircraft[icao]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, icao)
	}
	delete(s.aircraft, icao)
	s.logger.Info("Removed simulated aircraft", logger.String("icao", icao.String()))
	return nil
}

// Aircraft returns copies of every simulated aircraft ordered by address
func (s *Service) Aircraft() []SimulatedAircraft {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SimulatedAircraft, 0, len(s.aircraft))
	for _, a := range s.aircraft {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Icao24 < out[j].Icao24 })
	return out
}

// Dial implements the tracker's dialer for Address and hands every other
// address to next. Each connection gets its own transmission loop.
func (s *Service) Dial(next func(ctx context.Context, network, address string) (net.Conn, error)) func(ctx context.Context, network, address string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		if address != Address {
			return next(ctx, network, address)
		}
		select {
		case <-s.stopCh:
			return nil, errors.New("simulator stopped")
		default:
		}

		client, server := net.Pipe()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer server.Close()
			if err := s.Serve(server); err != nil {
				s.logger.Debug("Simulated feed closed", logger.Error(err))
			}
		}()
		return client, nil
	}
}

// Serve transmits every aircraft once per interval until w fails or the
// service stops
func (s *Service) Serve(w io.Writer) error {
	ticker := time.NewTicker(s.options.Interval)
	defer ticker.Stop()

	var buf []byte
	for {
		buf = s.transmit(buf[:0], s.clock().UTC())
		if len(buf) > 0 {
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}

		select {
		case <-ticker.C:
		case <-s.stopCh:
			return nil
		}
	}
}

// Stop ends every transmission loop
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Spawn creates n aircraft at random within about 30 NM of center, flying
// random headings at cruise-like speeds and levels
func (s *Service) Spawn(center transponder.Location, n int) error {
	for i := 0; i < n; i++ {
		s.mu.Lock()
		location := transponder.Location{
			Lat: center.Lat + (s.rand.Float64()-0.5)*1.0,
			Lon: center.Lon + (s.rand.Float64()-0.5)*1.0,
		}
		altitude := float64(3000 + s.rand.Intn(35)*1000)
		controls := Controls{
			Heading: float64(s.rand.Intn(360)),
			Speed:   float64(180 + s.rand.Intn(270)),
		}
		s.mu.Unlock()

		location.Lat = math.Max(-90, math.Min(90, location.Lat))
		location.Lon = math.Max(-180, math.Min(180, location.Lon))
		if _, err := s.CreateAircraft(location, altitude, controls); err != nil {
			return err
		}
	}
	return nil
}

// transmit advances every aircraft to now and appends its records
func (s *Service) transmit(dst []byte, now time.Time) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.aircraft {
		s.advance(a, now)
		for _, m := range records(a, now) {
			dst = m.AppendRecord(dst)
		}
	}
	return dst
}

func records(a *SimulatedAircraft, now time.Time) []*basestation.Message {
	base := basestation.Message{
		MessageType:      basestation.MessageMSG,
		SessionID:        1,
		AircraftID:       1,
		Icao24:           a.Icao24.String(),
		FlightID:         1,
		MessageGenerated: now,
		MessageLogged:    now,
	}
	onGround := a.Altitude <= 0
	altitude := int32(math.Round(a.Altitude))
	lat, lon := a.Location.Lat, a.Location.Lon
	speed := float32(a.Controls.Speed)
	track := float32(a.Controls.Heading)
	vr := int32(math.Round(a.Controls.VerticalRate))
	squawk := a.Squawk
	no := false

	id := base
	id.TransmissionType = basestation.TransmissionIDAndCategory
	id.Callsign = a.Callsign

	pos := base
	pos.TransmissionType = basestation.TransmissionAirbornePos
	pos.Altitude = &altitude
	pos.Latitude = &lat
	pos.Longitude = &lon
	pos.SquawkChanged, pos.Emergency, pos.IdentActive = &no, &no, &no
	pos.OnGround = &onGround

	vel := base
	vel.TransmissionType = basestation.TransmissionAirborneVel
	vel.GroundSpeed = &speed
	vel.Track = &track
	vel.VerticalRate = &vr

	sq := base
	sq.TransmissionType = basestation.TransmissionSurveillanceID
	sq.Altitude = &altitude
	sq.Squawk = &squawk

	return []*basestation.Message{&id, &pos, &vel, &sq}
}

// advance moves a by dead reckoning from its last update to now
func (s *Service) advance(a *SimulatedAircraft, now time.Time) {
	dt := now.Sub(a.LastUpdate).Seconds()
	if dt <= 0 {
		return
	}
	a.LastUpdate = now

	// Aviation 0° is north and clockwise, math 0° is east and anticlockwise
	headingRad := (90 - a.Controls.Heading) * math.Pi / 180
	distanceNM := a.Controls.Speed * dt / 3600

	// 1 degree latitude is about 60 nautical miles
	a.Location.Lat += distanceNM * math.Sin(headingRad) / 60
	a.Location.Lon += distanceNM * math.Cos(headingRad) / (60 * math.Cos(a.Location.Lat*math.Pi/180))

	a.Altitude += a.Controls.VerticalRate * dt / 60
	if a.Altitude < 0 {
		a.Altitude = 0
		a.Controls.VerticalRate = 0
	}
}

// uniqueIcao picks an unused address. Caller holds mu.
func (s *Service) uniqueIcao() transponder.Icao24 {
	for {
		icao := transponder.Icao24(s.rand.Intn(0xFFFFFF) + 1)
		if _, exists := s.aircraft[icao]; !exists {
			return icao
		}
	}
}

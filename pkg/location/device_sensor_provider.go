package location

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

const (
	// uereMeters is the nominal user equivalent range error used to turn
	// dilution of precision into meters.
	uereMeters = 5.0

	knotsToMetersPerSecond = 0.514444

	defaultSerialReadTimeout = 2 * time.Second
)

var errNoFix = errors.New("no valid GPS data found")

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
	}
}

// Name identifies the source in emitted fixes.
func (d *DeviceSensorProvider) Name() string {
	return "gps"
}

// HighPower reports that a fix keeps the receiver powered.
func (d *DeviceSensorProvider) HighPower() bool {
	return true
}

// GetLocation reads NMEA sentences from the device until a complete fix is available.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Location, error) {
	c := &serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: defaultSerialReadTimeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return Location{}, err
	}
	defer s.Close()

	// Closing the port unblocks a pending read when the context ends first.
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	loc, err := readFix(ctx, s)
	if err != nil {
		return Location{}, err
	}
	loc.Provider = d.Name()
	return loc, nil
}

// nmeaFix accumulates the sentences that make up one epoch.
type nmeaFix struct {
	gga    nmea.GGA
	rmc    nmea.RMC
	vdop   float64
	hasGGA bool
	hasRMC bool
}

func (f *nmeaFix) apply(sentence nmea.Sentence) {
	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return
		}
		f.gga = s
		f.hasGGA = true
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return
		}
		f.rmc = s
		f.hasRMC = true
	case nmea.GSA:
		f.vdop = s.VDOP
	}
}

func (f *nmeaFix) complete() bool {
	return f.hasGGA && f.hasRMC
}

func (f *nmeaFix) location() Location {
	return Location{
		Latitude:         f.gga.Latitude,
		Longitude:        f.gga.Longitude,
		Altitude:         f.gga.Altitude,
		Accuracy:         float32(f.gga.HDOP * uereMeters),
		VerticalAccuracy: float32(f.vdop * uereMeters),
		Speed:            float32(f.rmc.Speed * knotsToMetersPerSecond),
		Time:             fixTime(f.rmc.Date, f.rmc.Time).UnixMilli(),
	}
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Now()
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// readFix scans NMEA lines from r and returns the first complete fix.
// Unparseable lines are skipped, serial streams routinely start mid-sentence.
func readFix(ctx context.Context, r io.Reader) (Location, error) {
	var fix nmeaFix

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		fix.apply(sentence)
		if fix.complete() {
			return fix.location(), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	if err := scanner.Err(); err != nil {
		return Location{}, err
	}

	return Location{}, errNoFix
}

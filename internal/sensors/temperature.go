package sensors

import "codeberg.org/pankha/pankhactl/internal/logger"

// Unavailable is the reading reported when a temperature cannot be read.
const Unavailable = -1

// Source names the hwmon reading to sample.
type Source struct {
	Chip       string
	Feature    string
	Subfeature string
}

// DefaultSource is the CPU package temperature on Intel laptops.
var DefaultSource = Source{
	Chip:       "coretemp-isa-0000",
	Feature:    "Package id 0",
	Subfeature: "temp1_input",
}

// Thermometer reads one temperature. The topology is resolved on every
// read so a chip that appears later, e.g. after a module load, is picked up.
type Thermometer struct {
	loc *Locator
	src Source
	log logger.Logger
}

func NewThermometer(loc *Locator, src Source) *Thermometer {
	return &Thermometer{loc: loc, src: src, log: logger.New("sensors")}
}

// Read returns the temperature in degrees or a sensor error.
func (t *Thermometer) Read() (int, error) {
	chip, err := t.loc.Chip(t.src.Chip)
	if err != nil {
		return Unavailable, err
	}
	feature, err := t.loc.Feature(chip, t.src.Feature)
	if err != nil {
		return Unavailable, err
	}

	return t.loc.Value(feature, t.src.Subfeature)
}

// Temperature returns the reading, or Unavailable on any lookup failure.
func (t *Thermometer) Temperature() int {
	v, err := t.Read()
	if err != nil {
		t.log.Debug().Err(err).Str("chip", t.src.Chip).Msg("Temperature unavailable")
		return Unavailable
	}

	return v
}

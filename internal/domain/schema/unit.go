package schema

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// MassUnit enumerates mass units.
type MassUnit string

const (
	Kilogram MassUnit = "kg"
	Gram     MassUnit = "g"
	Pound    MassUnit = "lb"
	Stone    MassUnit = "st"
)

// LengthUnit enumerates length units.
type LengthUnit string

const (
	Meter      LengthUnit = "m"
	Centimeter LengthUnit = "cm"
	Kilometer  LengthUnit = "km"
	Mile       LengthUnit = "mi"
	Inch       LengthUnit = "in"
	Foot       LengthUnit = "ft"
)

// DurationUnit enumerates duration units.
type DurationUnit string

const (
	Millisecond DurationUnit = "ms"
	Second      DurationUnit = "sec"
	Minute      DurationUnit = "min"
	Hour        DurationUnit = "h"
	Day         DurationUnit = "d"
)

// EnergyUnit enumerates energy units.
type EnergyUnit string

const (
	Kilocalorie EnergyUnit = "kcal"
	Kilojoule   EnergyUnit = "kJ"
)

// PercentUnit is the single unit for percentages.
type PercentUnit string

const Percent PercentUnit = "%"

// TemperatureUnit enumerates temperature units.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// PressureUnit enumerates blood pressure units.
type PressureUnit string

const (
	MillimetersOfMercury PressureUnit = "mmHg"
	Kilopascal           PressureUnit = "kPa"
)

// GlucoseUnit enumerates blood glucose concentration units.
type GlucoseUnit string

const (
	MilligramsPerDeciliter GlucoseUnit = "mg/dL"
	MillimolesPerLiter     GlucoseUnit = "mmol/L"
)

// BMIUnit is the single unit for body mass index.
type BMIUnit string

const KilogramsPerSquareMeter BMIUnit = "kg/m2"

// HeartRateUnit is the single unit for heart rate.
type HeartRateUnit string

const BeatsPerMinute HeartRateUnit = "beats/min"

// SpeedUnit enumerates speed units.
type SpeedUnit string

const (
	MetersPerSecond   SpeedUnit = "m/s"
	KilometersPerHour SpeedUnit = "km/h"
)

// AngleUnit enumerates plane angle units.
type AngleUnit string

const DegreeOfArc AngleUnit = "deg"

// UnitValue pairs a decimal value with a unit scoped to one physical quantity.
type UnitValue[U ~string] struct {
	Value decimal.Decimal `json:"value"`
	Unit  U               `json:"unit"`
}

// NewUnitValue wraps a decimal value.
func NewUnitValue[U ~string](value decimal.Decimal, unit U) UnitValue[U] {
	return UnitValue[U]{Value: value, Unit: unit}
}

// IntValue wraps an integral value.
func IntValue[U ~string](value int64, unit U) UnitValue[U] {
	return UnitValue[U]{Value: decimal.NewFromInt(value), Unit: unit}
}

// FloatValue wraps a float value.
func FloatValue[U ~string](value float64, unit U) UnitValue[U] {
	return UnitValue[U]{Value: decimal.NewFromFloat(value), Unit: unit}
}

func (u UnitValue[U]) String() string {
	return fmt.Sprintf("%s %s", u.Value.String(), string(u.Unit))
}

type unitValueJSON struct {
	Value json.Number `json:"value"`
	Unit  string      `json:"unit"`
}

// MarshalJSON writes the value as a JSON number without losing decimal precision.
func (u UnitValue[U]) MarshalJSON() ([]byte, error) {
	return json.Marshal(unitValueJSON{Value: json.Number(u.Value.String()), Unit: string(u.Unit)})
}

// Equal compares value numerically and unit exactly.
func (u UnitValue[U]) Equal(other UnitValue[U]) bool {
	return u.Unit == other.Unit && u.Value.Equal(other.Value)
}

type (
	MassValue        = UnitValue[MassUnit]
	LengthValue      = UnitValue[LengthUnit]
	DurationValue    = UnitValue[DurationUnit]
	EnergyValue      = UnitValue[EnergyUnit]
	PercentValue     = UnitValue[PercentUnit]
	TemperatureValue = UnitValue[TemperatureUnit]
	PressureValue    = UnitValue[PressureUnit]
	GlucoseValue     = UnitValue[GlucoseUnit]
	BMIValue         = UnitValue[BMIUnit]
	HeartRateValue   = UnitValue[HeartRateUnit]
	SpeedValue       = UnitValue[SpeedUnit]
	AngleValue       = UnitValue[AngleUnit]
)

// Package schema defines the canonical data point model produced by provider mappers.
package schema

import (
	"fmt"
	"strings"
)

// SchemaID ties a measure variant to its canonical shape and version.
type SchemaID struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

func (s SchemaID) String() string {
	return s.Namespace + ":" + s.Name + ":" + s.Version
}

// IsZero reports whether the schema id is unset.
func (s SchemaID) IsZero() bool {
	return s.Namespace == "" && s.Name == "" && s.Version == ""
}

const omhNamespace = "omh"

var (
	SchemaStepCount        = SchemaID{Namespace: omhNamespace, Name: "step-count", Version: "2.0"}
	SchemaHeartRate        = SchemaID{Namespace: omhNamespace, Name: "heart-rate", Version: "1.0"}
	SchemaSleepDuration    = SchemaID{Namespace: omhNamespace, Name: "sleep-duration", Version: "2.0"}
	SchemaSleepEpisode     = SchemaID{Namespace: omhNamespace, Name: "sleep-episode", Version: "1.0"}
	SchemaBodyWeight       = SchemaID{Namespace: omhNamespace, Name: "body-weight", Version: "1.0"}
	SchemaBodyMassIndex    = SchemaID{Namespace: omhNamespace, Name: "body-mass-index", Version: "1.0"}
	SchemaBodyHeight       = SchemaID{Namespace: omhNamespace, Name: "body-height", Version: "1.0"}
	SchemaPhysicalActivity = SchemaID{Namespace: omhNamespace, Name: "physical-activity", Version: "1.2"}
	SchemaCaloriesBurned   = SchemaID{Namespace: omhNamespace, Name: "calories-burned", Version: "2.0"}
	SchemaBloodPressure    = SchemaID{Namespace: omhNamespace, Name: "blood-pressure", Version: "1.0"}
	SchemaBloodGlucose     = SchemaID{Namespace: omhNamespace, Name: "blood-glucose", Version: "1.0"}
	SchemaOxygenSaturation = SchemaID{Namespace: omhNamespace, Name: "oxygen-saturation", Version: "1.0"}
	SchemaBodyTemperature  = SchemaID{Namespace: omhNamespace, Name: "body-temperature", Version: "2.0"}
	SchemaGeoposition      = SchemaID{Namespace: omhNamespace, Name: "geoposition", Version: "1.0"}
	SchemaSpeed            = SchemaID{Namespace: omhNamespace, Name: "speed", Version: "1.0"}
)

// MeasureType is the request and configuration key for a kind of measure.
type MeasureType string

const (
	MeasureStepCount        MeasureType = "step_count"
	MeasureHeartRate        MeasureType = "heart_rate"
	MeasureSleepDuration    MeasureType = "sleep_duration"
	MeasureSleepEpisode     MeasureType = "sleep_episode"
	MeasureBodyWeight       MeasureType = "body_weight"
	MeasureBodyMassIndex    MeasureType = "body_mass_index"
	MeasureBodyHeight       MeasureType = "body_height"
	MeasurePhysicalActivity MeasureType = "physical_activity"
	MeasureCaloriesBurned   MeasureType = "calories_burned"
	MeasureBloodPressure    MeasureType = "blood_pressure"
	MeasureBloodGlucose     MeasureType = "blood_glucose"
	MeasureOxygenSaturation MeasureType = "oxygen_saturation"
	MeasureBodyTemperature  MeasureType = "body_temperature"
	MeasureGeoposition      MeasureType = "geoposition"
	MeasureSpeed            MeasureType = "speed"
)

var measureSchemas = map[MeasureType]SchemaID{
	MeasureStepCount:        SchemaStepCount,
	MeasureHeartRate:        SchemaHeartRate,
	MeasureSleepDuration:    SchemaSleepDuration,
	MeasureSleepEpisode:     SchemaSleepEpisode,
	MeasureBodyWeight:       SchemaBodyWeight,
	MeasureBodyMassIndex:    SchemaBodyMassIndex,
	MeasureBodyHeight:       SchemaBodyHeight,
	MeasurePhysicalActivity: SchemaPhysicalActivity,
	MeasureCaloriesBurned:   SchemaCaloriesBurned,
	MeasureBloodPressure:    SchemaBloodPressure,
	MeasureBloodGlucose:     SchemaBloodGlucose,
	MeasureOxygenSaturation: SchemaOxygenSaturation,
	MeasureBodyTemperature:  SchemaBodyTemperature,
	MeasureGeoposition:      SchemaGeoposition,
	MeasureSpeed:            SchemaSpeed,
}

// ParseMeasureType normalises user input such as "Step-Count" into a known measure type.
func ParseMeasureType(raw string) (MeasureType, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	mt := MeasureType(key)
	if _, ok := measureSchemas[mt]; !ok {
		return "", fmt.Errorf("unknown measure type %q", raw)
	}
	return mt, nil
}

// Schema returns the canonical schema id produced for the measure type.
func (m MeasureType) Schema() (SchemaID, bool) {
	id, ok := measureSchemas[m]
	return id, ok
}

// Modality describes whether a measure was device-sensed or self-reported.
type Modality string

const (
	// ModalityUnset is the correct value when a provider gives no usable signal.
	ModalityUnset        Modality = ""
	ModalitySensed       Modality = "sensed"
	ModalitySelfReported Modality = "self-reported"
)

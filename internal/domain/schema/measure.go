package schema

// Measure is the closed set of canonical measure bodies. Consumers switch on
// SchemaID() or on the concrete type.
type Measure interface {
	SchemaID() SchemaID
	EffectiveTimeFrame() (TimeFrame, bool)
	isMeasure()
}

// Common holds the fields every measure shares.
type Common struct {
	TimeFrame  *TimeFrame  `json:"effective_time_frame,omitempty"`
	UserNotes  string      `json:"user_notes,omitempty"`
	Additional *Properties `json:"additional_properties,omitempty"`
}

func (Common) isMeasure() {}

// EffectiveTimeFrame returns the frame the measure applies to, if the provider supplied one.
func (c Common) EffectiveTimeFrame() (TimeFrame, bool) {
	if c.TimeFrame == nil {
		return TimeFrame{}, false
	}
	return *c.TimeFrame, true
}

// WithTimeFrame returns a pointer suitable for Common.TimeFrame.
func WithTimeFrame(f TimeFrame) *TimeFrame {
	if f.IsZero() {
		return nil
	}
	return &f
}

type StepCount struct {
	Common
	Steps int64 `json:"step_count"`
}

func (StepCount) SchemaID() SchemaID { return SchemaStepCount }

// TemporalRelationshipToActivity qualifies a heart rate reading.
type TemporalRelationshipToActivity string

const (
	AtRest            TemporalRelationshipToActivity = "at rest"
	DuringExercise    TemporalRelationshipToActivity = "during exercise"
	AfterExercise     TemporalRelationshipToActivity = "after exercise"
	BeforeExercise    TemporalRelationshipToActivity = "before exercise"
	ActiveUnspecified TemporalRelationshipToActivity = "active"
)

type HeartRate struct {
	Common
	Rate                   HeartRateValue                 `json:"heart_rate"`
	RelationshipToActivity TemporalRelationshipToActivity `json:"temporal_relationship_to_physical_activity,omitempty"`
}

func (HeartRate) SchemaID() SchemaID { return SchemaHeartRate }

type SleepDuration struct {
	Common
	Duration DurationValue `json:"sleep_duration"`
}

func (SleepDuration) SchemaID() SchemaID { return SchemaSleepDuration }

type SleepEpisode struct {
	Common
	TotalSleepTime             *DurationValue `json:"total_sleep_time,omitempty"`
	LatencyToSleepOnset        *DurationValue `json:"latency_to_sleep_onset,omitempty"`
	LatencyToArising           *DurationValue `json:"latency_to_arising,omitempty"`
	WakeCount                  *int64         `json:"number_of_awakenings,omitempty"`
	MainSleep                  *bool          `json:"is_main_sleep,omitempty"`
	SleepMaintenanceEfficiency *PercentValue  `json:"sleep_maintenance_efficiency_percentage,omitempty"`
}

func (SleepEpisode) SchemaID() SchemaID { return SchemaSleepEpisode }

type BodyWeight struct {
	Common
	Weight MassValue `json:"body_weight"`
}

func (BodyWeight) SchemaID() SchemaID { return SchemaBodyWeight }

type BodyMassIndex struct {
	Common
	Index BMIValue `json:"body_mass_index"`
}

func (BodyMassIndex) SchemaID() SchemaID { return SchemaBodyMassIndex }

type BodyHeight struct {
	Common
	Height LengthValue `json:"body_height"`
}

func (BodyHeight) SchemaID() SchemaID { return SchemaBodyHeight }

// Intensity is the self-reported or derived intensity of an activity.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

type PhysicalActivity struct {
	Common
	ActivityName      string       `json:"activity_name"`
	Distance          *LengthValue `json:"distance,omitempty"`
	CaloriesBurned    *EnergyValue `json:"kcal_burned,omitempty"`
	ReportedIntensity Intensity    `json:"reported_activity_intensity,omitempty"`
}

func (PhysicalActivity) SchemaID() SchemaID { return SchemaPhysicalActivity }

type CaloriesBurned struct {
	Common
	Energy       EnergyValue `json:"kcal_burned"`
	ActivityName string      `json:"activity_name,omitempty"`
}

func (CaloriesBurned) SchemaID() SchemaID { return SchemaCaloriesBurned }

type BloodPressure struct {
	Common
	Systolic  PressureValue `json:"systolic_blood_pressure"`
	Diastolic PressureValue `json:"diastolic_blood_pressure"`
}

func (BloodPressure) SchemaID() SchemaID { return SchemaBloodPressure }

// TemporalRelationshipToMeal qualifies a blood glucose reading.
type TemporalRelationshipToMeal string

const (
	Fasting         TemporalRelationshipToMeal = "fasting"
	NotFasting      TemporalRelationshipToMeal = "not fasting"
	BeforeMeal      TemporalRelationshipToMeal = "before meal"
	AfterMeal       TemporalRelationshipToMeal = "after meal"
	BeforeBreakfast TemporalRelationshipToMeal = "before breakfast"
	AfterBreakfast  TemporalRelationshipToMeal = "after breakfast"
	BeforeLunch     TemporalRelationshipToMeal = "before lunch"
	AfterLunch      TemporalRelationshipToMeal = "after lunch"
	BeforeDinner    TemporalRelationshipToMeal = "before dinner"
	AfterDinner     TemporalRelationshipToMeal = "after dinner"
	BeforeSleeping  TemporalRelationshipToMeal = "before sleeping"
)

type BloodGlucose struct {
	Common
	Glucose            GlucoseValue               `json:"blood_glucose"`
	SpecimenSource     string                     `json:"specimen_source,omitempty"`
	RelationshipToMeal TemporalRelationshipToMeal `json:"temporal_relationship_to_meal,omitempty"`
}

func (BloodGlucose) SchemaID() SchemaID { return SchemaBloodGlucose }

type OxygenSaturation struct {
	Common
	Saturation PercentValue `json:"oxygen_saturation"`
}

func (OxygenSaturation) SchemaID() SchemaID { return SchemaOxygenSaturation }

type BodyTemperature struct {
	Common
	Temperature TemperatureValue `json:"body_temperature"`
}

func (BodyTemperature) SchemaID() SchemaID { return SchemaBodyTemperature }

type Geoposition struct {
	Common
	Latitude  AngleValue   `json:"latitude"`
	Longitude AngleValue   `json:"longitude"`
	Elevation *LengthValue `json:"elevation,omitempty"`
}

func (Geoposition) SchemaID() SchemaID { return SchemaGeoposition }

type Speed struct {
	Common
	Speed SpeedValue `json:"speed"`
}

func (Speed) SchemaID() SchemaID { return SchemaSpeed }

package provider

import (
	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/mapping/fitbit"
	"github.com/coachpo/shimmer/internal/mapping/googlefit"
	"github.com/coachpo/shimmer/internal/mapping/ihealth"
	"github.com/coachpo/shimmer/internal/mapping/jawbone"
	"github.com/coachpo/shimmer/internal/mapping/microsoft"
	"github.com/coachpo/shimmer/internal/mapping/misfit"
	"github.com/coachpo/shimmer/internal/mapping/moves"
	"github.com/coachpo/shimmer/internal/mapping/runkeeper"
	"github.com/coachpo/shimmer/internal/mapping/withings"
	"github.com/coachpo/shimmer/internal/pagination"
)

// Builtin returns a registry holding every supported provider. Client
// credentials are empty until ApplyOverrides fills them from configuration.
func Builtin() *Registry {
	reg := NewRegistry()
	for _, def := range []*Definition{
		fitbitDefinition(),
		misfitDefinition(),
		jawboneDefinition(),
		ihealthDefinition(),
		withingsDefinition(),
		googleFitDefinition(),
		runkeeperDefinition(),
		movesDefinition(),
		microsoftDefinition(),
	} {
		reg.Register(def)
	}
	return reg
}

func fitbitDefinition() *Definition {
	ranged := func(resource string) Endpoint {
		return Endpoint{URITemplate: "/1/user/-/" + resource + "/date/{startDate}/{endDate}.json", RangeQuery: true}
	}
	daily := func(resource string) Endpoint {
		return Endpoint{URITemplate: "/1/user/-/" + resource + "/date/{date}.json"}
	}
	intraday := func(resource string) Endpoint {
		return Endpoint{URITemplate: "/1/user/-/" + resource + "/date/{date}/1d/1min.json"}
	}
	return &Definition{
		Key:         fitbit.Provider,
		DisplayName: "Fitbit",
		SourceName:  fitbit.SourceName,
		BaseURL:     "https://api.fitbit.com",
		Profile:     &Endpoint{URITemplate: "/1/user/-/profile.json"},
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureBodyWeight:       ranged("body/log/weight"),
			schema.MeasureBodyMassIndex:    ranged("body/log/weight"),
			schema.MeasureStepCount:        ranged("activities/steps"),
			schema.MeasureHeartRate:        ranged("activities/heart"),
			schema.MeasurePhysicalActivity: daily("activities"),
			schema.MeasureSleepDuration:    daily("sleep"),
			schema.MeasureSleepEpisode:     daily("sleep"),
		},
		FineEndpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureStepCount: intraday("activities/steps"),
			schema.MeasureHeartRate: intraday("activities/heart"),
		},
		Mappers:     fitbit.Specs(),
		FineMappers: fitbit.IntradaySpecs(),
		WrapRawDays: true,
		Auth: AuthSettings{
			TokenURL:  "https://api.fitbit.com/oauth2/token",
			Scopes:    []string{"activity", "heartrate", "profile", "sleep", "weight"},
			Placement: TokenInHeader,
		},
	}
}

func misfitDefinition() *Definition {
	activity := func(resource string) Endpoint {
		return Endpoint{
			URITemplate: "/move/resource/v1/user/me/activity/" + resource,
			Query:       map[string]string{"start_date": "{startDate}", "end_date": "{endDate}", "detail": "true"},
			RangeQuery:  true,
		}
	}
	return &Definition{
		Key:         misfit.Provider,
		DisplayName: "Misfit",
		SourceName:  misfit.SourceName,
		BaseURL:     "https://api.misfitwearables.com",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasurePhysicalActivity: activity("sessions"),
			schema.MeasureSleepDuration:    activity("sleeps"),
			schema.MeasureSleepEpisode:     activity("sleeps"),
			schema.MeasureStepCount:        activity("summary"),
		},
		Mappers: misfit.Specs(),
		Auth: AuthSettings{
			TokenURL:  "https://api.misfitwearables.com/auth/tokens/exchange",
			Scopes:    []string{"public", "birthday", "email"},
			Placement: TokenInHeader,
		},
	}
}

func jawboneDefinition() *Definition {
	next := pagination.Settings{
		Strategy:      pagination.StrategyURI,
		Location:      pagination.LocationBody,
		ResponseField: "data.links.next",
		BaseURI:       "https://jawbone.com",
	}
	resource := func(name string) Endpoint {
		return Endpoint{
			URITemplate: "/nudge/api/v.1.1/users/@me/" + name,
			Query:       map[string]string{"start_time": "{startEpoch}", "end_time": "{endEpoch}", "limit": "100"},
			Pagination:  next,
			RangeQuery:  true,
		}
	}
	return &Definition{
		Key:         jawbone.Provider,
		DisplayName: "Jawbone UP",
		SourceName:  jawbone.SourceName,
		BaseURL:     "https://jawbone.com",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureStepCount:        resource("moves"),
			schema.MeasureHeartRate:        resource("heartrates"),
			schema.MeasureSleepDuration:    resource("sleeps"),
			schema.MeasurePhysicalActivity: resource("workouts"),
			schema.MeasureBodyWeight:       resource("body_events"),
			schema.MeasureBodyMassIndex:    resource("body_events"),
		},
		Mappers: jawbone.Specs(),
		Auth: AuthSettings{
			TokenURL:  "https://jawbone.com/auth/oauth2/token",
			Scopes:    []string{"extended_read", "weight_read", "heartrate_read", "move_read", "sleep_read"},
			Placement: TokenInHeader,
		},
	}
}

func ihealthDefinition() *Definition {
	next := pagination.Settings{
		Strategy:      pagination.StrategyURI,
		Location:      pagination.LocationBody,
		ResponseField: "NextPageUrl",
	}
	resource := func(name string) Endpoint {
		return Endpoint{
			URITemplate: "/openapiv2/user/{vendorUserId}/" + name + ".json",
			Query: map[string]string{
				"client_id":     "{clientId}",
				"client_secret": "{clientSecret}",
				"start_time":    "{startEpoch}",
				"end_time":      "{endEpoch}",
				"locale":        "default",
			},
			Pagination: next,
			RangeQuery: true,
		}
	}
	return &Definition{
		Key:         ihealth.Provider,
		DisplayName: "iHealth",
		SourceName:  ihealth.SourceName,
		BaseURL:     "https://api.ihealthlabs.com:8443",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureStepCount:        resource("activity"),
			schema.MeasureBloodPressure:    resource("bp"),
			schema.MeasureHeartRate:        resource("bp"),
			schema.MeasureBloodGlucose:     resource("glucose"),
			schema.MeasureBodyWeight:       resource("weight"),
			schema.MeasureBodyMassIndex:    resource("weight"),
			schema.MeasureSleepDuration:    resource("sleep"),
			schema.MeasurePhysicalActivity: resource("sport"),
			schema.MeasureOxygenSaturation: resource("spo2"),
		},
		Mappers: ihealth.Specs(),
		Auth: AuthSettings{
			TokenURL:   "https://api.ihealthlabs.com:8443/OpenApiV2/OAuthv2/userauthorization/",
			Scopes:     []string{"OpenApiActivity", "OpenApiBG", "OpenApiBP", "OpenApiSleep", "OpenApiSpO2", "OpenApiSport", "OpenApiWeight"},
			Placement:  TokenInQuery,
			TokenParam: "access_token",
		},
	}
}

func withingsDefinition() *Definition {
	measures := Endpoint{
		URITemplate: "/measure",
		Query:       map[string]string{"action": "getmeas", "category": "1", "startdate": "{startEpoch}", "enddate": "{endEpoch}"},
		RangeQuery:  true,
	}
	activity := Endpoint{
		URITemplate: "/v2/measure",
		Query:       map[string]string{"action": "getactivity", "startdateymd": "{startDate}", "enddateymd": "{endDate}"},
		RangeQuery:  true,
	}
	sleep := Endpoint{
		URITemplate: "/v2/sleep",
		Query:       map[string]string{"action": "getsummary", "startdateymd": "{startDate}", "enddateymd": "{endDate}"},
		RangeQuery:  true,
	}
	intraday := Endpoint{
		URITemplate: "/v2/measure",
		Query:       map[string]string{"action": "getintradayactivity", "startdate": "{startEpoch}", "enddate": "{endEpoch}"},
	}
	return &Definition{
		Key:         withings.Provider,
		DisplayName: "Withings",
		SourceName:  withings.SourceName,
		BaseURL:     "https://wbsapi.withings.net",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureBodyWeight:       measures,
			schema.MeasureBodyHeight:       measures,
			schema.MeasureBloodPressure:    measures,
			schema.MeasureHeartRate:        measures,
			schema.MeasureBodyTemperature:  measures,
			schema.MeasureOxygenSaturation: measures,
			schema.MeasureStepCount:        activity,
			schema.MeasureCaloriesBurned:   activity,
			schema.MeasureSleepDuration:    sleep,
			schema.MeasureSleepEpisode:     sleep,
		},
		FineEndpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureStepCount:      intraday,
			schema.MeasureCaloriesBurned: intraday,
		},
		Mappers:     withings.Specs(),
		FineMappers: withings.IntradaySpecs(),
		Auth: AuthSettings{
			TokenURL:  "https://wbsapi.withings.net/v2/oauth2",
			Scopes:    []string{"user.info", "user.metrics", "user.activity"},
			Placement: TokenInHeader,
		},
	}
}

var googleFitStreams = map[schema.MeasureType]string{
	schema.MeasureStepCount:        "derived:com.google.step_count.delta:com.google.android.gms:estimated_steps",
	schema.MeasureHeartRate:        "derived:com.google.heart_rate.bpm:com.google.android.gms:merge_heart_rate_bpm",
	schema.MeasureBodyWeight:       "derived:com.google.weight:com.google.android.gms:merge_weight",
	schema.MeasureBodyHeight:       "derived:com.google.height:com.google.android.gms:merge_height",
	schema.MeasurePhysicalActivity: "derived:com.google.activity.segment:com.google.android.gms:merge_activity_segments",
	schema.MeasureCaloriesBurned:   "derived:com.google.calories.expended:com.google.android.gms:merge_calories_expended",
	schema.MeasureSpeed:            "derived:com.google.speed:com.google.android.gms:merge_speed",
	schema.MeasureGeoposition:      "derived:com.google.location.sample:com.google.android.gms:merge_location_samples",
}

func googleFitDefinition() *Definition {
	endpoints := make(map[schema.MeasureType]Endpoint, len(googleFitStreams))
	for measure, stream := range googleFitStreams {
		endpoints[measure] = Endpoint{
			URITemplate: "/fitness/v1/users/me/dataSources/" + stream + "/datasets/{startNanos}-{endNanos}",
			Pagination: pagination.Settings{
				Strategy:      pagination.StrategyToken,
				Location:      pagination.LocationBody,
				ResponseField: "nextPageToken",
				ParameterName: "pageToken",
				ParameterIn:   pagination.ParameterQuery,
			},
			RangeQuery: true,
		}
	}
	return &Definition{
		Key:         googlefit.Provider,
		DisplayName: "Google Fit",
		SourceName:  googlefit.SourceName,
		BaseURL:     "https://www.googleapis.com",
		Endpoints:   endpoints,
		Mappers:     googlefit.Specs(),
		Auth: AuthSettings{
			TokenURL: "https://oauth2.googleapis.com/token",
			Scopes: []string{
				"https://www.googleapis.com/auth/fitness.activity.read",
				"https://www.googleapis.com/auth/fitness.body.read",
				"https://www.googleapis.com/auth/fitness.location.read",
			},
			Placement: TokenInHeader,
		},
	}
}

func runkeeperDefinition() *Definition {
	feed := Endpoint{
		URITemplate: "/fitnessActivities",
		Query:       map[string]string{"noEarlierThan": "{startDate}", "noLaterThan": "{endDate}", "pageSize": "25"},
		Header:      map[string]string{"Accept": "application/vnd.com.runkeeper.FitnessActivityFeed+json"},
		Pagination: pagination.Settings{
			Strategy:      pagination.StrategyURI,
			Location:      pagination.LocationBody,
			ResponseField: "next",
			BaseURI:       "https://api.runkeeper.com",
		},
		RangeQuery: true,
	}
	return &Definition{
		Key:         runkeeper.Provider,
		DisplayName: "Runkeeper",
		SourceName:  runkeeper.SourceName,
		BaseURL:     "https://api.runkeeper.com",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasurePhysicalActivity: feed,
			schema.MeasureCaloriesBurned:   feed,
		},
		Mappers: runkeeper.Specs(),
		Auth: AuthSettings{
			TokenURL:  "https://runkeeper.com/apps/token",
			Placement: TokenInHeader,
		},
	}
}

func movesDefinition() *Definition {
	storyline := Endpoint{
		URITemplate: "/user/storyline/daily",
		Query:       map[string]string{"from": "{startDate}", "to": "{endDate}", "trackPoints": "false"},
		RangeQuery:  true,
	}
	return &Definition{
		Key:         moves.Provider,
		DisplayName: "Moves",
		SourceName:  moves.SourceName,
		BaseURL:     "https://api.moves-app.com/api/1.1",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasurePhysicalActivity: storyline,
			schema.MeasureStepCount:        storyline,
		},
		Mappers: moves.Specs(),
		Auth: AuthSettings{
			TokenURL:  "https://api.moves-app.com/oauth/v1/access_token",
			Scopes:    []string{"activity", "location"},
			Placement: TokenInHeader,
		},
	}
}

func microsoftDefinition() *Definition {
	// nextPage carries a complete URI.
	next := pagination.Settings{
		Strategy:      pagination.StrategyURI,
		Location:      pagination.LocationBody,
		ResponseField: "nextPage",
	}
	daily := Endpoint{
		URITemplate: "/Summaries/Daily",
		Query:       map[string]string{"startTime": "{startTime}", "endTime": "{endTime}"},
		Pagination:  next,
		RangeQuery:  true,
	}
	activities := func(types string) Endpoint {
		return Endpoint{
			URITemplate: "/Activities",
			Query:       map[string]string{"startTime": "{startTime}", "endTime": "{endTime}", "activityTypes": types},
			Pagination:  next,
			RangeQuery:  true,
		}
	}
	return &Definition{
		Key:         microsoft.Provider,
		DisplayName: "Microsoft Health",
		SourceName:  microsoft.SourceName,
		BaseURL:     "https://api.microsofthealth.net/v1/me",
		Endpoints: map[schema.MeasureType]Endpoint{
			schema.MeasureStepCount:        daily,
			schema.MeasureHeartRate:        daily,
			schema.MeasureCaloriesBurned:   daily,
			schema.MeasurePhysicalActivity: activities("Run,Bike,FreePlay,Golf,GuidedWorkout,Hike"),
			schema.MeasureSleepDuration:    activities("Sleep"),
		},
		Mappers: microsoft.Specs(),
		Auth: AuthSettings{
			TokenURL: "https://login.live.com/oauth20_token.srf",
			Scopes: []string{
				"mshealth.ReadDevices",
				"mshealth.ReadActivityHistory",
				"mshealth.ReadActivityLocation",
				"offline_access",
			},
			Placement: TokenInHeader,
		},
	}
}

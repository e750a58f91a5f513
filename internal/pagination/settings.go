// Package pagination drives a provider through the round trips needed to exhaust a result set.
package pagination

import (
	"strings"

	"github.com/coachpo/shimmer/errs"
)

// Strategy selects how continuation values are discovered and re-submitted.
type Strategy string

const (
	StrategyNone   Strategy = "none"
	StrategyURI    Strategy = "uri"
	StrategyToken  Strategy = "token"
	StrategyManual Strategy = "manual"
)

// Location is where a continuation value lives in a response.
type Location string

const (
	LocationBody   Location = "body"
	LocationHeader Location = "header"
)

// ParameterIn is where a continuation token is re-submitted.
type ParameterIn string

const (
	ParameterQuery ParameterIn = "query"
	ParameterPath  ParameterIn = "path"
)

// OffsetType controls how a manual offset is rendered into the request.
type OffsetType string

const (
	// OffsetRaw sends the running element offset.
	OffsetRaw OffsetType = "raw"
	// OffsetPage sends offset/limit + PageStart.
	OffsetPage OffsetType = "page"
)

// EndCriteria decides when manual pagination is exhausted.
type EndCriteria string

const (
	EndEmptyResponse       EndCriteria = "EMPTY_RESPONSE"
	EndEmptyOrMissingField EndCriteria = "EMPTY_OR_MISSING_FIELD"
	EndExplicitlyIndicated EndCriteria = "EXPLICITLY_INDICATED"
)

// ArbitrarilyLargeLimit replaces a declared default page size when no maximum is configured.
const ArbitrarilyLargeLimit = "10000"

// Settings is the pagination part of an endpoint configuration.
type Settings struct {
	Strategy        Strategy    `yaml:"strategy"`
	Location        Location    `yaml:"location"`
	ResponseField   string      `yaml:"responseField"`
	BaseURI         string      `yaml:"baseUri"`
	ParameterName   string      `yaml:"parameterName"`
	ParameterIn     ParameterIn `yaml:"parameterIn"`
	Encoded         bool        `yaml:"encoded"`
	OffsetParameter string      `yaml:"offsetParameter"`
	OffsetType      OffsetType  `yaml:"offsetType"`
	PageStart       int64       `yaml:"pageStart"`
	EndCriteria     EndCriteria `yaml:"endCriteria"`
	EndField        string      `yaml:"endField"`
	LimitParameter  string      `yaml:"limitParameter"`
	LimitDefault    string      `yaml:"limitDefault"`
	LimitMax        string      `yaml:"limitMax"`
}

// EffectiveStrategy treats an empty strategy as none.
func (s Settings) EffectiveStrategy() Strategy {
	if strings.TrimSpace(string(s.Strategy)) == "" {
		return StrategyNone
	}
	return Strategy(strings.ToLower(strings.TrimSpace(string(s.Strategy))))
}

// CompleteURI reports whether a uri-strategy continuation replaces the whole request.
func (s Settings) CompleteURI() bool {
	return strings.TrimSpace(s.BaseURI) == ""
}

// Validate reports the first configuration field the strategy needs but lacks.
func (s Settings) Validate() error {
	missing := func(field string) error {
		return errs.Configuration("", "pagination "+field+" required for "+string(s.EffectiveStrategy())+" strategy",
			errs.WithField("field", field),
			errs.WithRemediation("declare "+field+" in the endpoint pagination settings"))
	}
	switch s.EffectiveStrategy() {
	case StrategyNone:
	case StrategyURI:
		if strings.TrimSpace(s.ResponseField) == "" {
			return missing("responseField")
		}
	case StrategyToken:
		if strings.TrimSpace(s.ResponseField) == "" {
			return missing("responseField")
		}
		if strings.TrimSpace(s.ParameterName) == "" {
			return missing("parameterName")
		}
	case StrategyManual:
		if strings.TrimSpace(s.OffsetParameter) == "" {
			return missing("offsetParameter")
		}
		switch s.EndCriteria {
		case EndEmptyResponse:
		case EndEmptyOrMissingField, EndExplicitlyIndicated:
			if strings.TrimSpace(s.EndField) == "" {
				return missing("endField")
			}
		case "":
			return missing("endCriteria")
		default:
			return errs.Configuration("", "unknown pagination end criteria "+string(s.EndCriteria))
		}
		// An explicit end marker says nothing about how many records a page held,
		// so the offset can only advance by a declared page size.
		if (s.OffsetType == OffsetPage || s.EndCriteria == EndExplicitlyIndicated) && strings.TrimSpace(s.limit()) == "" {
			return missing("limitDefault")
		}
	default:
		return errs.Configuration("", "unknown pagination strategy "+string(s.Strategy))
	}
	if strings.TrimSpace(s.LimitDefault) != "" && strings.TrimSpace(s.LimitParameter) == "" {
		return missing("limitParameter")
	}
	switch s.Location {
	case "", LocationBody, LocationHeader:
	default:
		return errs.Configuration("", "unknown pagination location "+string(s.Location))
	}
	switch s.ParameterIn {
	case "", ParameterQuery, ParameterPath:
	default:
		return errs.Configuration("", "unknown pagination parameter placement "+string(s.ParameterIn))
	}
	return nil
}

// limit is the page size actually sent once the limit override applies.
func (s Settings) limit() string {
	if strings.TrimSpace(s.LimitDefault) == "" {
		return ""
	}
	if maximum := strings.TrimSpace(s.LimitMax); maximum != "" {
		return maximum
	}
	return ArbitrarilyLargeLimit
}

package pagination

import (
	"net/url"
	"strings"

	"github.com/coachpo/shimmer/errs"
	"github.com/coachpo/shimmer/internal/jsonnode"
)

// Process derives the status that follows prev from one response.
func Process(settings Settings, resp Response, prev Status) (Status, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if prev == nil {
		prev = Initial(settings)
	}
	switch settings.EffectiveStrategy() {
	case StrategyURI:
		return URIStatus{Next: continuation(settings, resp, true)}, nil
	case StrategyToken:
		token := continuation(settings, resp, false)
		if token != "" && settings.Encoded {
			decoded, err := url.QueryUnescape(token)
			if err != nil {
				return nil, errs.PageMapping("", "continuation token is not valid percent-encoding",
					errs.WithField("field", settings.ResponseField), errs.WithCause(err))
			}
			token = decoded
		}
		return TokenStatus{Token: token}, nil
	case StrategyManual:
		manual, ok := prev.(ManualStatus)
		if !ok {
			return nil, errs.Configuration("", "pagination status "+string(prev.Strategy())+" does not match manual strategy")
		}
		return nextManual(settings, resp.Body, manual), nil
	default:
		return None{}, nil
	}
}

// continuation reads the configured field from the header or the body.
func continuation(settings Settings, resp Response, joinHeaders bool) string {
	if settings.Location == LocationHeader {
		values := resp.Header.Values(settings.ResponseField)
		if len(values) == 0 {
			return ""
		}
		if joinHeaders {
			return strings.TrimSpace(strings.Join(values, ","))
		}
		return strings.TrimSpace(values[0])
	}
	value, ok := resp.Body.Get(settings.ResponseField).String()
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func nextManual(settings Settings, body jsonnode.Node, prev ManualStatus) ManualStatus {
	more := manualHasMore(settings, body)
	step := prev.PageSize
	if step <= 0 {
		step = int64(elements(settings, body).Len())
	}
	if step <= 0 {
		more = false
	}
	return ManualStatus{Offset: prev.Offset + step, PageSize: prev.PageSize, More: more}
}

func manualHasMore(settings Settings, body jsonnode.Node) bool {
	switch settings.EndCriteria {
	case EndEmptyResponse:
		return elements(settings, body).Len() > 0
	case EndEmptyOrMissingField:
		return !body.Get(settings.EndField).IsEmpty()
	case EndExplicitlyIndicated:
		return body.Get(settings.EndField).IsNull()
	default:
		return false
	}
}

// elements is the node whose size drives manual pagination.
func elements(settings Settings, body jsonnode.Node) jsonnode.Node {
	if settings.EndField != "" {
		return body.Get(settings.EndField)
	}
	return body
}

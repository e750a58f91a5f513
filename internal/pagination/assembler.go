package pagination

import (
	"net/url"
	"strings"

	"github.com/coachpo/shimmer/errs"
)

// Assemble merges the continuation carried by status into a copy of base.
// It is pure: the same settings, base and status always yield the same request.
func Assemble(settings Settings, base Request, status Status) (Request, error) {
	if err := settings.Validate(); err != nil {
		return Request{}, err
	}
	if status == nil {
		status = Initial(settings)
	}
	if status.Strategy() != settings.EffectiveStrategy() {
		return Request{}, errs.Configuration("", "pagination status "+string(status.Strategy())+
			" does not match endpoint strategy "+string(settings.EffectiveStrategy()))
	}

	req := base.Clone()
	if req.Query == nil {
		req.Query = url.Values{}
	}
	if limit := settings.limit(); limit != "" {
		req.Query.Set(settings.LimitParameter, limit)
	}

	switch typed := status.(type) {
	case URIStatus:
		if !typed.HasMoreData() {
			return req, nil
		}
		if settings.CompleteURI() {
			return Request{Method: req.Method, Header: req.Header, CompleteURI: typed.Next}, nil
		}
		return Request{
			Method:      req.Method,
			Header:      req.Header,
			CompleteURI: joinURI(settings.BaseURI, typed.Next),
		}, nil
	case TokenStatus:
		if !typed.HasMoreData() {
			return req, nil
		}
		if settings.ParameterIn == ParameterPath {
			if req.PathParams == nil {
				req.PathParams = map[string]string{}
			}
			req.PathParams[settings.ParameterName] = typed.Token
			return req, nil
		}
		req.Query.Set(settings.ParameterName, typed.Token)
	case ManualStatus:
		req.Query.Set(settings.OffsetParameter, manualOffset(settings, typed))
	case None:
	}
	return req, nil
}

// manualOffset renders the offset either raw or as a page number.
func manualOffset(settings Settings, status ManualStatus) string {
	if settings.OffsetType != OffsetPage {
		return formatInt(status.Offset)
	}
	limit := parseInt(settings.limit())
	if limit <= 0 {
		return formatInt(settings.PageStart)
	}
	return formatInt(status.Offset/limit + settings.PageStart)
}

func joinURI(base, fragment string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(fragment, "/") {
		return base + strings.TrimPrefix(fragment, "/")
	}
	return base + fragment
}

package pagination

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/coachpo/shimmer/internal/jsonnode"
)

// Request is an outbound request before authentication is attached.
type Request struct {
	Method      string
	URITemplate string
	PathParams  map[string]string
	Query       url.Values
	Header      http.Header
	// CompleteURI, when set, is sent verbatim and ignores every other field except Method and Header.
	CompleteURI string
}

// Clone deep copies the request so assembly never mutates its input.
func (r Request) Clone() Request {
	out := r
	if r.PathParams != nil {
		out.PathParams = make(map[string]string, len(r.PathParams))
		for k, v := range r.PathParams {
			out.PathParams[k] = v
		}
	}
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	return out
}

// URL expands {name} placeholders and appends the encoded query.
func (r Request) URL() string {
	if r.CompleteURI != "" {
		return r.CompleteURI
	}
	expanded := r.URITemplate
	if len(r.PathParams) > 0 {
		names := make([]string, 0, len(r.PathParams))
		for name := range r.PathParams {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, 0, 2*len(names))
		for _, name := range names {
			pairs = append(pairs, "{"+name+"}", url.PathEscape(r.PathParams[name]))
		}
		expanded = strings.NewReplacer(pairs...).Replace(expanded)
	}
	if len(r.Query) == 0 {
		return expanded
	}
	sep := "?"
	if strings.Contains(expanded, "?") {
		sep = "&"
	}
	return expanded + sep + r.Query.Encode()
}

// Response is what the transport hands back for one page.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       jsonnode.Node
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func parseInt(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

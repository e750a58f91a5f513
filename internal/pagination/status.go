package pagination

// Status carries whether more data exists and the continuation value needed to fetch it.
// A status is created per logical request, replaced after every response, and dropped
// once HasMoreData reports false.
type Status interface {
	Strategy() Strategy
	HasMoreData() bool
	Value() (string, bool)
	isStatus()
}

// None is the status of endpoints that return everything in one response.
type None struct{}

func (None) Strategy() Strategy    { return StrategyNone }
func (None) HasMoreData() bool     { return false }
func (None) Value() (string, bool) { return "", false }
func (None) isStatus()             {}

// URIStatus holds a next-page URL or fragment.
type URIStatus struct {
	Next string
}

func (URIStatus) Strategy() Strategy      { return StrategyURI }
func (s URIStatus) HasMoreData() bool     { return s.Next != "" }
func (s URIStatus) Value() (string, bool) { return s.Next, s.Next != "" }
func (URIStatus) isStatus()               {}

// TokenStatus holds an opaque continuation token.
type TokenStatus struct {
	Token string
}

func (TokenStatus) Strategy() Strategy      { return StrategyToken }
func (s TokenStatus) HasMoreData() bool     { return s.Token != "" }
func (s TokenStatus) Value() (string, bool) { return s.Token, s.Token != "" }
func (TokenStatus) isStatus()               {}

// ManualStatus tracks a client-side offset.
type ManualStatus struct {
	Offset   int64
	PageSize int64
	More     bool
}

func (ManualStatus) Strategy() Strategy  { return StrategyManual }
func (s ManualStatus) HasMoreData() bool { return s.More }

// Value returns the offset the next request should start from.
func (s ManualStatus) Value() (string, bool) { return formatInt(s.Offset), true }

func (ManualStatus) isStatus() {}

// Initial returns the empty status for the first page of a logical request.
func Initial(settings Settings) Status {
	switch settings.EffectiveStrategy() {
	case StrategyURI:
		return URIStatus{}
	case StrategyToken:
		return TokenStatus{}
	case StrategyManual:
		return ManualStatus{PageSize: parseInt(settings.limit())}
	default:
		return None{}
	}
}

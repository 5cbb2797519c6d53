package recurrence

// DefaultMaxSkipIterations bounds how far Resolve walks forward past
// skipped days before giving up.
const DefaultMaxSkipIterations = 100

// DefaultMaxPreview caps the number of dates Preview returns.
const DefaultMaxPreview = 366

// Params defines the tunable limits of the recurrence engine
type Params struct {
	// MaxSkipIterations is the number of one-day advances Resolve may make.
	MaxSkipIterations int

	// MaxPreview is the largest n accepted by Preview.
	MaxPreview int
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance
type ParamsConfig struct {
	MaxSkipIterations int
	MaxPreview        int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MaxSkipIterations: DefaultMaxSkipIterations,
		MaxPreview:        DefaultMaxPreview,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Zero or negative values keep the defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MaxSkipIterations > 0 {
		params.MaxSkipIterations = config.MaxSkipIterations
	}
	if config.MaxPreview > 0 {
		params.MaxPreview = config.MaxPreview
	}

	return params
}

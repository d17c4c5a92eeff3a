package permission

import "errors"

// LoadState is the loading phase of a user's permission snapshot
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "NOT_LOADED"
	case Loading:
		return "LOADING"
	case Loaded:
		return "LOADED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrNotLoaded is returned when a snapshot is required but still absent or loading
	ErrNotLoaded = errors.New("permissions not loaded")

	// ErrInvalidPayload is returned for a permission payload that cannot be decoded
	ErrInvalidPayload = errors.New("invalid permission payload")
)

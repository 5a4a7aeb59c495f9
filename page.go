package magiclink

// Level is the severity of a toast notification.
type Level int

// Toast levels.
const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Page is the request/response boundary of a single render.
type Page interface {
	// Token returns the magic link token of the request, or "" if there is none.
	Token() string

	// ClearToken removes the token (and other query parameters) from the request surface.
	ClearToken()

	// Toast shows a notification to the user.
	Toast(level Level, msg string)

	// Rerun requests a full re-render.
	Rerun()
}

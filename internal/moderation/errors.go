package moderation

import "errors"

var (
	// ErrInvalidDuration is returned for mute durations not shaped like "<n><s|m|h>".
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrEmptyWord is returned when adding a blank banned word.
	ErrEmptyWord = errors.New("banned word is empty")
)

package models

import "errors"

// Cache and playback error taxonomy. NotFound is an expected condition that
// routes callers to fallback paths; Exhausted is terminal until an external
// trigger (reconnect, schedule tick, manual reload) retries.
var (
	// ErrNotFound indicates an address or playlist is absent from a store.
	ErrNotFound = errors.New("not found")

	// ErrExhausted indicates every fallback tier failed.
	ErrExhausted = errors.New("all fallback tiers exhausted")

	// ErrNoPlaylistAssigned indicates the screen has no resolvable playlist.
	ErrNoPlaylistAssigned = errors.New("no playlist assigned")
)

// Validation errors for directory documents.
var (
	// ErrPlaylistIDRequired indicates a required playlist id field is empty.
	ErrPlaylistIDRequired = errors.New("playlist id is required")

	// ErrItemIDRequired indicates a required playlist item id field is empty.
	ErrItemIDRequired = errors.New("playlist item id is required")

	// ErrInvalidItemType indicates an unknown playlist item type.
	ErrInvalidItemType = errors.New("invalid item type: must be 'image', 'video', 'webpage' or 'ticker'")

	// ErrInvalidDuration indicates a non-positive item duration.
	ErrInvalidDuration = errors.New("item duration must be positive")

	// ErrInvalidTimeOfDay indicates a schedule time outside the HH:MM format.
	ErrInvalidTimeOfDay = errors.New("schedule time must be in HH:MM format")

	// ErrInvalidWeekday indicates an unknown day-of-week name in a rule.
	ErrInvalidWeekday = errors.New("invalid weekday name")
)

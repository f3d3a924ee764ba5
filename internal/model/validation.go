package model

import (
	"errors"
	"fmt"
)

// Sentinel validation errors (spec §7 "Invalid input").
var (
	ErrMissingID          = errors.New("model: quick tab missing id")
	ErrNegativeOriginTab  = errors.New("model: quick tab has negative origin tab id")
	ErrURLTooLong         = errors.New("model: quick tab url exceeds max length")
	ErrTitleTooLong       = errors.New("model: quick tab title exceeds max length")
	ErrSizeOutOfBounds    = errors.New("model: quick tab size out of bounds")
	ErrDuplicateID        = errors.New("model: duplicate quick tab id in pool")
	ErrPoolTooLarge       = errors.New("model: pool exceeds max quick tabs")
)

// Limits bounds the fields IsValid and ValidateWithDiagnostics check;
// it mirrors the relevant subset of internal/config.Config so this
// package stays free of a config import.
type Limits struct {
	MaxURLLength   int
	MaxTitleLength int
	MinWidth       int
	MaxWidth       int
	MinHeight      int
	MaxHeight      int
	MaxQuickTabs   int
}

// IsValid reports whether s satisfies every structural invariant in
// Limits, short-circuiting on the first violation. Use
// ValidateWithDiagnostics when the caller needs to report all of them.
func IsValid(s State, lim Limits) bool {
	return len(validateAll(s, lim)) == 0
}

// Diagnostics is the report shape named in spec §4.1:
// `validateWithDiagnostics(S) → { valid, needsMigration, warnings[] }`.
type Diagnostics struct {
	Valid          bool
	NeedsMigration bool
	Warnings       []error
}

// ValidateWithDiagnostics reports every structural violation in s
// against lim, plus whether s's schema version lags the caller's
// current one — used by the error taxonomy's "Invalid input"
// responses, which report a details list (spec §7), and by
// InitBarrier to decide whether migration is required.
func ValidateWithDiagnostics(s State, lim Limits, currentSchemaVersion int) Diagnostics {
	warnings := validateAll(s, lim)
	return Diagnostics{
		Valid:          len(warnings) == 0,
		NeedsMigration: s.SchemaVersion < currentSchemaVersion,
		Warnings:       warnings,
	}
}

func validateAll(s State, lim Limits) []error {
	var errs []error
	seen := make(map[string]bool, len(s.AllQuickTabs))

	if lim.MaxQuickTabs > 0 && len(s.AllQuickTabs) > lim.MaxQuickTabs {
		errs = append(errs, fmt.Errorf("%w: %d > %d", ErrPoolTooLarge, len(s.AllQuickTabs), lim.MaxQuickTabs))
	}

	for _, qt := range s.AllQuickTabs {
		if qt.ID == "" {
			errs = append(errs, ErrMissingID)
			continue
		}
		if seen[qt.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, qt.ID))
		}
		seen[qt.ID] = true

		if qt.OriginTabID < 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNegativeOriginTab, qt.ID))
		}
		if lim.MaxURLLength > 0 && len(qt.URL) > lim.MaxURLLength {
			errs = append(errs, fmt.Errorf("%w: %s", ErrURLTooLong, qt.ID))
		}
		if lim.MaxTitleLength > 0 && len(qt.Title) > lim.MaxTitleLength {
			errs = append(errs, fmt.Errorf("%w: %s", ErrTitleTooLong, qt.ID))
		}
		if lim.MinWidth > 0 && (qt.Size.W < lim.MinWidth || qt.Size.W > lim.MaxWidth) {
			errs = append(errs, fmt.Errorf("%w: %s width=%d", ErrSizeOutOfBounds, qt.ID, qt.Size.W))
		}
		if lim.MinHeight > 0 && (qt.Size.H < lim.MinHeight || qt.Size.H > lim.MaxHeight) {
			errs = append(errs, fmt.Errorf("%w: %s height=%d", ErrSizeOutOfBounds, qt.ID, qt.Size.H))
		}
	}
	return errs
}

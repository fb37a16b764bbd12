package position

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntry is returned for fills with a non-positive price or quantity.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrInvalidStateTransition marks a contract violation of the position lifecycle.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNoOpenPosition is the FLAT flavour of ErrInvalidStateTransition.
	ErrNoOpenPosition = fmt.Errorf("%w: no open position", ErrInvalidStateTransition)
)

func transitionError(op string, from State) error {
	if from == StateFlat {
		return fmt.Errorf("%s: %w", op, ErrNoOpenPosition)
	}
	return fmt.Errorf("%s from %s: %w", op, from, ErrInvalidStateTransition)
}

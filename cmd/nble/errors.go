package main

import (
	"errors"

	"github.com/Technoculture/zephyr/gatt"
)

// FormatUserError turns internal errors into messages fit for the terminal,
// adding a hint for the failure modes users actually hit.
func FormatUserError(err error) string {
	var opErr *gatt.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(err, gatt.ErrDuplicatePending):
			return opErr.Error() + " (wait for the outstanding request to finish)"
		case errors.Is(err, gatt.ErrNoStoredValue):
			return opErr.Error() + " (set the attribute value before a zero-length send)"
		}
	}
	return err.Error()
}

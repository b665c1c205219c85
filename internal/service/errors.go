package service

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every error caused by an invalid request payload.
var ErrValidation = errors.New("validation failed")

var (
	// ErrInvalidPickUpAddress is returned when the pick up address is empty.
	ErrInvalidPickUpAddress = fmt.Errorf("%w: pick up address is required", ErrValidation)

	// ErrInvalidDropOffAddress is returned when the drop off address is empty.
	ErrInvalidDropOffAddress = fmt.Errorf("%w: drop off address is required", ErrValidation)

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = fmt.Errorf("%w: rider is required", ErrValidation)

	// ErrRiderMismatch is returned when a trip is requested on behalf of another user.
	ErrRiderMismatch = fmt.Errorf("%w: rider must be the requesting user", ErrValidation)

	// ErrRiderNotFound is returned when the rider does not exist.
	ErrRiderNotFound = fmt.Errorf("%w: rider not found", ErrValidation)

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = fmt.Errorf("%w: trip id is required", ErrValidation)

	// ErrInvalidStatus is returned when the requested status is unknown.
	ErrInvalidStatus = fmt.Errorf("%w: unknown trip status", ErrValidation)
)

var (
	// ErrNotDriver is returned when a non-driver tries to update a trip.
	ErrNotDriver = errors.New("only drivers can update trips")

	// ErrTripAssignedToOtherDriver is returned when the trip already belongs to another driver.
	ErrTripAssignedToOtherDriver = errors.New("trip assigned to another driver")

	// ErrInvalidStatusTransition is returned when a trip status would move backwards.
	ErrInvalidStatusTransition = errors.New("invalid trip status transition")

	// ErrTripLocked is returned when another update of the same trip is in flight.
	ErrTripLocked = errors.New("trip is being updated")
)

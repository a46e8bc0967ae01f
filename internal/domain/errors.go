package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrNoAvailableRooms     = errors.New("no available rooms")
	ErrInvalidInput         = errors.New("invalid input")
)

package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/freight-booking/internal/model"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidInput           = errors.New("invalid input")
	ErrAlreadyBooked          = errors.New("shipment already booked")
	ErrAlreadyCancelled       = errors.New("shipment already cancelled")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStatusConflict         = errors.New("shipment changed concurrently")
	ErrGenerationExhausted    = errors.New("shipment number space exhausted")
	ErrRender                 = errors.New("render rate confirmation")
	ErrUpload                 = errors.New("upload rate confirmation")
	ErrDocumentPipelineFailed = errors.New("shipment booked but rate confirmation failed")
)

// ConflictError reports the state that made a booking or cancellation
// inapplicable.
type ConflictError struct {
	ShipmentNumber string
	Status         model.ShipmentStatus
	HeldBy         *uuid.UUID
	Err            error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%v: shipment %s is %s", e.Err, e.ShipmentNumber, e.Status)
	if e.HeldBy != nil {
		msg += fmt.Sprintf(" (carrier %s)", e.HeldBy)
	}
	return msg
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// PipelineError is returned when a booking committed but producing its rate
// confirmation did not. Shipment holds the committed state.
type PipelineError struct {
	Stage    string
	Shipment *model.Shipment
	Err      error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%v: %s stage: %v", ErrDocumentPipelineFailed, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	return []error{ErrDocumentPipelineFailed, e.Err}
}

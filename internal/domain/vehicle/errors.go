package vehicle

import "errors"

var (
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrInvalidDriverName   = errors.New("invalid driver name")
	ErrInvalidLicensePlate = errors.New("invalid license plate")
	ErrInvalidStatus       = errors.New("invalid vehicle status")
	ErrVehicleNotAvailable = errors.New("vehicle is not available")
)

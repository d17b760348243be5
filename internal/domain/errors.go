package domain

import "errors"

var (
	ErrUnknownSensor     = errors.New("unknown sensor")
	ErrUnknownPwmChannel = errors.New("unknown pwm channel")
	ErrUnknownLed        = errors.New("unknown led")
	ErrInvalidValue      = errors.New("invalid value")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrDevice            = errors.New("device failure")
)

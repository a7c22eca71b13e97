package config

import "errors"

var (
	// ErrUnsupportedFormat indicates a config file extension other than
	// .json, .yaml or .yml.
	ErrUnsupportedFormat = errors.New("config: unsupported file format")

	// ErrFileTooLarge indicates a config file above MaxFileSize.
	ErrFileTooLarge = errors.New("config: file too large")

	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("config: missing required environment variables")

	// ErrInvalid indicates a value outside its accepted range.
	ErrInvalid = errors.New("config: invalid value")
)

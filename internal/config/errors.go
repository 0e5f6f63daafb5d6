package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the YAML file or environment.
	ErrLoadConfig = errors.New("load config failed")
	// ErrStoreDriver marks a store_driver/store_dsn combination that cannot
	// be opened. It is always reported together with ErrInvalidConfig.
	ErrStoreDriver = errors.New("unusable store driver")
)

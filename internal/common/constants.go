package common

import "errors"

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvHost            = "HOST"
	EnvModelPath       = "MODEL_PATH"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvMetricsEnabled  = "METRICS_ENABLED"
	EnvSexStrict       = "SEX_STRICT"
	EnvMaxBodyBytes    = "MAX_BODY_BYTES"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)

// Configuration defaults
const (
	DefaultPort            = 5000
	DefaultHost            = "0.0.0.0"
	DefaultModelFile       = "rf_diagnosis_model.json"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultMaxBodyBytes    = 1 << 20 // 1 MiB
	DefaultReadTimeoutSec  = 10
	DefaultWriteTimeoutSec = 10
	DefaultShutdownSec     = 10
)

// Disclaimer is attached to every structured prediction response.
const Disclaimer = "This is a synthetic demo. Not for real medical use."

// ProbabilityDigits is the rounding applied to structured responses.
const ProbabilityDigits = 4

// Common errors
var (
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrInvalidArtifact  = errors.New("invalid model artifact")
	ErrFeatureMismatch  = errors.New("model feature order does not match service feature order")
	ErrPredictionFailed = errors.New("prediction failed")
)

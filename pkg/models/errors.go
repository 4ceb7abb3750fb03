package models

import "fmt"

// DataError reports malformed or misaligned input profiles. It is fatal for
// the affected condition only; other conditions are unaffected.
type DataError struct {
	Condition string
	Reason    string
}

func (e *DataError) Error() string {
	if e.Condition == "" {
		return fmt.Sprintf("data error: %s", e.Reason)
	}
	return fmt.Sprintf("data error in condition %q: %s", e.Condition, e.Reason)
}

// NewDataError builds a DataError for a condition.
func NewDataError(condition, format string, args ...interface{}) *DataError {
	return &DataError{Condition: condition, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientDataError reports too few labeled examples or too few proteins
// to train or stratify. Recoverable by supplying more data.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}

// NewInsufficientDataError builds an InsufficientDataError.
func NewInsufficientDataError(format string, args ...interface{}) *InsufficientDataError {
	return &InsufficientDataError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports an invalid parameter or parameter combination.
type ConfigurationError struct {
	Parameter string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Parameter, e.Reason)
}

// NewConfigurationError builds a ConfigurationError for a parameter.
func NewConfigurationError(parameter, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Parameter: parameter, Reason: fmt.Sprintf(format, args...)}
}

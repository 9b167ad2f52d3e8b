package alg

import "fmt"

// ConfigurationError reports a problem that can not be built, such as a
// missing duration evaluator or conflicting state requests.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// InconsistencyError reports a solution that does not translate into a
// valid plan.
type InconsistencyError struct {
	Reason string
}

func (e *InconsistencyError) Error() string {
	return "inconsistent solution: " + e.Reason
}

func inconsistencyErrorf(format string, args ...interface{}) error {
	return &InconsistencyError{Reason: fmt.Sprintf(format, args...)}
}

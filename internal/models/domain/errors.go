package domain

import "fmt"

// ConfigurationError reports a caller or catalog setup problem. It is fatal
// for the request that triggered it.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// AccessDeniedError reports a tenant-boundary violation. Semantically a 403;
// the operation that triggered it must not have done any partial work.
type AccessDeniedError struct {
	Client ClientID
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for client %q", string(e.Client))
}

// UnknownMetricError reports a request for a metric the registry does not
// hold. Fatal for that call only.
type UnknownMetricError struct {
	Metric string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q", e.Metric)
}

package monitoring

import (
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)

	if err != nil {
		return nil, err
	}

	return &NewRelicApp{app, true}, nil
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Dispatch-domain metric helpers

// RecordAllocationLatency records end-to-end allocation latency.
func (nr *NewRelicApp) RecordAllocationLatency(latencyMs float64) {
	nr.RecordCustomMetric("custom/dispatch/allocation_latency_ms", latencyMs)
}

// RecordLocationUpdate records a vehicle location update.
func (nr *NewRelicApp) RecordLocationUpdate() {
	nr.RecordCustomMetric("custom/vehicle/location_update", 1)
}

// RecordTripAllocated records a successful allocation.
func (nr *NewRelicApp) RecordTripAllocated(tripID, vehicleID string, distanceMeters float64) {
	nr.RecordCustomEvent("TripAllocated", map[string]interface{}{
		"trip_id":         tripID,
		"vehicle_id":      vehicleID,
		"distance_meters": distanceMeters,
		"timestamp":       time.Now().Unix(),
	})
}

// RecordVehicleFreed records a vehicle returning to the available pool.
func (nr *NewRelicApp) RecordVehicleFreed(vehicleID string) {
	nr.RecordCustomEvent("VehicleFreed", map[string]interface{}{
		"vehicle_id": vehicleID,
		"timestamp":  time.Now().Unix(),
	})
}

// RecordAllocationOutcome records allocation business outcomes (no
// candidates, no route, conflicts) for dashboarding.
func (nr *NewRelicApp) RecordAllocationOutcome(outcome string) {
	nr.RecordCustomMetric("custom/dispatch/outcome/"+outcome, 1)
}

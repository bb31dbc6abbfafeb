package probe

import (
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// Thresholds are the product-configurable floors used to classify a
// probe sample.
type Thresholds struct {
	MinFPS         float64
	MinBitrateKbps float64
}

// Classify turns a raw path state into a classified probe result.
//
// Missing signal or zero fps classifies unhealthy; metrics below the
// configured floors or a non-empty issue list classifies degraded; a
// ready path with no metrics at all stays unknown (insufficient data).
func Classify(state *nodeclient.PathState, thresholds Thresholds) models.ProbeResult {
	result := models.ProbeResult{
		Status:      models.StatusHealthy,
		FPS:         state.FPS,
		BitrateKbps: state.BitrateKbps,
		Width:       state.Width,
		Height:      state.Height,
		Codec:       state.Codec,
		Issues:      append([]string(nil), state.Issues...),
	}

	switch {
	case !state.Ready:
		result.Status = models.StatusUnhealthy
		result.Issues = append(result.Issues, "no signal: path not ready")
	case state.FPS == 0 && state.BitrateKbps == 0 && len(state.Tracks) == 0:
		// Path is up but the node has not sampled metrics yet.
		result.Status = models.StatusUnknown
	case state.FPS == 0:
		result.Status = models.StatusUnhealthy
		result.Issues = append(result.Issues, "zero fps")
	case state.FPS < thresholds.MinFPS:
		result.Status = models.StatusDegraded
		result.Issues = append(result.Issues, "fps below floor")
	case thresholds.MinBitrateKbps > 0 && state.BitrateKbps < thresholds.MinBitrateKbps:
		result.Status = models.StatusDegraded
		result.Issues = append(result.Issues, "bitrate below floor")
	case len(state.Issues) > 0:
		result.Status = models.StatusDegraded
	}

	result.IsHealthy = result.Status == models.StatusHealthy
	return result
}

// Failed builds the probe result for a probe that could not complete.
func Failed(err error) models.ProbeResult {
	return models.ProbeResult{
		IsHealthy: false,
		Status:    models.StatusUnhealthy,
		Issues:    []string{"probe failed"},
		Error:     err.Error(),
	}
}

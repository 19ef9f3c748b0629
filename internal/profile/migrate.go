package profile

import (
	"fmt"
	"math"
)

type migration func(doc map[string]any)

// migrations[n] upgrades a version n document to version n+1. Each step only
// fills what is missing, so applying it twice changes nothing.
var migrations = map[int]migration{
	1: addWeights,
	2: splitStaffingAndLocations,
}

// DocumentVersion reads the version of a raw document. Documents written
// before versioning are version 1.
func DocumentVersion(doc map[string]any) (int, error) {
	raw, ok := doc["version"]
	if !ok || raw == nil {
		return 1, nil
	}

	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) || f < 1 {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedVersion, raw)
	}
	return int(f), nil
}

// Migrate upgrades doc to CurrentVersion in place and returns the version it
// started from.
func Migrate(doc map[string]any) (int, error) {
	from, err := DocumentVersion(doc)
	if err != nil {
		return 0, err
	}
	if from > CurrentVersion {
		return from, fmt.Errorf("%w: %d is newer than %d", ErrUnsupportedVersion, from, CurrentVersion)
	}

	for v := from; v < CurrentVersion; v++ {
		migrations[v](doc)
		doc["version"] = float64(v + 1)
	}

	return from, nil
}

// addWeights makes the default weights explicit.
func addWeights(doc map[string]any) {
	if _, ok := doc["weights"]; ok {
		return
	}

	weights := make(map[string]any)
	for name, value := range DefaultWeights().Map() {
		weights[name] = value
	}
	doc["weights"] = weights
}

// splitStaffingAndLocations replaces the boolean staffing flag with the
// three-way preference and the single location with a list.
func splitStaffingAndLocations(doc map[string]any) {
	if avoid, ok := doc["avoid_staffing"]; ok {
		if _, set := doc["staffing"]; !set {
			preference := StaffingNeutral
			if b, _ := avoid.(bool); b {
				preference = StaffingPenalize
			}
			doc["staffing"] = string(preference)
		}
		delete(doc, "avoid_staffing")
	}

	if location, ok := doc["location"]; ok {
		if _, set := doc["locations"]; !set {
			locations := []any{}
			if s, _ := location.(string); s != "" {
				locations = append(locations, s)
			}
			doc["locations"] = locations
		}
		delete(doc, "location")
	}
}

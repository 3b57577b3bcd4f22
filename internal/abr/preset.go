// SPDX-License-Identifier: MIT

// Package abr parses adaptive-bitrate ladder presets from their compact
// textual form: "name|WxH|bitrateKbps" entries joined by commas.
package abr

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant is a single rung of an ABR ladder.
type Variant struct {
	Name        string `json:"name"`
	Resolution  string `json:"resolution"`
	BitrateKbps int    `json:"bitrateKbps"`
}

// ParsePreset parses a compact ladder definition. An empty or all-whitespace
// input yields an empty ladder. Malformed entries fail with an error naming
// the offending entry so misconfiguration is caught at startup.
func ParsePreset(raw string) ([]Variant, error) {
	var ladder []Variant
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("abr preset entry %q: want name|resolution|bitrateKbps", entry)
		}
		name := strings.TrimSpace(parts[0])
		resolution := strings.TrimSpace(parts[1])
		bitrateRaw := strings.TrimSpace(parts[2])
		if name == "" || resolution == "" || bitrateRaw == "" {
			return nil, fmt.Errorf("abr preset entry %q: empty token", entry)
		}
		bitrate, err := strconv.Atoi(bitrateRaw)
		if err != nil {
			return nil, fmt.Errorf("abr preset entry %q: bitrate %q is not an integer", entry, bitrateRaw)
		}
		ladder = append(ladder, Variant{Name: name, Resolution: resolution, BitrateKbps: bitrate})
	}
	return ladder, nil
}

// FormatPreset renders a ladder back into its compact textual form.
func FormatPreset(ladder []Variant) string {
	entries := make([]string, 0, len(ladder))
	for _, v := range ladder {
		entries = append(entries, fmt.Sprintf("%s|%s|%d", v.Name, v.Resolution, v.BitrateKbps))
	}
	return strings.Join(entries, ",")
}

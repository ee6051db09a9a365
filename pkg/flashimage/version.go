package flashimage

import "regexp"

var versionMarker = regexp.MustCompile(`v\d+\.\d+\.\d+`)

// FindVersionString returns the first version marker (v1.2.3) in firmware.
// The search is a plain substring scan, so a miss is normal.
func FindVersionString(firmware []byte) (string, bool) {
	m := versionMarker.Find(firmware)
	if m == nil {
		return "", false
	}
	return string(m), true
}

package review

import (
	"strconv"
	"strings"

	"github.com/banshee-data/trace.review/internal/annotations"
)

// KeyHelp describes the key map for terminal and web clients.
const KeyHelp = "h=pass j=observe k=fail l=checksum m=toggle moisture space/n=confirm b=back <number>=jump q=quit"

// EventForKey maps a key (or a typed line in the terminal loop) to an event.
// A bare number is a 0-based jump, clamped to the batch length n. ok is
// false for unknown input.
func EventForKey(key string, n int) (Event, bool) {
	switch key {
	case " ", "n", "space":
		return Confirm{}, true
	case "h":
		return SetLabel{Status: annotations.StatusPass}, true
	case "j":
		return SetLabel{Status: annotations.StatusObserve}, true
	case "k":
		return SetLabel{Status: annotations.StatusFail}, true
	case "l":
		return SetLabel{Status: annotations.StatusChecksum}, true
	case "m":
		return ToggleMoisture{}, true
	case "b":
		return StepBack{}, true
	}
	if i, err := strconv.Atoi(strings.TrimSpace(key)); err == nil && n > 0 {
		return JumpTo{Index: ClampIndex(i, n)}, true
	}
	return nil, false
}

// ClampIndex clamps a manually entered index to [0, n-1]. JumpTo itself
// ignores out-of-range values, so callers clamp first.
func ClampIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return max(0, min(i, n-1))
}

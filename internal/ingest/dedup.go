package ingest

import (
	"time"
)

// dedupWindow is the tolerance for matching timestamps across text and
// structured exports of the same conversation.
const dedupWindow = 1 * time.Second

// overlapThreshold is the fraction of timestamps that must match to consider
// two exports duplicates.
const overlapThreshold = 0.8

// fileFingerprint holds the timing profile of one export file.
type fileFingerprint struct {
	Path       string
	Structured bool
	Timestamps []time.Time
}

// FindDuplicates compares text exports against structured exports and returns
// text file paths whose conversations overlap a structured file. Structured
// exports carry more detail, so they win.
func FindDuplicates(structFPs, textFPs []fileFingerprint) map[string]bool {
	duplicates := make(map[string]bool)

	for _, txt := range textFPs {
		if len(txt.Timestamps) == 0 {
			continue
		}
		for _, st := range structFPs {
			if isOverlapping(st, txt) {
				duplicates[txt.Path] = true
				break
			}
		}
	}

	return duplicates
}

// isOverlapping checks if enough of b's timestamps appear in a within the
// dedupWindow.
func isOverlapping(a, b fileFingerprint) bool {
	if len(b.Timestamps) == 0 {
		return false
	}

	matches := 0
	for _, bt := range b.Timestamps {
		for _, at := range a.Timestamps {
			diff := bt.Sub(at)
			if diff < 0 {
				diff = -diff
			}
			if diff <= dedupWindow {
				matches++
				break
			}
		}
	}

	return float64(matches)/float64(len(b.Timestamps)) >= overlapThreshold
}

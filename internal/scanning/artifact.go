package scanning

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// stampLayout renders as YYYYMMDD_HHMMSS.
	stampLayout = "20060102_150405"

	xmlExt  = ".xml"
	textExt = ".txt"

	maxStampAttempts = 100
)

// Artifact is the pair of report files written by one engine invocation.
type Artifact struct {
	// XMLPath is the structured report the parser reads
	XMLPath string
	// TextPath is the human-readable report echoed in the summary
	TextPath string
	// Stamp is the timestamp token shared by both file names
	Stamp string
}

// NewArtifact builds the report paths for a run started at now. If a report
// with the same stamp already exists in dir, a numeric suffix is appended so
// an earlier run is never overwritten.
func NewArtifact(dir, prefix string, now time.Time) (Artifact, error) {
	base := now.Format(stampLayout)
	stamp := base

	for attempt := 1; attempt <= maxStampAttempts; attempt++ {
		a := Artifact{
			XMLPath:  filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, stamp, xmlExt)),
			TextPath: filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, stamp, textExt)),
			Stamp:    stamp,
		}
		if !exists(a.XMLPath) && !exists(a.TextPath) {
			return a, nil
		}
		stamp = fmt.Sprintf("%s_%d", base, attempt)
	}

	return Artifact{}, fmt.Errorf("no free report name for %s_%s in %s", prefix, base, dir)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

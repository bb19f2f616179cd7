package gateway

import (
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Scrubber redacts credentials from upstream text before it is logged.
type Scrubber interface {
	Scrub(s string) string
}

// NopScrubber returns text unchanged.
type NopScrubber struct{}

// Scrub implements Scrubber.
func (NopScrubber) Scrub(s string) string { return s }

// GitleaksScrubber redacts anything the default Gitleaks rule set detects.
// The detector is built on first use and shared by every caller.
type GitleaksScrubber struct {
	once     sync.Once
	mu       sync.Mutex
	detector *detect.Detector
	err      error
}

var defaultScrubber = &GitleaksScrubber{}

// Scrub replaces each detected secret with [REDACTED:<rule>]. When the
// rule set cannot be loaded the whole text is withheld.
func (g *GitleaksScrubber) Scrub(s string) string {
	if s == "" {
		return s
	}
	g.once.Do(func() {
		g.detector, g.err = detect.NewDetectorDefaultConfig()
	})
	if g.err != nil {
		return "[REDACTED:scrubber-unavailable]"
	}

	g.mu.Lock()
	findings := g.detector.DetectString(s)
	g.mu.Unlock()

	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, f.Secret, "[REDACTED:"+f.RuleID+"]")
	}
	return s
}

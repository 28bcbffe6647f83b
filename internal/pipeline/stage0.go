package pipeline

import (
	"regexp"
	"strings"
)

// stage0Re matches anything that makes a post plausibly finance-related: a
// cashtag, a trading keyword, or a bare number. URLs are checked separately.
var stage0Re = regexp.MustCompile(`(?i)(\$[a-z]{1,10})` +
	`|\b(long|short|buy|sell|bullish|bearish|puts|calls|target|stop|breakout|support|resistance|earnings|cpi|fomc)\b` +
	`|\b\d+(\.\d+)?\b`)

// Stage0Keep is the local prefilter bounding remote classifier cost. Posts
// that fail it transition directly to StateStage0Skipped with no remote call.
func Stage0Keep(text string) bool {
	return stage0Re.MatchString(text) || strings.Contains(text, "http")
}

// Stage0SkipDecision is the synthetic gatekeeper result persisted for posts
// the prefilter rejects.
func Stage0SkipDecision() *GatekeeperDecision {
	return &GatekeeperDecision{Skipped: true, Reason: "stage0"}
}

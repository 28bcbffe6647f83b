package pipeline

import "regexp"

// levelsRe matches the keywords a post must contain before extracted numeric
// levels count as grounded in the source text.
var levelsRe = regexp.MustCompile(`(?i)\b(entry|stop|target|tp|sl)\b`)

const levelsAmbiguity = "levels not provided"

// EnsureOrigin fills origin fields the model left empty from locally known
// values. Model-supplied non-empty values are never overwritten.
func EnsureOrigin(alpha *AlphaObject, postID, postURL, username string) {
	o := &alpha.Origin
	if o.Username == nil || *o.Username == "" {
		o.Username = optional(username)
	}
	if o.PostID == "" {
		o.PostID = postID
	}
	if o.PostURL == nil || *o.PostURL == "" {
		o.PostURL = optional(postURL)
	}
	if o.ThreadPostIDs == nil {
		o.ThreadPostIDs = []string{}
	}
}

// ApplyMissingLevelsGuardrail clears key levels the source text cannot
// support. When the text names no entry/stop/target keyword, any levels the
// model produced are unsupported: entry and invalidation go to null, targets
// to empty, and the ambiguity list gains "levels not provided" once.
func ApplyMissingLevelsGuardrail(alpha *AlphaObject, text string) {
	if levelsRe.MatchString(text) {
		return
	}
	alpha.KeyLevels.Entry = nil
	alpha.KeyLevels.Invalidation = nil
	alpha.KeyLevels.Targets = []float64{}
	for _, a := range alpha.Ambiguities {
		if a == levelsAmbiguity {
			return
		}
	}
	alpha.Ambiguities = append(alpha.Ambiguities, levelsAmbiguity)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

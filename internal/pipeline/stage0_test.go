package pipeline

import "testing"

func TestStage0Keep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"cashtag", "loading up on $BTC", true},
		{"keyword long", "going long here", true},
		{"keyword bearish", "feeling Bearish today", true},
		{"keyword earnings", "earnings next week", true},
		{"bare number", "wake me at 61000", true},
		{"decimal number", "pivot at 0.618", true},
		{"url", "thread: http://example.com/chart", true},
		{"https url", "https only link https://x.com/p/1", true},
		{"plain chatter", "gm everyone have a great day", false},
		{"empty", "", false},
		{"keyword inside word", "belongings are packed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Stage0Keep(tt.text); got != tt.want {
				t.Errorf("Stage0Keep(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestStage0SkipDecision(t *testing.T) {
	t.Parallel()

	d := Stage0SkipDecision()
	if !d.Skipped || d.Reason != "stage0" {
		t.Errorf("decision = %+v, want skipped with reason stage0", d)
	}
	if d.Proceed() {
		t.Error("stage0 skip decision must not proceed to the analyst")
	}
}

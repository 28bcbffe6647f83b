package digest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/linnemanlabs/prospect/internal/pipeline"
	"github.com/linnemanlabs/prospect/internal/pipeline/memstore"
)

func row(id, asset, stance, url, username string) *pipeline.ClassifiedPost {
	var assets []string
	if asset != "" {
		assets = []string{asset}
	}
	return &pipeline.ClassifiedPost{
		Post:  &pipeline.Post{PostID: id, URL: url, Username: username},
		Alpha: &pipeline.AlphaObject{Assets: assets, Stance: stance},
	}
}

func TestRender_GroupOrdering(t *testing.T) {
	t.Parallel()

	// BTC has two members, ETH one: BTC renders first
	rows := []*pipeline.ClassifiedPost{
		row("1", "ETH", "long", "", "a"),
		row("2", "BTC", "long", "", "b"),
		row("3", "BTC", "short", "", "c"),
	}

	out := Render(rows, 24)

	if !strings.HasPrefix(out, "# Digest (last 24h)\n") {
		t.Errorf("header missing:\n%s", out)
	}
	btc := strings.Index(out, "## BTC")
	eth := strings.Index(out, "## ETH")
	if btc == -1 || eth == -1 {
		t.Fatalf("missing group headings:\n%s", out)
	}
	if btc > eth {
		t.Errorf("BTC (2 members) should render before ETH (1 member):\n%s", out)
	}
}

func TestRender_TieBreakBySymbol(t *testing.T) {
	t.Parallel()

	rows := []*pipeline.ClassifiedPost{
		row("1", "ETH", "long", "", "a"),
		row("2", "BTC", "long", "", "b"),
	}

	out := Render(rows, 24)
	if strings.Index(out, "## BTC") > strings.Index(out, "## ETH") {
		t.Errorf("equal-sized groups should order by ascending symbol:\n%s", out)
	}
}

func TestRender_StanceSummary(t *testing.T) {
	t.Parallel()

	rows := []*pipeline.ClassifiedPost{
		row("1", "BTC", "long", "", "a"),
		row("2", "BTC", "long", "", "b"),
		row("3", "BTC", "short", "", "c"),
		row("4", "BTC", "", "", "d"),
	}

	out := Render(rows, 24)
	if !strings.Contains(out, "## BTC — long:2, short:1, unclear:1") {
		t.Errorf("stance summary wrong:\n%s", out)
	}
}

func TestRender_UnmappedGroup(t *testing.T) {
	t.Parallel()

	rows := []*pipeline.ClassifiedPost{row("1", "", "long", "", "a")}
	out := Render(rows, 24)
	if !strings.Contains(out, "## (unmapped) — long:1") {
		t.Errorf("empty asset list should land in the unmapped group:\n%s", out)
	}
}

func TestRender_MemberURLFallbacks(t *testing.T) {
	t.Parallel()

	rows := []*pipeline.ClassifiedPost{
		row("1", "BTC", "long", "https://example.com/p/1", "ignored"),
		row("2", "BTC", "long", "", "trader"),
		row("3", "BTC", "long", "", ""),
	}

	out := Render(rows, 24)
	for _, want := range []string{
		"- https://example.com/p/1\n",
		"- https://x.com/trader/status/2\n",
		"- (post 3)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_Caps(t *testing.T) {
	t.Parallel()

	var rows []*pipeline.ClassifiedPost
	for i := 0; i < 8; i++ {
		r := row(fmt.Sprintf("%d", i), "BTC", "long", "", "u")
		for j := 0; j < 5; j++ {
			r.Alpha.RationaleBullets = append(r.Alpha.RationaleBullets, fmt.Sprintf("bullet %d", j))
			r.Alpha.Evidence.Links = append(r.Alpha.Evidence.Links, pipeline.EvidenceLink{URL: fmt.Sprintf("https://e.com/%d", j)})
		}
		rows = append(rows, r)
	}

	out := Render(rows, 24)

	// 5 members max, but the stance summary still counts all 8
	if got := strings.Count(out, "- https://x.com/u/status/"); got != 5 {
		t.Errorf("members rendered = %d, want 5", got)
	}
	if !strings.Contains(out, "long:8") {
		t.Errorf("summary should count all members:\n%s", out)
	}

	// per-member caps: 3 bullets and 3 links
	firstMember := out[strings.Index(out, "- https://x.com/u/status/0"):]
	if end := strings.Index(firstMember, "- https://x.com/u/status/1"); end >= 0 {
		firstMember = firstMember[:end]
	}
	if got := strings.Count(firstMember, "  - bullet"); got != 3 {
		t.Errorf("bullets rendered = %d, want 3", got)
	}
	if got := strings.Count(firstMember, "  - link:"); got != 3 {
		t.Errorf("links rendered = %d, want 3", got)
	}
}

func TestRender_Empty(t *testing.T) {
	t.Parallel()

	out := Render(nil, 12)
	if out != "# Digest (last 12h)\n" {
		t.Errorf("empty digest = %q", out)
	}
}

func TestRender_MultiAssetPostAppearsInEachGroup(t *testing.T) {
	t.Parallel()

	r := row("1", "BTC", "long", "", "u")
	r.Alpha.Assets = []string{"BTC", "ETH"}
	out := Render([]*pipeline.ClassifiedPost{r}, 24)

	if !strings.Contains(out, "## BTC") || !strings.Contains(out, "## ETH") {
		t.Errorf("post should appear under each asset:\n%s", out)
	}
}

func TestBuild_WindowExclusion(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	ctx := context.Background()

	recent := &pipeline.Post{PostID: "1", Text: "a", TextHash: pipeline.TextHash("a"), CreatedAt: "2999-01-01T00:00:00Z"}
	old := &pipeline.Post{PostID: "2", Text: "b", TextHash: pipeline.TextHash("b"), CreatedAt: "2000-01-01T00:00:00Z"}
	for _, p := range []*pipeline.Post{recent, old} {
		if _, err := store.InsertIfNew(ctx, p); err != nil {
			t.Fatal(err)
		}
		if err := store.WriteAlphaObject(ctx, p.PostID, &pipeline.AlphaObject{Assets: []string{"BTC"}, Stance: "long"}, p.CreatedAt); err != nil {
			t.Fatal(err)
		}
	}

	out, err := New(store).Build(ctx, 24)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(out, "status/1") && !strings.Contains(out, "(post 1)") {
		t.Errorf("recent post missing from digest:\n%s", out)
	}
	if strings.Contains(out, "(post 2)") {
		t.Errorf("old post should be excluded from the window:\n%s", out)
	}
}

// Package digest renders the time-windowed, asset-grouped report over
// classified posts. It is a pure read of store state.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/linnemanlabs/prospect/internal/pipeline"
)

// UnmappedGroup collects classified posts whose asset list came back empty.
const UnmappedGroup = "(unmapped)"

const (
	maxMembersPerGroup = 5
	maxBulletsPerPost  = 3
	maxLinksPerPost    = 3
)

// Builder renders digests from store state.
type Builder struct {
	store pipeline.Store
	now   func() time.Time
}

// New creates a digest builder.
func New(store pipeline.Store) *Builder {
	return &Builder{store: store, now: time.Now}
}

// Build renders the digest for the last `hours` hours.
func (b *Builder) Build(ctx context.Context, hours int) (string, error) {
	cutoff := b.now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)

	rows, err := b.store.ClassifiedSince(ctx, cutoff)
	if err != nil {
		return "", fmt.Errorf("query classified: %w", err)
	}

	return Render(rows, hours), nil
}

type group struct {
	asset   string
	members []*pipeline.ClassifiedPost
}

// Render formats classified posts (already most-recent-first) into the
// digest document. A post appears once under each of its assets.
func Render(rows []*pipeline.ClassifiedPost, hours int) string {
	byAsset := make(map[string]*group)
	var order []string

	for _, row := range rows {
		assets := row.Alpha.Assets
		if len(assets) == 0 {
			assets = []string{UnmappedGroup}
		}
		for _, asset := range assets {
			g, ok := byAsset[asset]
			if !ok {
				g = &group{asset: asset}
				byAsset[asset] = g
				order = append(order, asset)
			}
			g.members = append(g.members, row)
		}
	}

	groups := make([]*group, 0, len(order))
	for _, asset := range order {
		groups = append(groups, byAsset[asset])
	}
	// larger groups first; equal counts order by symbol so output is stable
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].members) != len(groups[j].members) {
			return len(groups[i].members) > len(groups[j].members)
		}
		return groups[i].asset < groups[j].asset
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Digest (last %dh)\n\n", hours)

	for _, g := range groups {
		fmt.Fprintf(&sb, "## %s — %s\n\n", g.asset, stanceSummary(g.members))

		members := g.members
		if len(members) > maxMembersPerGroup {
			members = members[:maxMembersPerGroup]
		}
		for _, m := range members {
			fmt.Fprintf(&sb, "- %s\n", memberURL(m.Post))
			bullets := m.Alpha.RationaleBullets
			if len(bullets) > maxBulletsPerPost {
				bullets = bullets[:maxBulletsPerPost]
			}
			for _, bullet := range bullets {
				fmt.Fprintf(&sb, "  - %s\n", bullet)
			}
			links := m.Alpha.Evidence.Links
			if len(links) > maxLinksPerPost {
				links = links[:maxLinksPerPost]
			}
			for _, link := range links {
				fmt.Fprintf(&sb, "  - link: %s\n", link.URL)
			}
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// stanceSummary renders the stance distribution of a group, most common
// stance first, name ascending on ties.
func stanceSummary(members []*pipeline.ClassifiedPost) string {
	counts := make(map[string]int)
	for _, m := range members {
		stance := m.Alpha.Stance
		if stance == "" {
			stance = "unclear"
		}
		counts[stance]++
	}

	stances := make([]string, 0, len(counts))
	for stance := range counts {
		stances = append(stances, stance)
	}
	sort.Slice(stances, func(i, j int) bool {
		if counts[stances[i]] != counts[stances[j]] {
			return counts[stances[i]] > counts[stances[j]]
		}
		return stances[i] < stances[j]
	})

	parts := make([]string, 0, len(stances))
	for _, stance := range stances {
		parts = append(parts, fmt.Sprintf("%s:%d", stance, counts[stance]))
	}
	return strings.Join(parts, ", ")
}

func memberURL(p *pipeline.Post) string {
	if p.URL != "" {
		return p.URL
	}
	if p.Username != "" {
		return fmt.Sprintf("https://x.com/%s/status/%s", p.Username, p.PostID)
	}
	return fmt.Sprintf("(post %s)", p.PostID)
}

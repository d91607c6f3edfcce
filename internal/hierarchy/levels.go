// Package hierarchy builds the level report of a member's referral tree.
package hierarchy

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tierline/tierline/internal/program"
)

// Node is a member placed at a depth below the report root.
type Node struct {
	Depth          int                  `json:"depth"`
	MemberKey      string               `json:"member_key"`
	MemberID       string               `json:"member_id"`
	Name           string               `json:"name"`
	Phone          string               `json:"phone,omitempty"`
	ReferrerID     string               `json:"referrer_id,omitempty"`
	Status         program.MemberStatus `json:"status"`
	BusinessVolume decimal.Decimal      `json:"business_volume"`
}

// Level groups the nodes found at one depth.
type Level struct {
	Depth          int             `json:"depth"`
	Count          int             `json:"count"`
	BusinessVolume decimal.Decimal `json:"business_volume"`
	Nodes          []Node          `json:"nodes"`
}

// Report is the level-indexed referral tree of a root member. Levels[0]
// holds only the root and Levels[k] the members referred from level k-1.
type Report struct {
	Root        Node      `json:"root"`
	MaxDepth    int       `json:"max_depth"`
	Truncated   bool      `json:"truncated"`
	Levels      []Level   `json:"levels"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Deepest returns the deepest non-empty level.
func (r Report) Deepest() int {
	return len(r.Levels) - 1
}

// All flattens every level in depth order.
func (r Report) All() []Node {
	total := 0
	for _, lvl := range r.Levels {
		total += len(lvl.Nodes)
	}
	out := make([]Node, 0, total)
	for _, lvl := range r.Levels {
		out = append(out, lvl.Nodes...)
	}
	return out
}

// At returns the nodes of one level. A depth outside the tree is empty.
func (r Report) At(depth int) []Node {
	if depth < 0 || depth >= len(r.Levels) {
		return []Node{}
	}
	return r.Levels[depth].Nodes
}

// Select returns the nodes chosen by sel.
func (r Report) Select(sel Selector) []Node {
	if sel.All {
		return r.All()
	}
	return r.At(sel.Depth)
}

// Selector picks either every level or a single depth.
type Selector struct {
	All   bool
	Depth int
}

// String renders the selector in its query form.
func (s Selector) String() string {
	if s.All {
		return "all"
	}
	return strconv.Itoa(s.Depth)
}

// ParseSelector accepts "", "all" or a non-negative integer.
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return Selector{All: true}, nil
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth < 0 {
		return Selector{}, &program.ValidationError{Field: "level", Reason: `must be "all" or a non-negative integer`}
	}
	return Selector{Depth: depth}, nil
}

// BusinessVolumes sums active holding amounts per member key.
func BusinessVolumes(holdings []program.PackageHolding) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		if !h.Active() {
			continue
		}
		out[h.MemberKey] = out[h.MemberKey].Add(h.Amount)
	}
	return out
}

// BuildLevels expands the tree below root breadth-first, up to maxDepth
// levels. Expansion stops at the first empty level. A member is placed at
// most once, so cyclic referrer data cannot loop.
func BuildLevels(root program.Member, members []program.Member, holdings []program.PackageHolding, maxDepth int) ([]Level, bool) {
	byReferrer := make(map[string][]program.Member, len(members))
	publicIDs := make(map[string]string, len(members)+1)
	for _, m := range members {
		publicIDs[m.Key] = m.MemberID
		if m.ReferrerKey != "" && m.Key != m.ReferrerKey {
			byReferrer[m.ReferrerKey] = append(byReferrer[m.ReferrerKey], m)
		}
	}
	publicIDs[root.Key] = root.MemberID
	volumes := BusinessVolumes(holdings)

	visited := map[string]struct{}{root.Key: {}}
	levels := []Level{newLevel(0, []Node{toNode(root, 0, publicIDs, volumes)})}
	current := []program.Member{root}
	truncated := false

	for depth := 1; len(current) > 0; depth++ {
		var next []program.Member
		for _, parent := range current {
			for _, child := range byReferrer[parent.Key] {
				if _, seen := visited[child.Key]; seen {
					continue
				}
				if depth > maxDepth {
					truncated = true
					break
				}
				visited[child.Key] = struct{}{}
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.SliceStable(next, func(i, j int) bool {
			if next[i].MemberID != next[j].MemberID {
				return next[i].MemberID < next[j].MemberID
			}
			return next[i].Key < next[j].Key
		})
		nodes := make([]Node, len(next))
		for i, m := range next {
			nodes[i] = toNode(m, depth, publicIDs, volumes)
		}
		levels = append(levels, newLevel(depth, nodes))
		current = next
	}
	return levels, truncated
}

func toNode(m program.Member, depth int, publicIDs map[string]string, volumes map[string]decimal.Decimal) Node {
	return Node{
		Depth:          depth,
		MemberKey:      m.Key,
		MemberID:       m.MemberID,
		Name:           m.Name,
		Phone:          m.Phone,
		ReferrerID:     publicIDs[m.ReferrerKey],
		Status:         m.Status,
		BusinessVolume: volumes[m.Key],
	}
}

func newLevel(depth int, nodes []Node) Level {
	total := decimal.Zero
	for _, n := range nodes {
		total = total.Add(n.BusinessVolume)
	}
	return Level{Depth: depth, Count: len(nodes), BusinessVolume: total, Nodes: nodes}
}

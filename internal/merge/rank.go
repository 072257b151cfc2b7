package merge

import (
	"path"
	"sort"
	"strings"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// Ranking is the outcome of comparing two merge candidates.
type Ranking int

const (
	// RankIncomparable: no criterion separates the two candidates.
	RankIncomparable Ranking = iota
	// RankKeepFirst: the first candidate is the better survivor.
	RankKeepFirst
	// RankKeepSecond: the second candidate is the better survivor.
	RankKeepSecond
)

// rankCriteria is the fixed-priority chain of boolean survivor preferences.
// Each criterion contributes a decision only when the two sides differ on it.
var rankCriteria = []func(t *network.TaskInstance) bool{
	// A finished task already ran its shutdown and need not be
	// re-instantiated.
	func(t *network.TaskInstance) bool { return t.Finished() },
	func(t *network.TaskInstance) bool { return t.Running() },
	func(t *network.TaskInstance) bool { return t.Deployed },
	func(t *network.TaskInstance) bool { return !t.PlaceholderProxy },
	func(t *network.TaskInstance) bool { return t.FullyInstantiated },
	func(t *network.TaskInstance) bool { return !t.TransactionProxy },
}

// Rank orders two candidates by survivor preference. Model class differences
// decide first and make instances of different classes always comparable:
// concrete beats abstract, then class names order lexically. Only then does
// the boolean criteria chain run.
func Rank(a, b *network.TaskInstance) Ranking {
	if a.Abstract != b.Abstract {
		if b.Abstract {
			return RankKeepFirst
		}
		return RankKeepSecond
	}
	if a.ConcreteModel != b.ConcreteModel {
		if a.ConcreteModel < b.ConcreteModel {
			return RankKeepFirst
		}
		return RankKeepSecond
	}
	for _, criterion := range rankCriteria {
		av, bv := criterion(a), criterion(b)
		if av != bv {
			if av {
				return RankKeepFirst
			}
			return RankKeepSecond
		}
	}
	return RankIncomparable
}

// Disambiguator collapses a removed instance's set of candidate survivors to
// a single one through a staged chain of filters, each applied only while
// more than one candidate remains.
type Disambiguator struct {
	g        *network.Graph
	patterns []string // extra device-name match patterns (path.Match syntax)
}

// NewDisambiguator creates a Disambiguator over the given network. patterns
// optionally extends the device-name matching stage with glob patterns.
func NewDisambiguator(g *network.Graph, patterns []string) *Disambiguator {
	return &Disambiguator{g: g, patterns: patterns}
}

// Resolve reduces candidates to one survivor for removed. ok is false when
// the stages exhaust without reaching a single candidate; the caller leaves
// the instance unmerged for this pass.
func (d *Disambiguator) Resolve(removed string, candidates []string) (string, bool) {
	stages := []func(string, []string) []string{
		d.filterByRank,
		d.filterAncestors,
		d.filterByDeviceName,
		d.filterByDistance,
		d.pickDeterministic,
	}

	set := make([]string, len(candidates))
	copy(set, candidates)
	sort.Strings(set)

	for _, stage := range stages {
		if len(set) <= 1 {
			break
		}
		filtered := stage(removed, set)
		if len(filtered) > 0 {
			set = filtered
		}
	}

	if len(set) == 1 {
		return set[0], true
	}
	return "", false
}

// filterByRank discards, for every candidate pair, the worse-ranked one.
func (d *Disambiguator) filterByRank(_ string, set []string) []string {
	dropped := make(map[string]bool)
	for i := 0; i < len(set); i++ {
		for j := i + 1; j < len(set); j++ {
			a, b := d.g.Task(set[i]), d.g.Task(set[j])
			if a == nil || b == nil {
				continue
			}
			switch Rank(a, b) {
			case RankKeepFirst:
				dropped[set[j]] = true
			case RankKeepSecond:
				dropped[set[i]] = true
			}
		}
	}
	return exclude(set, dropped)
}

// filterAncestors discards candidates that are dependency-ancestors of
// another candidate, preferring the most specific (contained) one.
func (d *Disambiguator) filterAncestors(_ string, set []string) []string {
	dropped := make(map[string]bool)
	for _, a := range set {
		for _, b := range set {
			if a != b && d.g.IsDependencyAncestor(a, b) {
				dropped[a] = true
			}
		}
	}
	return exclude(set, dropped)
}

// filterByDeviceName keeps, when the removed instance is bound to a named
// resource, only candidates whose own name or hosting deployment name
// matches the resource name.
func (d *Disambiguator) filterByDeviceName(removed string, set []string) []string {
	t := d.g.Task(removed)
	if t == nil || t.DeviceName == "" {
		return set
	}
	var kept []string
	for _, id := range set {
		c := d.g.Task(id)
		if c == nil {
			continue
		}
		if d.nameMatches(c.Name, t.DeviceName) || d.nameMatches(c.Deployment, t.DeviceName) {
			kept = append(kept, id)
		}
	}
	return kept
}

// nameMatches tests a candidate name against the device name, either by
// substring or through one of the configured glob patterns.
func (d *Disambiguator) nameMatches(name, device string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, device) || strings.Contains(device, name) {
		return true
	}
	for _, p := range d.patterns {
		if ok, err := path.Match(strings.ReplaceAll(p, "{}", device), name); err == nil && ok {
			return true
		}
	}
	return false
}

// filterByDistance keeps the candidates topologically closest (minimum
// dataflow hop distance) to the removed instance's existing neighbors.
func (d *Disambiguator) filterByDistance(removed string, set []string) []string {
	neighbors := make(map[string]bool)
	for _, c := range d.g.InputsOf(removed) {
		neighbors[c.SourceID] = true
	}
	for _, c := range d.g.OutputsOf(removed) {
		neighbors[c.SinkID] = true
	}
	if len(neighbors) == 0 {
		return set
	}

	const unreachable = int(^uint(0) >> 1)
	best := unreachable
	scores := make(map[string]int, len(set))
	for _, id := range set {
		score := unreachable
		for nb := range neighbors {
			if dist, ok := d.g.Distance(id, nb); ok && dist < score {
				score = dist
			}
		}
		scores[id] = score
		if score < best {
			best = score
		}
	}
	if best == unreachable {
		return set
	}
	var kept []string
	for _, id := range set {
		if scores[id] == best {
			kept = append(kept, id)
		}
	}
	return kept
}

// pickDeterministic is the last resort: if the removed instance is not
// resource-named and every remaining candidate shares one concrete model,
// pick arbitrarily but deterministically (smallest ID).
func (d *Disambiguator) pickDeterministic(removed string, set []string) []string {
	t := d.g.Task(removed)
	if t == nil || t.DeviceName != "" {
		return set
	}
	model := ""
	for i, id := range set {
		c := d.g.Task(id)
		if c == nil {
			return set
		}
		if i == 0 {
			model = c.ConcreteModel
		} else if c.ConcreteModel != model {
			return set
		}
	}
	sorted := make([]string, len(set))
	copy(sorted, set)
	sort.Strings(sorted)
	return sorted[:1]
}

// exclude returns set minus the dropped IDs, preserving order.
func exclude(set []string, dropped map[string]bool) []string {
	if len(dropped) == 0 {
		return set
	}
	var kept []string
	for _, id := range set {
		if !dropped[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

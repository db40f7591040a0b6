package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Linked reports whether two distinct group identifiers denote the same physical cohort,
// i.e. one literally contains the other (exact case). "SY-CSDS-A" is linked to
// "SY-CSDS-A-B1" but not to "B1".
//
// Operators are expected to name child batches so that they contain the parent
// identifier; nothing here tries to repair names that do not.
func Linked(group1, group2 string) bool {
	return group1 != group2 && (strings.Contains(group1, group2) || strings.Contains(group2, group1))
}

// LinkMap is a symmetric adjacency over group identifiers. It is NOT transitive: two
// children of the same parent are linked only if one contains the other.
type LinkMap map[string]map[string]bool

// LinkageAmbiguity is a non-fatal warning raised when an identifier contains several
// identifiers that are unrelated to each other (e.g. "A-B1" containing both "A" and "B1")
type LinkageAmbiguity struct {
	Group     string
	Contained []string
}

func (ambiguity LinkageAmbiguity) Error() string {
	return fmt.Sprintf("group %q contains unrelated groups %v", ambiguity.Group, ambiguity.Contained)
}

// ResolveLinks computes the link map over a set of group identifiers
func ResolveLinks(groups []string) (LinkMap, []LinkageAmbiguity) {
	groups = lo.Uniq(lo.Compact(groups))
	slices.Sort(groups)

	links := make(LinkMap, len(groups))
	for _, group := range groups {
		links[group] = make(map[string]bool)
	}

	for i := range len(groups) - 1 {
		for j := i + 1; j < len(groups); j++ {
			group1, group2 := groups[i], groups[j]
			if Linked(group1, group2) {
				links[group1][group2] = true
				links[group2][group1] = true
			}
		}
	}

	ambiguities := make([]LinkageAmbiguity, 0)
	for _, group := range groups {
		contained := lo.Filter(links.Neighbours(group), func(neighbour string, _ int) bool {
			return strings.Contains(group, neighbour)
		})
		unrelated := lo.Filter(contained, func(neighbour string, _ int) bool {
			return lo.SomeBy(contained, func(other string) bool { return other != neighbour && !links.Linked(neighbour, other) })
		})
		if len(unrelated) > 1 {
			ambiguities = append(ambiguities, LinkageAmbiguity{Group: group, Contained: unrelated})
		}
	}

	return links, ambiguities
}

// Linked reports whether both identifiers are linked according to the map
func (links LinkMap) Linked(group1, group2 string) bool {
	return links[group1][group2]
}

// Neighbours returns the sorted identifiers linked to group
func (links LinkMap) Neighbours(group string) []string {
	neighbours := lo.Keys(links[group])
	slices.Sort(neighbours)
	return neighbours
}

// Collide reports whether two sets of target groups share a cohort: either a common
// identifier or a pair of linked identifiers
func (links LinkMap) Collide(groups1, groups2 []string) bool {
	return lo.SomeBy(groups1, func(group1 string) bool {
		return lo.SomeBy(groups2, func(group2 string) bool {
			return group1 == group2 || links.Linked(group1, group2)
		})
	})
}

// Package bloodgroup holds the ABO/Rh compatibility table used to match donors
// with recipients.
//
// The table is constant. O- can give to every group and AB+ can receive from
// every group.
package bloodgroup

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Group is one of the eight ABO/Rh blood groups.
type Group string

const (
	APos  Group = "A+"
	ANeg  Group = "A-"
	BPos  Group = "B+"
	BNeg  Group = "B-"
	ABPos Group = "AB+"
	ABNeg Group = "AB-"
	OPos  Group = "O+"
	ONeg  Group = "O-"
)

// ErrUnknownGroup is returned by Parse for labels outside the eight groups.
var ErrUnknownGroup = errors.New("unknown blood group")

// ErrIncompatible reports that a donor group cannot give to a recipient group.
// It is informational: callers use it to filter candidates.
var ErrIncompatible = errors.New("blood groups are not compatible")

// All lists the groups in display order.
var All = []Group{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

// donorsFor maps a recipient group to the donor groups it may receive from.
var donorsFor = map[Group][]Group{
	ONeg:  {ONeg},
	OPos:  {ONeg, OPos},
	ANeg:  {ONeg, ANeg},
	APos:  {ONeg, OPos, ANeg, APos},
	BNeg:  {ONeg, BNeg},
	BPos:  {ONeg, OPos, BNeg, BPos},
	ABNeg: {ONeg, ANeg, BNeg, ABNeg},
	ABPos: {ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos},
}

// recipientsOf is the inverse of donorsFor, built once at init.
var recipientsOf = func() map[Group][]Group {
	out := make(map[Group][]Group, len(All))
	for _, recipient := range All {
		for _, donor := range donorsFor[recipient] {
			out[donor] = append(out[donor], recipient)
		}
	}
	return out
}()

// canonical is the tie-break order for Priority.
var canonical = []Group{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

// priorityRank: 0 is most urgent. Ranked by how many recipient groups a donor
// group can serve, ties broken by canonical order.
var priorityRank = func() map[Group]int {
	order := slices.Clone(canonical)
	slices.SortStableFunc(order, func(a, b Group) int {
		return len(recipientsOf[b]) - len(recipientsOf[a])
	})
	out := make(map[Group]int, len(order))
	for i, g := range order {
		out[g] = i
	}
	return out
}()

// Parse normalizes a label such as " ab+ " to a Group.
// "AB Positive" style labels are not accepted.
func Parse(s string) (Group, error) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownGroup, s)
	}
	return g, nil
}

// Valid reports whether g is one of the eight groups.
func (g Group) Valid() bool {
	_, ok := donorsFor[g]
	return ok
}

func (g Group) String() string { return string(g) }

// Strings returns All as plain strings, in the same order.
func Strings() []string {
	out := make([]string, len(All))
	for i, g := range All {
		out[i] = string(g)
	}
	return out
}

// CompatibleDonorGroups returns the donor groups that may give to recipient.
// The result is a fresh slice; unknown groups yield nil.
func CompatibleDonorGroups(recipient Group) []Group {
	return slices.Clone(donorsFor[recipient])
}

// CompatibleRecipientGroups returns the recipient groups donor may give to.
func CompatibleRecipientGroups(donor Group) []Group {
	return slices.Clone(recipientsOf[donor])
}

// IsCompatible reports whether donor may give to recipient.
func IsCompatible(donor, recipient Group) bool {
	return slices.Contains(donorsFor[recipient], donor)
}

// CheckCompatible returns ErrIncompatible when donor cannot give to recipient.
func CheckCompatible(donor, recipient Group) error {
	if !IsCompatible(donor, recipient) {
		return fmt.Errorf("%w: %s cannot donate to %s", ErrIncompatible, donor, recipient)
	}
	return nil
}

// Priority returns the emergency rank of a donor group. Lower is more urgent:
// O- is 0 and AB+ is 7. Unknown groups sort last.
func Priority(g Group) int {
	if r, ok := priorityRank[g]; ok {
		return r
	}
	return len(priorityRank)
}

// ByPriority returns all eight groups from most to least urgent.
func ByPriority() []Group {
	out := slices.Clone(All)
	SortByPriority(out)
	return out
}

// SortByPriority orders groups in place from most to least urgent.
func SortByPriority(groups []Group) {
	slices.SortStableFunc(groups, func(a, b Group) int {
		return Priority(a) - Priority(b)
	})
}

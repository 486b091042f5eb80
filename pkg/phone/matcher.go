package phone

import "strings"

// Matcher decides whether a stored roster phone and a normalized purchase
// phone refer to the same person.
type Matcher interface {
	// Match reports whether memberPhone (digits as delivered by the
	// messenger, usually with country code) matches the normalized
	// purchase phone.
	Match(memberPhone, normalized string) bool
	// Clause returns a SQL fragment and argument filtering column by the
	// normalized phone, mirroring Match for set-based scans.
	Clause(column, normalized string) (string, any)
}

// Matching strategies.
const (
	StrategyContains = "contains"
	StrategyExact    = "exact"
)

// minContainsDigits guards the containment strategy against short needles:
// a 6-digit fragment would match far too many unrelated rosters.
const minContainsDigits = 8

// NewMatcher returns the matcher for the named strategy, defaulting to
// containment for unknown names.
func NewMatcher(strategy string) Matcher {
	if strings.EqualFold(strategy, StrategyExact) {
		return exactMatcher{}
	}
	return containsMatcher{}
}

// containsMatcher tolerates formatting drift by checking containment in both
// directions: a roster phone "5511987654321" contains the normalized local
// "11987654321", and a roster entry stored without country code is contained
// by the purchase number.
type containsMatcher struct{}

func (containsMatcher) Match(memberPhone, normalized string) bool {
	member := stripNonDigits(memberPhone)
	if len(normalized) < minContainsDigits || len(member) < minContainsDigits {
		return member != "" && member == normalized
	}
	return strings.Contains(member, normalized) || strings.Contains(normalized, member)
}

func (containsMatcher) Clause(column, normalized string) (string, any) {
	if len(normalized) < minContainsDigits {
		return column + " = ?", normalized
	}
	return column + " LIKE ?", "%" + normalized + "%"
}

// exactMatcher accepts only the local form or the country-code form of the
// normalized number. Roster phones are stored as delivered, so the clause has
// to enumerate both spellings instead of normalizing in SQL.
type exactMatcher struct{}

func (exactMatcher) Match(memberPhone, normalized string) bool {
	if normalized == "" {
		return false
	}
	member := stripNonDigits(memberPhone)
	return member == normalized || member == "55"+normalized
}

func (exactMatcher) Clause(column, normalized string) (string, any) {
	return column + " IN (?)", []string{normalized, "55" + normalized}
}

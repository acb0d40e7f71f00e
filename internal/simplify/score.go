package simplify

import (
	"sort"
	"strings"
)

// Importance scoring for field/element prioritization. The same score ranks
// struct fields here and whole variables in the expansion orchestrator.

const (
	highNameBonus    = 100
	mediumNameBonus  = 50
	lowNamePenalty   = 50
	nonZeroBonus     = 20
	structuredBonus  = 15
	nameLengthWeight = 1
)

// Importance computes a heuristic score for a (name, value) pair. Higher
// means more likely to matter to whoever is staring at the debugger.
func (o Options) Importance(name, value string) int {
	score := 0
	lower := strings.ToLower(name)

	if matchesAny(lower, o.HighPriorityNames) {
		score += highNameBonus
	}
	if matchesAny(lower, o.MediumPriorityNames) {
		score += mediumNameBonus
	}
	if matchesAny(lower, o.LowPriorityNames) {
		score -= lowNamePenalty
	}

	trimmed := strings.TrimSpace(value)
	if trimmed != "" && trimmed != "0" && trimmed != `""` && !nilSentinels[trimmed] {
		score += nonZeroBonus
	}
	if strings.ContainsAny(trimmed, "{[") {
		score += structuredBonus
	}

	score -= len(name) * nameLengthWeight
	return score
}

// isBusinessField reports whether the name is on the configured
// business-field priority list.
func (o Options) isBusinessField(name string) bool {
	for _, b := range o.BusinessFields {
		if name == b || strings.EqualFold(name, b) {
			return true
		}
	}
	return false
}

// rankFields orders fields by the two-stage priority: business fields first
// (keeping their relative order), then everything else by importance score
// descending with the original order as the tiebreak.
func (o Options) rankFields(fields []rawField) []rawField {
	ranked := make([]rawField, len(fields))
	copy(ranked, fields)

	sort.SliceStable(ranked, func(i, j int) bool {
		bi, bj := o.isBusinessField(ranked[i].name), o.isBusinessField(ranked[j].name)
		if bi != bj {
			return bi
		}
		if bi && bj {
			return ranked[i].order < ranked[j].order
		}
		si := o.Importance(ranked[i].name, ranked[i].value)
		sj := o.Importance(ranked[j].name, ranked[j].value)
		if si != sj {
			return si > sj
		}
		return ranked[i].order < ranked[j].order
	})
	return ranked
}

func matchesAny(lowerName string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerName, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

package correction

import (
	"regexp"
	"strings"
)

var backtickedPairRe = regexp.MustCompile("`([^`]+)`\\s*\\.\\s*`([^`]+)`")

// UnknownIdentifiers scans backticked table.column references in sql and
// returns the ones absent from the known columns. It is a warning pass over
// the final query, not a gate: identifiers written without backticks or
// through aliases are out of its reach.
func UnknownIdentifiers(sql string, columns []string) []string {
	if len(columns) == 0 {
		return nil
	}
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[strings.ToLower(col)] = true
	}

	var unknown []string
	seen := map[string]bool{}
	for _, m := range backtickedPairRe.FindAllStringSubmatch(sql, -1) {
		ref := m[1] + "." + m[2]
		key := strings.ToLower(ref)
		if !known[key] && !seen[key] {
			seen[key] = true
			unknown = append(unknown, ref)
		}
	}
	return unknown
}

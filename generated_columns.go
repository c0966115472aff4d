package main

import "fmt"

// copyableColumns drops generated columns from a source column list; the
// target recomputes them from the converted CREATE TABLE.
func copyableColumns(table string, cols []sourceColumn) (names []string, warnings []string) {
	for _, col := range cols {
		if col.Generated {
			warnings = append(warnings, fmt.Sprintf(
				"generated column %s.%s is not copied; the target computes its value",
				table, col.Name,
			))
			continue
		}
		names = append(names, col.Name)
	}
	return names, warnings
}

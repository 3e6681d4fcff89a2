package optimizer

import (
	"fmt"
	"strings"
)

// ExplainPlan renders groups as a human-readable text tree: one block
// per group naming its table and
// member constraints, and either its fused SQL or "(not combined)" for a
// solo non-combinable group.
func ExplainPlan(groups []*ConstraintGroup) string {
	var sb strings.Builder
	for i, g := range groups {
		fmt.Fprintf(&sb, "Group %d (table=%s, %d constraint(s)):\n", i+1, g.Table, len(g.Analyses))
		for _, a := range g.Analyses {
			fmt.Fprintf(&sb, "  - %s\n", a.Name)
		}
		if len(g.Analyses) == 1 && !g.Analyses[0].IsCombinable {
			sb.WriteString("  combined_sql: (not combined)\n")
			continue
		}
		fq := Fuse(g, nil)
		fmt.Fprintf(&sb, "  combined_sql: %s\n", fq.Query.String())
	}
	return sb.String()
}

// Reasoning log: one justification per evaluated day, append-only.
package agents

// AppendReasoning records the justification for one evaluated day.
func AppendReasoning(v *Villager, entry string) {
	v.ReasoningLog = append(v.ReasoningLog, entry)
}

// RecentReasoning returns the last count entries, oldest first. The slice is
// a copy.
func RecentReasoning(v *Villager, count int) []string {
	if count <= 0 || len(v.ReasoningLog) == 0 {
		return nil
	}
	start := len(v.ReasoningLog) - count
	if start < 0 {
		start = 0
	}
	out := make([]string, len(v.ReasoningLog)-start)
	copy(out, v.ReasoningLog[start:])
	return out
}

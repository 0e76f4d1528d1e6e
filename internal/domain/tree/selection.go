package tree

// Selection picks styles from a shortlist by position, by style id, or both.
type Selection struct {
	Indices []int    `json:"indices,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

// Resolve maps the selection onto shortlist entries, preserving the caller's order and dropping repeats.
// Any index outside the shortlist or unknown id yields *InvalidSelectionError.
func (sel Selection) Resolve(shortlist []Style) ([]Style, error) {
	var badIdx []int
	var badIDs []string
	seen := map[int]bool{}
	picked := make([]int, 0, len(sel.Indices)+len(sel.IDs))

	for _, i := range sel.Indices {
		if i < 0 || i >= len(shortlist) {
			badIdx = append(badIdx, i)
			continue
		}
		if !seen[i] {
			seen[i] = true
			picked = append(picked, i)
		}
	}
	for _, id := range sel.IDs {
		pos := -1
		for i, s := range shortlist {
			if id != "" && s.ID == id {
				pos = i
				break
			}
		}
		if pos < 0 {
			badIDs = append(badIDs, id)
			continue
		}
		if !seen[pos] {
			seen[pos] = true
			picked = append(picked, pos)
		}
	}
	if len(badIdx) > 0 || len(badIDs) > 0 {
		return nil, &InvalidSelectionError{Indices: badIdx, IDs: badIDs, ShortlistLen: len(shortlist)}
	}
	out := make([]Style, 0, len(picked))
	for _, i := range picked {
		out = append(out, shortlist[i])
	}
	return out, nil
}

package ledger

import "sort"

// POGroup is a deduplicated PO line: the representative row plus every row
// that shared its key
type POGroup struct {
	Key            POKey
	Representative RawPOLine
	RowIDs         []int64
}

// Deduplicate collapses rows sharing a (PO number, line) key to the row with
// the latest publish date. Rows that cannot be keyed are returned separately.
// Groups come back ordered by key.
func Deduplicate(rows []RawPOLine) (groups []POGroup, malformed []int64) {
	index := make(map[POKey]int)
	for i := range rows {
		row := rows[i]
		key, ok := row.Key()
		if !ok {
			malformed = append(malformed, row.ID)
			continue
		}
		pos, seen := index[key]
		if !seen {
			index[key] = len(groups)
			groups = append(groups, POGroup{Key: key, Representative: row, RowIDs: []int64{row.ID}})
			continue
		}
		g := &groups[pos]
		g.RowIDs = append(g.RowIDs, row.ID)
		if row.NewerThan(&g.Representative) {
			g.Representative = row
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key.Less(groups[j].Key)
	})
	return groups, malformed
}

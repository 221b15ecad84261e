package cache

import "sort"

// Compare computes the change set from prev to curr. A nil prev means every
// file of curr was added.
func Compare(prev, curr *Snapshot) Changes {
	var c Changes
	prevMap := indexByPath(prev)
	currMap := indexByPath(curr)
	for p, h := range currMap {
		before, ok := prevMap[p]
		switch {
		case !ok:
			c.Added = append(c.Added, p)
		case before != h:
			c.Changed = append(c.Changed, p)
		}
	}
	for p := range prevMap {
		if _, ok := currMap[p]; !ok {
			c.Removed = append(c.Removed, p)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Changed)
	return c
}

func indexByPath(s *Snapshot) map[string]string {
	if s == nil {
		return nil
	}
	m := make(map[string]string, len(s.Files))
	for _, f := range s.Files {
		m[f.Path] = f.Hash
	}
	return m
}

package category

import (
	"strconv"
	"strings"
)

// RebuildPaths recomputes the materialized path of every category from the
// parent map. parents maps category id -> parent id, with 0 meaning root.
// A path is the ids from root to the node joined with "-", so "1-4-9" sorts
// every subtree contiguously.
//
// The walk carries a visited set per node, so a corrupted parent chain that
// loops terminates with the partial path accumulated so far instead of
// recursing forever.
func RebuildPaths(parents map[int64]int64) map[int64]string {
	paths := make(map[int64]string, len(parents))
	for id := range parents {
		paths[id] = buildPath(id, parents)
	}
	return paths
}

func buildPath(id int64, parents map[int64]int64) string {
	var ids []int64
	visited := make(map[int64]bool)
	for cur := id; cur != 0; {
		if visited[cur] {
			break
		}
		visited[cur] = true
		ids = append(ids, cur)
		cur = parents[cur]
	}

	parts := make([]string, len(ids))
	for i, v := range ids {
		// reverse: collected leaf-first, paths read root-first
		parts[len(ids)-1-i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, "-")
}

// Depth returns the number of ids in a path: roots sit at depth 1 and every
// child at parent.depth + 1.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "-") + 1
}

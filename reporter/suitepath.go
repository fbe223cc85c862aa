package reporter

import (
	"strings"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// suitePath is one resolved ancestor of a test
type suitePath struct {
	Key   string
	Title string
	Suite *types.Suite
}

// normalizePathSegment converts a title into a path segment
func normalizePathSegment(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), "\\", "/")
}

// resolveSuitePaths lists the suite path keys of a test ordered root to immediate
// parent. The synthetic root and project nodes are left out, as are ancestors with an
// empty title; their children chain from the nearest titled ancestor.
func resolveSuitePaths(test *types.Test) []suitePath {
	if test == nil {
		return nil
	}
	var (
		paths  []suitePath
		prefix string
		seen   = make(map[string]bool)
	)
	for _, suite := range test.Ancestors() {
		if suite.Kind == types.SuiteKindRoot || suite.Kind == types.SuiteKindProject {
			continue
		}
		segment := normalizePathSegment(suite.Title)
		if segment == "" {
			continue
		}
		key := segment
		if prefix != "" {
			key = prefix + "/" + segment
		}
		prefix = key
		if seen[key] {
			continue
		}
		seen[key] = true
		paths = append(paths, suitePath{Key: key, Title: suite.Title, Suite: suite})
	}
	return paths
}

// testCodeRef builds the code reference of a test from its suite chain
func testCodeRef(paths []suitePath, test *types.Test) string {
	title := normalizePathSegment(test.Title)
	if len(paths) == 0 {
		return title
	}
	return paths[len(paths)-1].Key + "/" + title
}

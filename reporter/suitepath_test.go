package reporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

func keysOf(paths []suitePath) []string {
	var keys []string
	for _, p := range paths {
		keys = append(keys, p.Key)
	}
	return keys
}

func TestResolveSuitePaths(t *testing.T) {
	root := &types.Suite{Kind: types.SuiteKindRoot}
	project := root.AddSuite(&types.Suite{Title: "chromium", Kind: types.SuiteKindProject})
	file := project.AddSuite(&types.Suite{Title: `specs\auth\login.spec.ts`, Kind: types.SuiteKindFile})
	anonymous := file.AddSuite(&types.Suite{Kind: types.SuiteKindDescribe})
	describe := anonymous.AddSuite(&types.Suite{Title: " valid users ", Kind: types.SuiteKindDescribe})
	test := describe.AddTest(&types.Test{ID: "t1", Title: "logs in"})

	paths := resolveSuitePaths(test)
	assert.Equal(t, []string{
		"specs/auth/login.spec.ts",
		"specs/auth/login.spec.ts/valid users",
	}, keysOf(paths))
	assert.Equal(t, keysOf(paths), keysOf(resolveSuitePaths(test)), "resolution is deterministic")
	assert.Same(t, describe, paths[1].Suite)
	assert.Equal(t, "specs/auth/login.spec.ts/valid users/logs in", testCodeRef(paths, test))
}

func TestResolveSuitePaths_ChildExtendsParent(t *testing.T) {
	f := newFixture(1, 0)
	nested := f.describe.AddSuite(&types.Suite{Title: "nested", Kind: types.SuiteKindDescribe})
	test := nested.AddTest(&types.Test{ID: "n1", Title: "deep"})

	paths := resolveSuitePaths(test)
	require.Len(t, paths, 3)
	for i := 1; i < len(paths); i++ {
		assert.Equal(t, paths[i-1].Key+"/"+paths[i].Title, paths[i].Key)
	}
}

func TestResolveSuitePaths_Edges(t *testing.T) {
	assert.Nil(t, resolveSuitePaths(nil))

	root := &types.Suite{Kind: types.SuiteKindRoot}
	orphan := root.AddTest(&types.Test{ID: "o", Title: "top level"})
	assert.Empty(t, resolveSuitePaths(orphan))
	assert.Equal(t, "top level", testCodeRef(nil, orphan))
}

func TestEnsureSuiteChain_ReturnsImmediateParent(t *testing.T) {
	f := newFixture(2, 0)
	r, rec := newTestReporter(t)
	r.OnBegin(f.root)

	first := r.ensureSuiteChain(f.test(0), resolveSuitePaths(f.test(0)))
	second := r.ensureSuiteChain(f.test(1), resolveSuitePaths(f.test(1)))
	assert.Equal(t, first, second)
	assert.Len(t, rec.CallsOf("startItem"), 2, "registered suites are not started again")

	item, ok := rec.Item(first)
	require.True(t, ok)
	assert.Equal(t, "login", item.Name)
	assert.Equal(t, "login.spec.ts/login", item.CodeRef)

	empty := r.ensureSuiteChain(f.test(0), nil)
	assert.Empty(t, empty)
}

func TestSuiteBudget(t *testing.T) {
	assert.Equal(t, 3, suiteBudget(3, 0))
	assert.Equal(t, 9, suiteBudget(3, 2))
	assert.Equal(t, 0, suiteBudget(0, 5))
}

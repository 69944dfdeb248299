package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaidya/graphstage/internal/config"
	"github.com/mvaidya/graphstage/internal/dataset"
	"github.com/mvaidya/graphstage/internal/graph"
)

func rawNodes(ids ...string) []graph.RawNode {
	out := make([]graph.RawNode, len(ids))
	for i, id := range ids {
		out[i] = graph.RawNode{ID: id}
	}
	return out
}

func link(source, target string) graph.RawLink {
	return graph.RawLink{Source: source, Target: target}
}

func buildSmall(t *testing.T) *dataset.Dataset {
	t.Helper()
	d := dataset.New()
	res := d.Build(rawNodes("a", "b"), []graph.RawLink{link("a", "b")}, config.DefaultPreparation())
	require.Equal(t, 2, res.Nodes)
	require.Equal(t, 1, res.Links)
	return d
}

func TestBuild_InitialLoad(t *testing.T) {
	d := buildSmall(t)

	ia, ok := d.IndexByID("a")
	require.True(t, ok)
	ib, ok := d.IndexByID("b")
	require.True(t, ok)
	assert.Equal(t, 0, ia)
	assert.Equal(t, 1, ib)

	_, links := d.Snapshot()
	require.Len(t, links, 1)
	assert.Equal(t, 0, links[0].SourceIndex)
	assert.Equal(t, 1, links[0].TargetIndex)
}

func TestBuild_Idempotent(t *testing.T) {
	nodes := rawNodes("x", "y", "z")
	links := []graph.RawLink{link("x", "z"), link("z", "y")}
	cfg := config.DefaultPreparation()

	d1 := dataset.New()
	d1.Build(nodes, links, cfg)
	n1, l1 := d1.Snapshot()

	d2 := dataset.New()
	d2.Build(nodes, links, cfg)
	n2, l2 := d2.Snapshot()

	assert.Equal(t, n1, n2)
	assert.Equal(t, l1, l2)
}

func TestBuild_DropsInvalidRecords(t *testing.T) {
	d := dataset.New()
	res := d.Build(
		[]graph.RawNode{{ID: "a"}, {ID: ""}, {ID: "undefined"}, {ID: "a"}},
		[]graph.RawLink{link("a", "ghost")},
		config.DefaultPreparation(),
	)

	assert.Equal(t, 1, res.Nodes)
	assert.Equal(t, 3, res.DroppedNodes)
	assert.Equal(t, 0, res.Links)
	assert.Equal(t, 1, res.DroppedLinks)
}

func TestApplyAdd_IndexStability(t *testing.T) {
	d := buildSmall(t)

	res, err := d.ApplyAdd(rawNodes("c"), []graph.RawLink{link("b", "c")})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.AddedIndices)
	assert.Equal(t, 1, res.AddedLinks)

	ia, _ := d.IndexByID("a")
	ib, _ := d.IndexByID("b")
	assert.Equal(t, 0, ia, "existing indices must not move on add")
	assert.Equal(t, 1, ib)

	_, links := d.Snapshot()
	require.Len(t, links, 2)
	assert.Equal(t, 1, links[1].SourceIndex)
	assert.Equal(t, 2, links[1].TargetIndex)
}

func TestApplyAdd_DuplicateIDRefreshesInPlace(t *testing.T) {
	d := buildSmall(t)

	res, err := d.ApplyAdd([]graph.RawNode{{ID: "a", Label: "Alpha"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.AddedIndices)
	assert.Equal(t, []int{0}, res.UpdatedIndices)

	n, ok := d.NodeByIndex(0)
	require.True(t, ok)
	assert.Equal(t, "Alpha", n.Label)
}

func TestApplyRemoveNodes_CascadesAndKeepsGaps(t *testing.T) {
	d := buildSmall(t)
	_, err := d.ApplyAdd(rawNodes("c"), []graph.RawLink{link("b", "c")})
	require.NoError(t, err)

	nodesRemoved, linksRemoved, err := d.ApplyRemoveNodes([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 1, nodesRemoved)
	assert.Equal(t, 2, linksRemoved, "both links touching b must go in the same step")

	_, links := d.Snapshot()
	for _, l := range links {
		assert.NotEqual(t, "b", l.Source)
		assert.NotEqual(t, "b", l.Target)
	}

	ia, ok := d.IndexByID("a")
	require.True(t, ok)
	assert.Equal(t, 0, ia)
	ic, ok := d.IndexByID("c")
	require.True(t, ok)
	assert.Equal(t, 2, ic, "index gap at 1 stays until the next full build")

	_, ok = d.NodeByIndex(1)
	assert.False(t, ok)
}

func TestApplyRemoveNodes_UnknownIDIsNoop(t *testing.T) {
	d := buildSmall(t)
	nodesRemoved, linksRemoved, err := d.ApplyRemoveNodes([]string{"ghost"})
	require.NoError(t, err)
	assert.Zero(t, nodesRemoved)
	assert.Zero(t, linksRemoved)
}

func TestApplyUpdateNodes(t *testing.T) {
	t.Run("updates in place keeping index", func(t *testing.T) {
		d := buildSmall(t)
		indices, err := d.ApplyUpdateNodes([]graph.RawNode{{
			ID:         "a",
			Properties: map[string]any{"degree_centrality": 0.9},
		}})
		require.NoError(t, err)
		assert.Equal(t, []int{0}, indices)

		n, ok := d.NodeByIndex(0)
		require.True(t, ok)
		assert.Equal(t, 0.9, n.Degree)
		assert.Equal(t, 0.9, n.Size)
	})

	t.Run("unknown id fails without partial writes", func(t *testing.T) {
		d := buildSmall(t)
		_, err := d.ApplyUpdateNodes([]graph.RawNode{
			{ID: "a", Label: "changed"},
			{ID: "ghost"},
		})
		require.ErrorIs(t, err, dataset.ErrUnknownNode)

		n, _ := d.NodeByIndex(0)
		assert.Equal(t, "a", n.Label, "failed batch must not be half-applied")
	})
}

func TestApplyUpdateLinks(t *testing.T) {
	t.Run("first match wins on multi-edges", func(t *testing.T) {
		d := dataset.New()
		d.Build(rawNodes("a", "b"), []graph.RawLink{
			{Source: "a", Target: "b", Weight: 1.0},
			{Source: "a", Target: "b", Weight: 2.0},
		}, config.DefaultPreparation())

		n, err := d.ApplyUpdateLinks([]graph.RawLink{{Source: "a", Target: "b", Weight: 5.0}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, links := d.Snapshot()
		assert.Equal(t, 5.0, links[0].Weight)
		assert.Equal(t, 2.0, links[1].Weight)
	})

	t.Run("unknown pair is an error", func(t *testing.T) {
		d := buildSmall(t)
		_, err := d.ApplyUpdateLinks([]graph.RawLink{link("b", "a")})
		require.ErrorIs(t, err, dataset.ErrUnknownLink)
	})
}

func TestApplyRemoveLinks(t *testing.T) {
	d := buildSmall(t)
	n, err := d.ApplyRemoveLinks([]graph.LinkKey{{Source: "a", Target: "b"}, {Source: "ghost", Target: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := d.Stats()
	assert.Equal(t, 0, st.EdgeCount)
	assert.Equal(t, 2, st.NodeCount)
}

func TestMutationBeforeBuild(t *testing.T) {
	d := dataset.New()

	_, err := d.ApplyAdd(rawNodes("a"), nil)
	assert.ErrorIs(t, err, dataset.ErrNotBuilt)
	_, err = d.ApplyUpdateNodes(rawNodes("a"))
	assert.ErrorIs(t, err, dataset.ErrNotBuilt)
	_, _, err = d.ApplyRemoveNodes([]string{"a"})
	assert.ErrorIs(t, err, dataset.ErrNotBuilt)
	_, err = d.ApplyRemoveLinks([]graph.LinkKey{{Source: "a", Target: "b"}})
	assert.ErrorIs(t, err, dataset.ErrNotBuilt)
}

func TestBuild_StartsNewGenerationAndCompacts(t *testing.T) {
	d := buildSmall(t)
	gen := d.Generation()

	_, _, err := d.ApplyRemoveNodes([]string{"a"})
	require.NoError(t, err)

	d.Build(rawNodes("b", "c"), nil, config.DefaultPreparation())
	assert.Equal(t, gen+1, d.Generation())

	ib, ok := d.IndexByID("b")
	require.True(t, ok)
	assert.Equal(t, 0, ib, "rebuild compacts indices in input order")
}

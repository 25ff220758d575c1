package datatree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/simplechan/internal/config"
)

func TestBuild_OrdersCalcsByDependency(t *testing.T) {
	groups := []*config.GroupDef{{
		Name: "g",
		Channels: []*config.ChannelDef{
			{Name: "total", Kind: config.KindCalc, Expr: mustExpr(t, "g.double + g.half")},
			{Name: "double", Kind: config.KindCalc, Expr: mustExpr(t, "g.base * 2")},
			{Name: "half", Kind: config.KindCalc, Expr: mustExpr(t, "g.double / 4")},
			{Name: "base", Kind: config.KindDirect, Number: 1},
		},
	}}

	src := newFakeSource()
	tree, err := Build(context.Background(), src, groups, nil)
	require.NoError(t, err)

	var order []string
	for _, n := range tree.calcs {
		order = append(order, n.Name)
	}
	assert.Equal(t, []string{"double", "half", "total"}, order)

	src.values[1] = 4
	tree.Process(context.Background(), 1, nil)
	total, err := tree.Find("g.total")
	require.NoError(t, err)
	assert.Equal(t, 10.0, total.Value(), "one tick is enough for chained calcs")
}

func TestBuild_RejectsCalcCycles(t *testing.T) {
	testCases := []struct {
		name     string
		channels []*config.ChannelDef
	}{
		{
			name: "self reference",
			channels: []*config.ChannelDef{
				{Name: "a", Kind: config.KindCalc, Expr: mustExpr(t, "g.a + 1")},
			},
		},
		{
			name: "two-node loop",
			channels: []*config.ChannelDef{
				{Name: "a", Kind: config.KindCalc, Expr: mustExpr(t, "g.b + 1")},
				{Name: "b", Kind: config.KindCalc, Expr: mustExpr(t, "g.a - 1")},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(context.Background(), newFakeSource(), []*config.GroupDef{{Name: "g", Channels: tc.channels}}, nil)
			require.ErrorIs(t, err, ErrBuild)
			assert.ErrorContains(t, err, "cycle detected")
		})
	}
}

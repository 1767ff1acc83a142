package draw_list

import (
	"context"
	"testing"

	"github.com/specialistvlad/rendergraph/internal/graph"
	"github.com/specialistvlad/rendergraph/internal/hcl"
	"github.com/specialistvlad/rendergraph/internal/nullgpu"
	"github.com/specialistvlad/rendergraph/internal/registry"
	"github.com/specialistvlad/rendergraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestDrawList_UsesTheBoundViewsList(t *testing.T) {
	r := registry.New(&Module{})
	exec, err := r.Instantiate(context.Background(), hcl.NewConverter(), "draw_list", graph.KindRaster,
		map[string]cty.Value{"list": cty.StringVal("opaque")})
	require.NoError(t, err)

	frame := &graph.FrameContext{
		Views: []graph.ViewInfo{
			{Name: "main"},
			{Name: "mirror", DrawLists: map[string][]graph.DrawItem{
				"opaque": {{VertexCount: 36, InstanceCount: 1}, {IndexCount: 600, InstanceCount: 4}},
			}},
		},
		DrawLists: map[string][]graph.DrawItem{"opaque": {{VertexCount: 3, InstanceCount: 1}}},
	}

	list, err := testutil.Record(t, exec, graph.TaskBinding{Frame: frame, Instance: testutil.PerViewInstance("scene", 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count(nullgpu.OpDraw))
	assert.Equal(t, 1, list.Count(nullgpu.OpDrawIndexed))
	assert.Equal(t, [3]uint32{600, 4, 0}, list.Commands[1].Args)

	list, err = testutil.Record(t, exec, graph.TaskBinding{Frame: frame, Instance: testutil.PerViewInstance("scene", 0)})
	require.NoError(t, err)
	require.Len(t, list.Commands, 1, "views without the list fall back to the frame-wide one")
	assert.Equal(t, [3]uint32{3, 1, 0}, list.Commands[0].Args)
}

func TestDrawList_RequiresListArgument(t *testing.T) {
	r := registry.New(&Module{})
	_, err := r.Instantiate(context.Background(), hcl.NewConverter(), "draw_list", graph.KindRaster, nil)
	assert.ErrorContains(t, err, `missing required argument "list"`)
}

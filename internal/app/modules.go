package app

import (
	"github.com/specialistvlad/rendergraph/internal/registry"
	"github.com/specialistvlad/rendergraph/modules/clear_pass"
	"github.com/specialistvlad/rendergraph/modules/copy_pass"
	"github.com/specialistvlad/rendergraph/modules/dispatch"
	"github.com/specialistvlad/rendergraph/modules/draw_list"
	"github.com/specialistvlad/rendergraph/modules/fullscreen"
)

// coreModules is the definitive list of all executor modules that are
// compiled into the rendergraph binary.
var coreModules = []registry.Module{
	&fullscreen.Module{},
	&draw_list.Module{},
	&dispatch.Module{},
	&copy_pass.Module{},
	&clear_pass.Module{},
}

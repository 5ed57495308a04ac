package app

import (
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/modules/clock"
	"github.com/specialistvlad/propshell/modules/envvar"
	"github.com/specialistvlad/propshell/modules/feed"
	"github.com/specialistvlad/propshell/modules/label"
	"github.com/specialistvlad/propshell/modules/print"
	"github.com/specialistvlad/propshell/modules/socketio"
	"github.com/specialistvlad/propshell/modules/window"
)

// CoreModules returns the definitive list of all kinds that are compiled
// into the propshell binary.
func CoreModules() []registry.Module {
	return []registry.Module{
		&clock.Module{},
		&envvar.Module{},
		&feed.Module{},
		&label.Module{},
		&print.Module{},
		&socketio.Module{},
		&window.Module{},
	}
}

// Package apps lists the modules shipped with slotkit.
package apps

import (
	"github.com/openhis/slotkit/internal/apps/bind"
	"github.com/openhis/slotkit/internal/apps/home"
	"github.com/openhis/slotkit/internal/apps/laboratory"
	"github.com/openhis/slotkit/internal/apps/patientsearch"
	"github.com/openhis/slotkit/internal/apps/pharmacy"
	"github.com/openhis/slotkit/internal/apps/radiology"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
)

// All returns every module bound to deps.
func All(deps bind.Deps) []extension.Module {
	return []extension.Module{
		home.Module(deps),
		pharmacy.Module(deps),
		radiology.Module(deps),
		laboratory.Module(deps),
		patientsearch.Module(deps),
	}
}

// Install registers every module into reg.
func Install(reg *extension.Registry, store *swr.Store, client *resource.Client) ([]*extension.Handle, error) {
	return extension.Install(reg, All(bind.Deps{Store: store, Client: client})...)
}

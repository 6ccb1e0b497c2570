package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/flo-mic/stackgen/internal/config"
	"github.com/flo-mic/stackgen/internal/descriptor"
)

func validateNames(s string) error {
	for _, n := range parseList(s) {
		if err := descriptor.ValidateName(n); err != nil {
			return err
		}
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func storeOptions(stores []descriptor.DataStore, selected func(descriptor.DataStore) bool) []huh.Option[string] {
	labels := map[descriptor.DataStore]string{
		descriptor.StorePostgres: "PostgreSQL + pgAdmin",
		descriptor.StoreMongo:    "MongoDB",
		descriptor.StoreRedis:    "Redis",
	}
	var opts []huh.Option[string]
	for _, s := range stores {
		opts = append(opts, huh.NewOption(labels[s], string(s)).Selected(selected(s)))
	}
	return opts
}

// promptSite asks for the public side of a project: domain, email, staging.
func promptSite(domain, email *string, staging *bool) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Domain").
			Description("Public hosts become <app>.<domain>, api.<backend>.<domain> and pgadmin.<domain>.").
			Value(domain).
			Validate(required("domain")),
		huh.NewInput().
			Title("Email for Let's Encrypt").
			Value(email).
			Validate(required("email")),
		huh.NewConfirm().
			Title("Use the Let's Encrypt staging CA?").
			Description("Recommended until DNS is confirmed; staging certificates are not trusted by browsers.").
			Value(staging),
	)).Run()
}

// promptFrontends asks for frontend names and then the kind of each one.
func promptFrontends(title string) ([]descriptor.Frontend, error) {
	var names string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Description("Comma separated, empty for none.").
			Value(&names).
			Validate(validateNames),
	)).Run(); err != nil {
		return nil, err
	}

	var out []descriptor.Frontend
	for _, n := range parseList(names) {
		kind := string(descriptor.KindSPA)
		if err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Framework for %s", n)).
				Options(
					huh.NewOption("Vue (Vite SPA, served by nginx)", string(descriptor.KindSPA)),
					huh.NewOption("Nuxt (node server)", string(descriptor.KindMeta)),
				).
				Value(&kind),
		)).Run(); err != nil {
			return nil, err
		}
		out = append(out, descriptor.Frontend{Name: n, Kind: descriptor.Kind(kind)})
	}
	return out, nil
}

func promptNew(a *newAnswers) error {
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Project name").
			Description("Used for container names and the socket host api.socket.<project>.<domain>.").
			Value(&a.Project).
			Validate(required("project name")),
	)).Run(); err != nil {
		return err
	}
	if err := promptSite(&a.Domain, &a.Email, &a.Staging); err != nil {
		return err
	}

	var stores []string
	var backends string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Data stores").
			Options(storeOptions(allStores, func(s descriptor.DataStore) bool { return slices.Contains(a.Stores, s) })...).
			Value(&stores),
		huh.NewInput().
			Title("Backend services").
			Description("Comma separated. The socket service is always added.").
			Value(&backends).
			Validate(validateNames),
	)).Run(); err != nil {
		return err
	}
	parsed, err := parseStores(stores)
	if err != nil {
		return err
	}
	a.Stores = parsed
	a.Backends = append(a.Backends, parseList(backends)...)

	fronts, err := promptFrontends("Frontend apps")
	if err != nil {
		return err
	}
	a.Frontends = append(a.Frontends, fronts...)
	return nil
}

// promptExtend asks only for additions and stores to enable.
func promptExtend(d descriptor.Descriptor, x *edits) error {
	var backends string
	var enable []string
	fields := []huh.Field{
		huh.NewInput().
			Title("New backend services").
			Description("Comma separated, empty for none.").
			Value(&backends).
			Validate(validateNames),
	}
	if off := disabledStores(d); len(off) > 0 {
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Enable data stores").
			Options(storeOptions(off, func(descriptor.DataStore) bool { return false })...).
			Value(&enable))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}
	x.AddBackends = parseList(backends)
	stores, err := parseStores(enable)
	if err != nil {
		return err
	}
	x.Enable = stores

	fronts, err := promptFrontends("New frontend apps")
	if err != nil {
		return err
	}
	x.AddFrontends = fronts
	return nil
}

func disabledStores(d descriptor.Descriptor) []descriptor.DataStore {
	var off []descriptor.DataStore
	for _, s := range allStores {
		if !slices.Contains(d.DataStores.Enabled(), s) {
			off = append(off, s)
		}
	}
	return off
}

// Edit actions offered by promptEdit.
const (
	actionRenameBackend  = "rename-backend"
	actionRenameFrontend = "rename-frontend"
	actionRemoveBackend  = "remove-backend"
	actionRemoveFrontend = "remove-frontend"
	actionStores         = "stores"
	actionSite           = "site"
)

// promptEdit asks for one change: a rename, a removal, the store selection or
// the public settings.
func promptEdit(d descriptor.Descriptor, x *edits) error {
	var action string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("What do you want to change?").
			Options(
				huh.NewOption("Rename a backend", actionRenameBackend),
				huh.NewOption("Rename a frontend", actionRenameFrontend),
				huh.NewOption("Remove a backend", actionRemoveBackend),
				huh.NewOption("Remove a frontend", actionRemoveFrontend),
				huh.NewOption("Data stores", actionStores),
				huh.NewOption("Domain, email, staging", actionSite),
			).
			Value(&action),
	)).Run(); err != nil {
		return err
	}

	var fronts []string
	for _, f := range d.Frontends {
		fronts = append(fronts, f.Name)
	}
	var backs []string
	for _, b := range d.Backends {
		if b != descriptor.SocketService {
			backs = append(backs, b)
		}
	}

	switch action {
	case actionRenameBackend, actionRenameFrontend:
		names := backs
		if action == actionRenameFrontend {
			names = fronts
		}
		if len(names) == 0 {
			return fmt.Errorf("nothing to rename")
		}
		var old, name string
		if err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().Title("Rename").Options(huh.NewOptions(names...)...).Value(&old),
			huh.NewInput().Title("New name").Value(&name).Validate(descriptor.ValidateName),
		)).Run(); err != nil {
			return err
		}
		if action == actionRenameBackend {
			x.RenameBackends = append(x.RenameBackends, [2]string{old, name})
		} else {
			x.RenameFrontends = append(x.RenameFrontends, [2]string{old, name})
		}

	case actionRemoveBackend, actionRemoveFrontend:
		names := backs
		if action == actionRemoveFrontend {
			names = fronts
		}
		if len(names) == 0 {
			return fmt.Errorf("nothing to remove")
		}
		var picked []string
		if err := huh.NewForm(huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Remove").
				Description("Directories are kept on disk; delete them yourself when you are sure.").
				Options(huh.NewOptions(names...)...).
				Value(&picked),
		)).Run(); err != nil {
			return err
		}
		if action == actionRemoveBackend {
			x.RemoveBackends = picked
		} else {
			x.RemoveFrontends = picked
		}

	case actionStores:
		enabled := d.DataStores.Enabled()
		var picked []string
		if err := huh.NewForm(huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Data stores").
				Options(storeOptions(allStores, func(s descriptor.DataStore) bool { return slices.Contains(enabled, s) })...).
				Value(&picked),
		)).Run(); err != nil {
			return err
		}
		want, err := parseStores(picked)
		if err != nil {
			return err
		}
		for _, s := range allStores {
			switch on := slices.Contains(want, s); {
			case on && !slices.Contains(enabled, s):
				x.Enable = append(x.Enable, s)
			case !on && slices.Contains(enabled, s):
				x.Disable = append(x.Disable, s)
			}
		}

	case actionSite:
		domain, email, staging := d.Domain, d.Email, d.Staging
		if err := promptSite(&domain, &email, &staging); err != nil {
			return err
		}
		x.Domain, x.Email, x.Staging = &domain, &email, &staging
	}
	return nil
}

// promptRecovered collects what a descriptor rebuilt from directories lacks.
func promptRecovered(d *descriptor.Descriptor, defaults *config.Defaults) error {
	if d.Domain == "" {
		d.Domain = defaults.Domain
	}
	if d.Email == "" {
		d.Email = defaults.Email
	}
	if err := promptSite(&d.Domain, &d.Email, &d.Staging); err != nil {
		return err
	}
	var picked []string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Which data stores does this project use?").
			Options(storeOptions(allStores, func(descriptor.DataStore) bool { return false })...).
			Value(&picked),
	)).Run(); err != nil {
		return err
	}
	stores, err := parseStores(picked)
	if err != nil {
		return err
	}
	for _, s := range stores {
		if *d, err = d.SetDataStore(s, true); err != nil {
			return err
		}
	}
	return nil
}

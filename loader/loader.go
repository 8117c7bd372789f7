package loader

import (
	"context"
	stderrors "errors"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/manifest"
	"github.com/wippyai/bindbridge/registry"
)

// Catalog maps manifest type names to the Go types they bind. A
// "module.Type" key takes precedence over a bare "Type" key.
type Catalog map[string]reflect.Type

// Add records T under name.
func Add[T any](c Catalog, name string) {
	c[name] = reflect.TypeFor[T]()
}

func (c Catalog) lookup(module, name string) (reflect.Type, bool) {
	if t, ok := c[module+"."+name]; ok {
		return t, true
	}
	t, ok := c[name]
	return t, ok
}

// Options configures Load.
type Options struct {
	// KeepGoing loads the remaining modules after a failure and returns
	// every failure joined.
	KeepGoing bool
}

// Report describes what a load did.
type Report struct {
	// Records holds the record of every declared type in file order,
	// whether newly registered or already present.
	Records []*registry.Record
	// Existing counts declarations that matched a prior registration.
	Existing int
	// Failed names the modules that did not load completely.
	Failed []string
}

// Load registers every module of f into reg in file order. A module stops
// at its first failing type; the error names the module and the type.
func Load(ctx context.Context, reg *registry.Registry, f *manifest.File, catalog Catalog, opts Options) (*Report, error) {
	if reg == nil || f == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "registry and manifest are required")
	}

	report := &Report{}
	var errs []error

	for _, m := range f.Modules {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		err := loadModule(reg, m, catalog, report)
		if err == nil {
			Logger().Info("module loaded",
				zap.String("module", m.Name),
				zap.String("technology", m.Tech()),
				zap.Int("types", len(m.Types)))
			continue
		}

		Logger().Error("module failed to load",
			zap.String("module", m.Name),
			zap.Error(err))
		report.Failed = append(report.Failed, m.Name)
		if !opts.KeepGoing {
			return report, err
		}
		errs = append(errs, err)
	}

	return report, stderrors.Join(errs...)
}

func loadModule(reg *registry.Registry, m manifest.Module, catalog Catalog, report *Report) error {
	for _, t := range m.Types {
		goType, ok := catalog.lookup(m.Name, t.Name)
		if !ok {
			return errors.Registration(m.Name, t.Name,
				errors.NotFound(errors.PhaseLoad, "type", t.Name))
		}

		shape, err := t.Shape()
		if err != nil {
			return errors.Registration(m.Name, t.Name, err)
		}

		before := reg.Len()
		rec, err := reg.Register(registry.Record{
			Type:       goType,
			Name:       t.Name,
			Technology: m.Tech(),
			Holder:     t.HolderKind(),
			Layout:     registry.Layout{Shape: shape},
		})
		if err != nil {
			return errors.Registration(m.Name, t.Name, err)
		}
		if reg.Len() == before {
			report.Existing++
		}
		report.Records = append(report.Records, rec)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/internal/challenge"
	"github.com/wippyai/bindbridge/loader"
	"github.com/wippyai/bindbridge/manifest"
	"github.com/wippyai/bindbridge/reflectbind"
	"github.com/wippyai/bindbridge/registry"
	"github.com/wippyai/bindbridge/wasmbind"
)

// manifestPath picks the positional argument, falling back to config.
func (a *app) manifestPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.Manifest != "" {
		return a.cfg.Manifest, nil
	}
	return "", fmt.Errorf("no manifest given (pass a path or set manifest in config)")
}

// load parses path and registers it into a fresh registry.
func (a *app) load(ctx context.Context, path string) (*registry.Registry, *loader.Report, error) {
	f, err := manifest.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	reg := registry.New()
	report, err := loader.Load(ctx, reg, f, challenge.Catalog(), loader.Options{KeepGoing: a.cfg.KeepGoing})
	return reg, report, err
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [manifest]",
		Short: "Load a manifest into a fresh registry and report conflicts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.manifestPath(args)
			if err != nil {
				return err
			}
			reg, report, err := a.load(cmd.Context(), path)
			if err != nil {
				if report != nil && len(report.Failed) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed modules: %v\n", report.Failed)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d types registered (%d shared with earlier modules)\n",
				path, reg.Len(), report.Existing)
			return nil
		},
	}
}

func newTypesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types [manifest]",
		Short: "Print the registry a manifest produces",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.manifestPath(args)
			if err != nil {
				return err
			}
			reg, _, err := a.load(cmd.Context(), path)
			if err != nil && reg == nil {
				return err
			}
			if err != nil {
				a.log.Warn("manifest loaded with errors", zap.Error(err))
			}

			if a.cfg.Interactive && term.IsTerminal(int(os.Stdout.Fd())) {
				return runBrowser(path, reg)
			}
			printTypes(cmd.OutOrStdout(), reg)
			return err
		},
	}
	cmd.Flags().BoolP("interactive", "i", false, "browse types in a terminal UI")
	return cmd
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func printTypes(w io.Writer, reg *registry.Registry) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "NAME", "GO TYPE", "HOLDER", "SIZE", "ALIGN", "TECHNOLOGY").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for i := range reg.Len() {
		rec, _ := reg.ByIndex(i)
		t.Row(typeRow(rec)...)
	}
	fmt.Fprintln(w, t.Render())
}

func typeRow(rec *registry.Record) []string {
	return []string{
		strconv.Itoa(rec.Index),
		rec.Name,
		rec.Type.String(),
		rec.Holder.String(),
		strconv.FormatUint(uint64(rec.Layout.Size), 10),
		strconv.FormatUint(uint64(rec.Layout.Align), 10),
		rec.Technology,
	}
}

func newDemoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo [manifest]",
		Short: "Run the bindings challenge",
		Long: `demo binds the challenge types by reflection and runs the Pair, WhatsIt
and iteration scenarios. Given a manifest, its modules load first into the
same registry, so the reflection module meets whatever they registered.
A WebAssembly bridge is then installed and asked about a live object.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.demo(cmd, args)
		},
	}
	return cmd
}

func (a *app) demo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	reg := registry.New()
	if len(args) > 0 {
		f, err := manifest.ParseFile(args[0])
		if err != nil {
			return err
		}
		if _, err := loader.Load(ctx, reg, f, challenge.Catalog(), loader.Options{KeepGoing: a.cfg.KeepGoing}); err != nil {
			return err
		}
	}

	in := host.NewInterpreter()
	c := cast.New(in, reg)
	m := reflectbind.NewModule("challenge", c)
	if err := challenge.Bind(m); err != nil {
		return err
	}

	steps, err := challenge.Demo(m)
	for _, s := range steps {
		fmt.Fprintf(out, "%-22s %s\n", s.Name, s.Result)
	}
	if err != nil {
		return err
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	bridge, err := wasmbind.Install(ctx, rt, in, wasmbind.Options{Registry: reg, ModuleName: a.cfg.ModuleName})
	if err != nil {
		return err
	}

	h, err := cast.Out[challenge.WhatsIt](c, cast.NewShared(&challenge.WhatsIt{Name: "guest", Value: 3}), cast.TakeOwnership, nil)
	if err != nil {
		return err
	}
	defer h.Release()
	ref, err := bridge.Lend(h)
	if err != nil {
		return err
	}

	guest, err := bridge.Guest(ctx)
	if err != nil {
		return err
	}
	defer guest.Close(ctx)

	var callErr error
	call := func(name string, params ...uint32) int32 {
		res, err := guest.Call(ctx, name, params...)
		if err != nil {
			a.log.Error("bridge call", zap.String("func", name), zap.Error(err))
			callErr = err
			return -1
		}
		return res
	}

	idx := call("type_index", ref)
	fmt.Fprintf(out, "%-22s %d types, WhatsIt at #%d, refcount %d\n", "wasm bridge",
		call("type_count"), idx, call("refcount", ref))
	for _, holder := range []registry.Holder{registry.HolderShared, registry.HolderUnique} {
		st := wasmbind.Status(call("cast", ref, uint32(idx), uint32(holder)))
		fmt.Fprintf(out, "%-22s %s\n", "guest cast "+holder.String(), st)
	}
	call("decref", ref)
	return callErr
}

package wasmbind

import (
	"context"
	"strconv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
)

// Guest is a WebAssembly module that imports every bridge function and
// re-exports it under the same name. It lets Go code drive the bridge the
// way a guest would, through real wasm calls.
type Guest struct {
	module api.Module
}

// Guest instantiates a forwarding guest linked against this bridge.
func (b *Bridge) Guest(ctx context.Context) (*Guest, error) {
	name := b.name + "-guest-" + strconv.FormatUint(uint64(b.guests.Add(1)), 10)
	bin := forwardingModule(b.name, b.funcs())

	mod, err := b.rt.InstantiateWithConfig(ctx, bin, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBridge, errors.KindInvalidInput, err, "instantiate guest "+name)
	}
	Logger().Debug("guest instantiated", zap.String("module", name))
	return &Guest{module: mod}, nil
}

// Call invokes the bridge function name through the guest.
func (g *Guest) Call(ctx context.Context, name string, params ...uint32) (int32, error) {
	fn := g.module.ExportedFunction(name)
	if fn == nil {
		return 0, errors.New(errors.PhaseBridge, errors.KindNotFound).
			Path(name).
			Detail("guest exports no such function").
			Build()
	}
	args := make([]uint64, len(params))
	for i, p := range params {
		args[i] = api.EncodeU32(p)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseBridge, errors.KindInvalidInput, err, "call "+name)
	}
	return api.DecodeI32(res[0]), nil
}

// Close closes the guest module.
func (g *Guest) Close(ctx context.Context) error {
	return g.module.Close(ctx)
}

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secExport   = 7
	secCode     = 10

	kindFunc = 0x00
	typeFunc = 0x60

	opLocalGet = 0x20
	opCall     = 0x10
	opEnd      = 0x0b
)

// forwardingModule encodes a core module importing each of funcs from
// module and exporting a function of the same name that passes its
// arguments straight through.
func forwardingModule(module string, funcs []hostFunc) []byte {
	var types, imports, decls, exports, code []byte

	types = uleb(types, uint32(len(funcs)))
	imports = uleb(imports, uint32(len(funcs)))
	decls = uleb(decls, uint32(len(funcs)))
	exports = uleb(exports, uint32(len(funcs)))
	code = uleb(code, uint32(len(funcs)))

	n := uint32(len(funcs))
	for i, f := range funcs {
		idx := uint32(i)

		types = append(types, typeFunc)
		types = valueTypes(types, f.params)
		types = valueTypes(types, f.results)

		imports = encName(imports, module)
		imports = encName(imports, f.name)
		imports = append(imports, kindFunc)
		imports = uleb(imports, idx)

		decls = uleb(decls, idx)

		exports = encName(exports, f.name)
		exports = append(exports, kindFunc)
		exports = uleb(exports, n+idx)

		body := []byte{0x00} // no locals
		for p := range f.params {
			body = append(body, opLocalGet)
			body = uleb(body, uint32(p))
		}
		body = append(body, opCall)
		body = uleb(body, idx)
		body = append(body, opEnd)
		code = uleb(code, uint32(len(body)))
		code = append(code, body...)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = section(out, secType, types)
	out = section(out, secImport, imports)
	out = section(out, secFunction, decls)
	out = section(out, secExport, exports)
	out = section(out, secCode, code)
	return out
}

func section(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = uleb(out, uint32(len(content)))
	return append(out, content...)
}

func valueTypes(out []byte, vts []api.ValueType) []byte {
	out = uleb(out, uint32(len(vts)))
	return append(out, vts...)
}

func encName(out []byte, s string) []byte {
	out = uleb(out, uint32(len(s)))
	return append(out, s...)
}

func uleb(out []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}

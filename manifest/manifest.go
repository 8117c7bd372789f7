package manifest

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/registry"
)

// File is a decoded manifest.
type File struct {
	Filename string
	Modules  []Module `hcl:"module,block"`
}

// Module is one binding module and the types it registers, in order.
type Module struct {
	Name       string `hcl:"name,label"`
	Technology string `hcl:"technology,optional"`
	Types      []Type `hcl:"type,block"`
}

// Type declares one registered type.
type Type struct {
	Name   string  `hcl:"name,label"`
	Holder string  `hcl:"holder"`
	Doc    string  `hcl:"doc,optional"`
	Fields []Field `hcl:"field,block"`
}

// Field is one member of a type's object layout.
type Field struct {
	Name string `hcl:"name,label"`
	Type string `hcl:"type"`
}

// Parse decodes an HCL manifest held in src. The filename is used in
// diagnostics only.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.ParseFailed(filename, diags)
	}
	return decode(f.Body, filename)
}

// ParseFile reads and decodes the manifest at path.
func ParseFile(path string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.ParseFailed(path, diags)
	}
	return decode(f.Body, path)
}

func decode(body hcl.Body, filename string) (*File, error) {
	var file File
	if diags := gohcl.DecodeBody(body, nil, &file); diags.HasErrors() {
		return nil, errors.ParseFailed(filename, diags)
	}
	file.Filename = filename

	if err := file.Validate(); err != nil {
		return nil, err
	}

	Logger().Debug("manifest decoded",
		zap.String("file", filename),
		zap.Int("modules", len(file.Modules)))
	return &file, nil
}

// Validate checks holders, field types and name uniqueness. A type name
// may appear in more than one module; that is a registration concern.
func (f *File) Validate() error {
	modules := make(map[string]bool, len(f.Modules))
	for _, m := range f.Modules {
		if m.Name == "" {
			return invalid(f.Filename, "module with empty name")
		}
		if modules[m.Name] {
			return invalid(f.Filename, fmt.Sprintf("duplicate module %q", m.Name))
		}
		modules[m.Name] = true

		types := make(map[string]bool, len(m.Types))
		for _, t := range m.Types {
			if types[t.Name] {
				return invalid(f.Filename, fmt.Sprintf("module %s: duplicate type %q", m.Name, t.Name))
			}
			types[t.Name] = true

			if _, ok := registry.ParseHolder(t.Holder); !ok {
				return invalid(f.Filename, fmt.Sprintf("type %s.%s: unknown holder %q", m.Name, t.Name, t.Holder))
			}
			if _, err := t.Shape(); err != nil {
				return invalid(f.Filename, fmt.Sprintf("type %s.%s: %v", m.Name, t.Name, err))
			}
		}
	}
	return nil
}

// Tech returns the module's technology name, defaulting to "manifest:<name>".
func (m Module) Tech() string {
	if m.Technology != "" {
		return m.Technology
	}
	return "manifest:" + m.Name
}

// HolderKind returns the parsed holder. Validate guarantees it is known.
func (t Type) HolderKind() registry.Holder {
	h, _ := registry.ParseHolder(t.Holder)
	return h
}

// Shape returns the fields as a WIT record, or nil when the type declares
// no fields.
func (t Type) Shape() (wit.Type, error) {
	if len(t.Fields) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(t.Fields))
	fields := make([]wit.Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		ft, err := ParseFieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, wit.Field{Name: f.Name, Type: ft})
	}
	return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}, nil
}

// ParseFieldType maps a WIT type name to its type. Primitives plus
// list<T> and option<T> are understood.
func ParseFieldType(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	if inner, ok := generic(s, "list"); ok {
		t, err := ParseFieldType(inner)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: t}}, nil
	}
	if inner, ok := generic(s, "option"); ok {
		t, err := ParseFieldType(inner)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: t}}, nil
	}

	switch s {
	case "bool":
		return wit.Bool{}, nil
	case "u8":
		return wit.U8{}, nil
	case "s8":
		return wit.S8{}, nil
	case "u16":
		return wit.U16{}, nil
	case "s16":
		return wit.S16{}, nil
	case "u32":
		return wit.U32{}, nil
	case "s32":
		return wit.S32{}, nil
	case "u64":
		return wit.U64{}, nil
	case "s64":
		return wit.S64{}, nil
	case "f32":
		return wit.F32{}, nil
	case "f64":
		return wit.F64{}, nil
	case "char":
		return wit.Char{}, nil
	case "string":
		return wit.String{}, nil
	}
	return nil, fmt.Errorf("unknown field type %q", s)
}

func generic(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func invalid(filename, detail string) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Path(filename).
		Detail("%s", detail).
		Build()
}

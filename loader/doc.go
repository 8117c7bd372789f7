// Package loader registers the types a manifest declares.
//
// Each manifest module stands in for one binding module. Modules load in
// file order and register their types in declaration order; the first
// module to register a type fixes its holder kind. A later module that
// asks for a different holder kind fails with a load-phase error naming
// the module, wrapping the registry's conflict.
package loader

// Package manifest decodes HCL files that list binding modules and the
// types each one registers.
//
//	module "challenge" {
//	  technology = "reflect:challenge"
//
//	  type "Pair" {
//	    holder = "shared"
//	    field "first"  { type = "string" }
//	    field "second" { type = "s32" }
//	  }
//	}
//
// Modules and types keep file order, which is the order the loader
// registers them in.
package manifest

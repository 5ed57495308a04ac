// Package manifest decodes HCL kind manifests into kind.Spec values.
//
// A manifest declares one or more `kind` blocks. Each kind lists its
// properties, with a type expression such as `string`, `int`, `float`,
// `bool` or `enum("a", "b")`, an access mode, an optional default and
// range, and its argument-less signals:
//
//	kind "Feed" {
//	  description = "RSS/Atom feed reader"
//
//	  property "entry" {
//	    type    = int
//	    access  = "readwrite"
//	    min     = 0
//	    max     = 10000
//	    default = 0
//	  }
//
//	  signal "check-for-updates" {}
//	}
//
// Manifests are shipped embedded next to the Go code of built-in kinds and
// may also be loaded from a directory to declare behavior-less kinds.
package manifest

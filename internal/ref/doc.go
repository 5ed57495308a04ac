// internal/ref/doc.go

/*
Package ref provides the structured form of the `object.member` references
used throughout the command language, e.g. `f.title`, `w.open` or
`f.notify::title`.

The object part names an instance in the session; the member part names a
property, a signal, or a `notify::<property>` event. Parsing and formatting
live here so every command agrees on the same syntax.
*/
package ref

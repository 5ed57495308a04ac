// Package shellerr defines the error taxonomy shared by every layer of the
// shell. Each failure a command can produce wraps exactly one sentinel from
// this package, so callers classify errors with errors.Is and render them
// with Code.
package shellerr

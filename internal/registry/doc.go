// Package registry is the glue between compiled kinds and their manifests.
//
// The Registry maps kind names used by `create` to the parsed kind.Spec and
// the Go factory that builds instances. Kinds shipped as Go code register
// through a Module; kinds declared only in HCL manifests are loaded from a
// directory and backed by kind.Bag.
//
// The registry is populated and validated once at startup, before any object
// is created, and is read-only afterwards. Validation checks that the
// property and signal tables each Go kind claims match its manifest exactly,
// so a drift between the two is caught at startup instead of at runtime.
package registry

// Package objects owns the live objects of a session.
//
// The Registry maps user-chosen names to kind instances and keeps them in
// creation order. Callers hold non-owning Handles; a Handle outlives the
// object it names but reports Valid() == false once the object is destroyed,
// even if a new object is later created under the same name.
package objects

// Package binding implements property access and change propagation.
//
// The Engine is the only path through which values reach an instance. It
// coerces incoming values to the property's declared type, hands them to the
// instance, and then pushes every changed property along its bindings in the
// order the bindings were added, depth first. The pairs being updated form
// the propagation chain; a binding whose target is already on the chain
// aborts the propagation with shellerr.ErrBindingCycle. Writes made before
// that point are kept.
//
// After a property's bindings have been applied the Engine raises a
// `notify::<property>` event to its listeners. Calling a signal raises an
// event named after the signal once the changes it reported have propagated.
package binding

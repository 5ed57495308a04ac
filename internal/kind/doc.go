// Package kind defines the plugin contract: the static description of an
// object kind (its typed properties and argument-less signals) and the
// Instance interface every live object implements.
//
// The core never talks to a kind through kind-specific APIs. Names typed by
// the user are translated into PropID and SignalID indexes once, at the
// command boundary, and everything past that point works on indexes.
package kind

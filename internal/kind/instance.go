package kind

import (
	"context"
	"io"
	"log/slog"

	"github.com/zclconf/go-cty/cty"
)

// Instance is the capability set every live object exposes to the core.
//
// Values handed to Set are already coerced to the property's declared type
// and checked against its range. Set and Emit return the properties they
// changed besides the one being written, so the engine can propagate them;
// the written property itself always counts as changed.
type Instance interface {
	Get(p PropID) cty.Value
	Set(ctx context.Context, p PropID, v cty.Value) ([]PropID, error)
	Emit(ctx context.Context, s SignalID) ([]PropID, error)
}

// Update is an asynchronous change an instance schedules through Env.Post.
// It runs on the session's exclusive path and returns the properties it
// changed.
type Update func(ctx context.Context) ([]PropID, error)

// Env is what the session hands an instance when it is created.
type Env struct {
	// Name is the object name the instance was created under.
	Name string
	// Out receives anything the instance renders for the user.
	Out io.Writer
	// Logger is already scoped to the object.
	Logger *slog.Logger
	// Post schedules an Update. It never blocks the caller.
	Post func(Update)
}

// Factory creates a new instance of a kind.
type Factory func(spec *Spec, env Env) (Instance, error)

// Values stores one value per property of a spec, initialized from the
// declared defaults. Kinds embed it to satisfy Get.
type Values struct {
	spec *Spec
	vals []cty.Value
}

// NewValues returns a store holding every property's default value.
func NewValues(spec *Spec) *Values {
	vals := make([]cty.Value, len(spec.Properties))
	for i, p := range spec.Properties {
		vals[i] = p.Default
	}
	return &Values{spec: spec, vals: vals}
}

// Get returns the current value of a property.
func (v *Values) Get(p PropID) cty.Value {
	return v.vals[p]
}

// Put replaces the stored value of a property.
func (v *Values) Put(p PropID, val cty.Value) {
	v.vals[p] = val
}

// String returns a string property's value.
func (v *Values) String(p PropID) string {
	return v.vals[p].AsString()
}

// Int returns an int property's value.
func (v *Values) Int(p PropID) int64 {
	n, _ := v.vals[p].AsBigFloat().Int64()
	return n
}

// Float returns a numeric property's value.
func (v *Values) Float(p PropID) float64 {
	f, _ := v.vals[p].AsBigFloat().Float64()
	return f
}

// Bool returns a bool property's value.
func (v *Values) Bool(p PropID) bool {
	return v.vals[p].True()
}

// Bag is the instance behind declarative kinds: it only stores values, and
// its signals raise events without changing anything.
type Bag struct {
	*Values
}

// NewBag is the Factory used for kinds that ship no Go code.
func NewBag(spec *Spec, env Env) (Instance, error) {
	return &Bag{Values: NewValues(spec)}, nil
}

// Set stores the value.
func (b *Bag) Set(ctx context.Context, p PropID, v cty.Value) ([]PropID, error) {
	b.Put(p, v)
	return nil, nil
}

// Emit does nothing; listeners still observe the signal.
func (b *Bag) Emit(ctx context.Context, s SignalID) ([]PropID, error) {
	return nil, nil
}

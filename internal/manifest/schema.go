package manifest

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes every top-level block a manifest file may contain.
type fileRoot struct {
	Kinds  []*KindBlock `hcl:"kind,block"`
	Remain hcl.Body     `hcl:",remain"`
}

// KindBlock represents a `kind` block.
type KindBlock struct {
	Name        string           `hcl:"name,label"`
	Description string           `hcl:"description,optional"`
	Properties  []*PropertyBlock `hcl:"property,block"`
	Signals     []*SignalBlock   `hcl:"signal,block"`
}

// PropertyBlock represents a `property` block inside a kind.
type PropertyBlock struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Access      string         `hcl:"access,optional"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	Min         *float64       `hcl:"min,optional"`
	Max         *float64       `hcl:"max,optional"`
}

// SignalBlock represents a `signal` block inside a kind.
type SignalBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

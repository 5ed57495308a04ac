package manifest

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/fsutil"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Parse decodes every kind declared in src. filename is only used in
// diagnostics.
func Parse(ctx context.Context, filename string, src []byte) ([]*kind.Spec, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	specs := make([]*kind.Spec, 0, len(root.Kinds))
	for _, kb := range root.Kinds {
		spec, err := translateKind(ctx, kb)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", filename, err)
		}
		logger.Debug("Kind manifest decoded.", "kind", spec.Name, "properties", len(spec.Properties), "signals", len(spec.Signals))
		specs = append(specs, spec)
	}
	return specs, nil
}

// LoadDir decodes every `.hcl` manifest found under path, recursively.
func LoadDir(ctx context.Context, path string) ([]*kind.Spec, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading kind manifests...", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to walk manifests directory %s: %w", path, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl manifest files found in path", "path", path)
		return nil, nil
	}

	var specs []*kind.Spec
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", f, err)
		}
		fileSpecs, err := Parse(ctx, f, src)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fileSpecs...)
	}

	logger.Info("Kind manifests loaded.", "files", len(files), "kinds", len(specs))
	return specs, nil
}

// MustParse is Parse for manifests embedded in the binary, where a broken
// manifest is a programming error.
func MustParse(filename string, src []byte) *kind.Spec {
	specs, err := Parse(context.Background(), filename, src)
	if err != nil {
		panic(err)
	}
	if len(specs) != 1 {
		panic(fmt.Sprintf("manifest %s: expected exactly one kind, found %d", filename, len(specs)))
	}
	return specs[0]
}

func translateKind(ctx context.Context, kb *KindBlock) (*kind.Spec, error) {
	props := make([]kind.PropertySpec, 0, len(kb.Properties))
	for _, pb := range kb.Properties {
		p, err := translateProperty(ctx, pb)
		if err != nil {
			return nil, fmt.Errorf("kind '%s', property '%s': %w", kb.Name, pb.Name, err)
		}
		props = append(props, p)
	}

	signals := make([]kind.SignalSpec, 0, len(kb.Signals))
	for _, sb := range kb.Signals {
		signals = append(signals, kind.SignalSpec{Name: sb.Name, Description: sb.Description})
	}

	return kind.NewSpec(kb.Name, kb.Description, props, signals)
}

func translateProperty(ctx context.Context, pb *PropertyBlock) (kind.PropertySpec, error) {
	typ, err := typeExprToValueType(ctx, pb.Type)
	if err != nil {
		return kind.PropertySpec{}, err
	}

	access, err := kind.ParseAccess(pb.Access)
	if err != nil {
		return kind.PropertySpec{}, err
	}

	p := kind.PropertySpec{
		Name:        pb.Name,
		Description: pb.Description,
		Type:        typ,
		Access:      access,
	}

	if pb.Default != nil && !pb.Default.IsNull() {
		p.Default = *pb.Default
	} else {
		p.Default = cty.NilVal
	}

	rng, err := translateRange(pb, typ)
	if err != nil {
		return kind.PropertySpec{}, err
	}
	p.Range = rng

	return p, nil
}

// translateRange builds the numeric bound of a property. A missing side is
// open, except for `uint`, whose lower bound is zero.
func translateRange(pb *PropertyBlock, typ value.Type) (*value.Range, error) {
	unsigned := isKeyword(pb, "uint")
	if pb.Min == nil && pb.Max == nil && !unsigned {
		return nil, nil
	}
	if !typ.IsNumeric() {
		return nil, fmt.Errorf("min/max are only valid for numeric types, not %s", typ)
	}

	r := &value.Range{Min: math.Inf(-1), Max: math.Inf(1)}
	if unsigned {
		r.Min = 0
	}
	if pb.Min != nil {
		r.Min = *pb.Min
	}
	if pb.Max != nil {
		r.Max = *pb.Max
	}
	if r.Min > r.Max {
		return nil, fmt.Errorf("min %v is greater than max %v", r.Min, r.Max)
	}
	return r, nil
}

func isKeyword(pb *PropertyBlock, keyword string) bool {
	v, ok := pb.Type.(*hclsyntax.ScopeTraversalExpr)
	return ok && len(v.Traversal) == 1 && v.Traversal.RootName() == keyword
}

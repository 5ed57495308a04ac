// This file contains the logic for parsing HCL type expressions (e.g., `string`,
// `enum("a", "b")`) into their corresponding value.Type.

package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/propshell/internal/ctxlog"
	"github.com/specialistvlad/propshell/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// typeExprToValueType converts an HCL type expression into a property type.
func typeExprToValueType(ctx context.Context, expr hcl.Expression) (value.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return value.Type{}, fmt.Errorf("property type is required")
	}

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a function call.", "call", v.Name)
		if v.Name != "enum" {
			return value.Type{}, fmt.Errorf("unknown type constructor function %q", v.Name)
		}
		if len(v.Args) == 0 {
			return value.Type{}, fmt.Errorf("enum type requires at least one member")
		}

		members := make([]string, 0, len(v.Args))
		seen := make(map[string]struct{}, len(v.Args))
		for i, arg := range v.Args {
			val, diags := arg.Value(nil)
			if diags.HasErrors() {
				return value.Type{}, fmt.Errorf("enum member %d: %w", i, diags)
			}
			if val.Type() != cty.String || val.IsNull() {
				return value.Type{}, fmt.Errorf("enum member %d must be a string literal", i)
			}
			m := val.AsString()
			if _, dup := seen[m]; dup {
				return value.Type{}, fmt.Errorf("enum member %q listed twice", m)
			}
			seen[m] = struct{}{}
			members = append(members, m)
		}
		return value.EnumType(members...), nil

	case *hclsyntax.ScopeTraversalExpr:
		// This handles primitive type identifiers like `string` or `int`.
		if len(v.Traversal) != 1 {
			return value.Type{}, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		logger.Debug("Parsing type expression as a primitive.", "keyword", rootName)
		switch rootName {
		case "string":
			return value.StringType, nil
		case "int", "uint":
			return value.IntType, nil
		case "float", "number":
			return value.FloatType, nil
		case "bool":
			return value.BoolType, nil
		default:
			return value.Type{}, fmt.Errorf("unknown primitive type %q", rootName)
		}

	default:
		return value.Type{}, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

package contract

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// method is an interface or concrete method's extracted signature shape,
// compared structurally (names + types as written), matching the Python
// tier's use of the ast module to avoid full type resolution at this tier.
type method struct {
	name    string
	params  []string
	results []string
}

func (m method) String() string {
	return fmt.Sprintf("(%s) (%s)", strings.Join(m.params, ", "), strings.Join(m.results, ", "))
}

// extractInterfaceMethods parses contractSource and returns the method set
// declared by the interface type named interfaceName.
func extractInterfaceMethods(contractSource, interfaceName string) ([]method, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "contract.go", contractSource, parser.AllErrors)
	if err != nil {
		return nil, fmt.Errorf("parsing contract source: %w", err)
	}

	var methods []method
	var found bool
	ast.Inspect(f, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok || ts.Name.Name != interfaceName {
			return true
		}
		it, ok := ts.Type.(*ast.InterfaceType)
		if !ok {
			return true
		}
		found = true
		for _, field := range it.Methods.List {
			ft, ok := field.Type.(*ast.FuncType)
			if !ok {
				continue // embedded interface; not expanded at this tier
			}
			for _, name := range field.Names {
				methods = append(methods, method{
					name:    name.Name,
					params:  fieldListTypes(ft.Params),
					results: fieldListTypes(ft.Results),
				})
			}
		}
		return false
	})

	if !found {
		return nil, fmt.Errorf("interface %q not found in contract source", interfaceName)
	}
	return methods, nil
}

// findImplementingType returns a type name in implSource with a method set
// for every method name used by interfaceName's methods, the Go analogue of
// the Python tier's class-search heuristic. When several types qualify,
// which one is returned is not defined.
func findImplementingType(implSource string, required []method) (string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "impl.go", implSource, parser.AllErrors)
	if err != nil {
		return "", fmt.Errorf("parsing implementation source: %w", err)
	}

	methodsByReceiver := collectMethods(f)
	requiredNames := make(map[string]struct{}, len(required))
	for _, m := range required {
		requiredNames[m.name] = struct{}{}
	}

	for recv, methods := range methodsByReceiver {
		have := make(map[string]struct{}, len(methods))
		for _, m := range methods {
			have[m.name] = struct{}{}
		}
		allPresent := true
		for name := range requiredNames {
			if _, ok := have[name]; !ok {
				allPresent = false
				break
			}
		}
		if allPresent {
			return recv, nil
		}
	}
	return "", fmt.Errorf("no type implements all required methods")
}

func collectMethods(f *ast.File) map[string][]method {
	out := make(map[string][]method)
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		recvType := receiverTypeName(fn.Recv.List[0].Type)
		out[recvType] = append(out[recvType], method{
			name:    fn.Name.Name,
			params:  fieldListTypes(fn.Type.Params),
			results: fieldListTypes(fn.Type.Results),
		})
	}
	return out
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return fmt.Sprintf("%T", expr)
	}
}

func fieldListTypes(fl *ast.FieldList) []string {
	if fl == nil {
		return nil
	}
	var out []string
	for _, field := range fl.List {
		typeStr := exprString(field.Type)
		n := len(field.Names)
		if n == 0 {
			out = append(out, typeStr)
			continue
		}
		for i := 0; i < n; i++ {
			out = append(out, typeStr)
		}
	}
	return out
}

func exprString(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.MapType:
		return "map[" + exprString(t.Key) + "]" + exprString(t.Value)
	case *ast.InterfaceType:
		return "interface{}"
	default:
		return fmt.Sprintf("%T", e)
	}
}

// checkImplementationSatisfies compares the implementing type's methods
// against the required set and returns any structural mismatches.
func checkImplementationSatisfies(implSource, implTypeName string, required []method) ([]MethodMismatch, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "impl.go", implSource, parser.AllErrors)
	if err != nil {
		return nil, fmt.Errorf("parsing implementation source: %w", err)
	}

	byReceiver := collectMethods(f)
	actual, ok := byReceiver[implTypeName]
	if !ok {
		return nil, fmt.Errorf("type %q declares no methods", implTypeName)
	}
	actualByName := make(map[string]method, len(actual))
	for _, m := range actual {
		actualByName[m.name] = m
	}

	var mismatches []MethodMismatch
	for _, req := range required {
		act, ok := actualByName[req.name]
		if !ok {
			mismatches = append(mismatches, MethodMismatch{
				MethodName: req.name,
				Issue:      "method not implemented",
				Expected:   req.String(),
			})
			continue
		}
		if !sliceEqual(req.params, act.params) || !sliceEqual(req.results, act.results) {
			mismatches = append(mismatches, MethodMismatch{
				MethodName: req.name,
				Issue:      "signature mismatch",
				Expected:   req.String(),
				Actual:     act.String(),
			})
		}
	}
	return mismatches, nil
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package jsvm

import "github.com/dop251/goja/ast"

// topLevelSymbols collects the names a script binds in its global scope:
// function and class declarations, var/let/const bindings and plain
// assignments to undeclared identifiers.
func topLevelSymbols(program *ast.Program) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(id *ast.Identifier) {
		if id == nil {
			return
		}
		name := id.Name.String()
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	addBindings := func(bindings []*ast.Binding) {
		for _, binding := range bindings {
			if id, ok := binding.Target.(*ast.Identifier); ok {
				add(id)
			}
		}
	}

	for _, stmt := range program.Body {
		switch s := stmt.(type) {
		case *ast.FunctionDeclaration:
			if s.Function != nil {
				add(s.Function.Name)
			}
		case *ast.ClassDeclaration:
			if s.Class != nil {
				add(s.Class.Name)
			}
		case *ast.VariableStatement:
			addBindings(s.List)
		case *ast.LexicalDeclaration:
			addBindings(s.List)
		case *ast.ExpressionStatement:
			if assign, ok := s.Expression.(*ast.AssignExpression); ok {
				if id, ok := assign.Left.(*ast.Identifier); ok {
					add(id)
				}
			}
		}
	}

	return names
}

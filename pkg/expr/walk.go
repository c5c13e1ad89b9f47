package expr

// Transform rebuilds e bottom-up after offering every node to fn, outermost
// first. When fn returns replaced=true its result takes the node's place and
// the node's children are not visited.
func Transform(e Expr, fn func(Expr) (Expr, bool, error)) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	out, replaced, err := fn(e)
	if err != nil || replaced {
		return out, err
	}

	each := func(ops []Expr) error {
		for i, op := range ops {
			n, err := Transform(op, fn)
			if err != nil {
				return err
			}
			ops[i] = n
		}
		return nil
	}

	var errOut error
	switch n := e.(type) {
	case *Comparison:
		if n.Left, errOut = Transform(n.Left, fn); errOut == nil {
			n.Right, errOut = Transform(n.Right, fn)
		}
	case *Arith:
		if n.Left, errOut = Transform(n.Left, fn); errOut == nil {
			n.Right, errOut = Transform(n.Right, fn)
		}
	case *And:
		errOut = each(n.Operands)
	case *Or:
		errOut = each(n.Operands)
	case *Not:
		n.Operand, errOut = Transform(n.Operand, fn)
	case *IsNullExpr:
		n.Operand, errOut = Transform(n.Operand, fn)
	case *Desc:
		n.Expr, errOut = Transform(n.Expr, fn)
	case *InIndex:
		n.Operand, errOut = Transform(n.Operand, fn)
	case *Aggregate:
		if n.Arg != nil {
			n.Arg, errOut = Transform(n.Arg, fn)
		}
	}
	return e, errOut
}

// Walk calls fn on every node of e, outermost first. fn returning false
// skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	_, _ = Transform(e, func(n Expr) (Expr, bool, error) {
		return n, !fn(n), nil
	})
}

// Columns returns every column reference in e.
func Columns(e Expr) []*Column {
	var out []*Column
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*Column); ok {
			out = append(out, c)
		}
		return true
	})
	return out
}

// HasAggregate reports whether e contains an aggregate call.
func HasAggregate(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if _, ok := n.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

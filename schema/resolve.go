package schema

import "go.corvid.dev/x690/xerr"

// resolveRefs replaces every kindRef placeholder produced by the parser
// with the named type's actual node, across every module in reg, so a
// CMS type like CertificateSet can resolve its element type to the
// Certificate declared in a separately loaded X.509 module.
func resolveRefs(reg map[string]*Type) error {
	visited := map[*Type]bool{}
	var walk func(t *Type) error
	walk = func(t *Type) error {
		if t == nil || visited[t] {
			return nil
		}
		visited[t] = true
		switch t.Kind {
		case KindSequence, KindSet, KindChoice:
			for i := range t.Fields {
				if err := resolveSlot(&t.Fields[i].Type, reg); err != nil {
					return err
				}
				if err := walk(t.Fields[i].Type); err != nil {
					return err
				}
			}
		case KindSequenceOf, KindSetOf, KindTagged:
			if err := resolveSlot(&t.Elem, reg); err != nil {
				return err
			}
			if err := walk(t.Elem); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range reg {
		if err := walk(t); err != nil {
			return err
		}
	}
	return nil
}

func resolveSlot(slot **Type, reg map[string]*Type) error {
	t := *slot
	if t == nil || t.Kind != kindRef {
		return nil
	}
	target, ok := reg[t.refName]
	if !ok {
		return xerr.New(xerr.InvalidValue, "schema: unresolved type reference %q", t.refName)
	}
	*slot = target
	return nil
}

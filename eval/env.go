package eval

// Env is an immutable lexical environment: a chain of single-name frames,
// innermost first. The nil *Env is the empty environment. Binding never
// modifies an existing frame, so closures capture an Env by pointer.
type Env struct {
	parent *Env
	name   string
	value  Value
}

// Bind returns a new environment in which name is bound to v and every
// other name resolves as in e.
func (e *Env) Bind(name string, v Value) *Env {
	return &Env{parent: e, name: name, value: v}
}

// Lookup returns the innermost binding of name.
func (e *Env) Lookup(name string) (Value, bool) {
	for f := e; f != nil; f = f.parent {
		if f.name == name {
			return f.value, true
		}
	}
	return nil, false
}

// Names returns the visible names, innermost first, each listed once.
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for f := e; f != nil; f = f.parent {
		if !seen[f.name] {
			seen[f.name] = true
			names = append(names, f.name)
		}
	}
	return names
}

package ir

// Pattern is implemented by every match pattern type.
type Pattern interface {
	// Binds returns the names this pattern introduces into its arm body,
	// in declaration order.
	Binds() []string
	pattern() // marker method
}

// WildcardPat matches anything.
type WildcardPat struct{}

// LiteralPat matches a number, string or boolean by value. Numbers are
// compared after conversion to their canonical unit.
type LiteralPat struct {
	Literal Node // *NumberLit, *StringLit or *BoolLit
}

// BindPat matches anything and binds it to Name.
type BindPat struct {
	Name string
}

// FieldPat matches one record field against a nested pattern.
type FieldPat struct {
	Name    string
	Pattern Pattern
}

// RecordPat matches a record with the given type name (any type when
// empty) whose listed fields all match.
type RecordPat struct {
	TypeName string
	Fields   []FieldPat
}

func (*WildcardPat) Binds() []string { return nil }
func (*LiteralPat) Binds() []string  { return nil }
func (p *BindPat) Binds() []string   { return []string{p.Name} }

func (p *RecordPat) Binds() []string {
	var names []string
	for _, f := range p.Fields {
		names = append(names, f.Pattern.Binds()...)
	}
	return names
}

func (*WildcardPat) pattern() {}
func (*LiteralPat) pattern()  {}
func (*BindPat) pattern()     {}
func (*RecordPat) pattern()   {}

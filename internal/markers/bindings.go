package markers

import "fmt"

// Fixed field vocabulary bound to the standard marker tokens.
const (
	FieldMSRDaily    = "msr_daily"
	FieldMSRSecondly = "msr_secondly"
	FieldPumpModel   = "pump_model"
	FieldProjectCode = "project_code"
	FieldMaxHourly   = "max_hourly"
)

// Standard marker tokens. A text line must consist of exactly one of these.
const (
	TokenMSR  = "msr:"
	TokenN    = "n:"
	TokenSH   = "sh:"
	TokenMCHR = "mchr:"
)

// Binding maps a marker token to the field names its occurrences bind to,
// in page reading order. Occurrences beyond len(Names) are dropped.
type Binding struct {
	Token string
	Names []string
}

// BindingTable is a validated, ordered set of bindings.
type BindingTable struct {
	bindings []Binding
	byToken  map[string]int
}

// NewBindingTable checks that tokens are non-empty and distinct, that every
// binding names at least one field, and that no field name is bound twice.
func NewBindingTable(bindings []Binding) (BindingTable, error) {
	t := BindingTable{byToken: make(map[string]int, len(bindings))}
	names := make(map[string]string)
	for i, b := range bindings {
		if b.Token == "" {
			return BindingTable{}, fmt.Errorf("binding %d: empty token", i)
		}
		if _, dup := t.byToken[b.Token]; dup {
			return BindingTable{}, fmt.Errorf("token %q bound twice", b.Token)
		}
		if len(b.Names) == 0 {
			return BindingTable{}, fmt.Errorf("token %q binds no field", b.Token)
		}
		for _, n := range b.Names {
			if n == "" {
				return BindingTable{}, fmt.Errorf("token %q binds an empty field name", b.Token)
			}
			if prev, dup := names[n]; dup {
				return BindingTable{}, fmt.Errorf("field %q bound by both %q and %q", n, prev, b.Token)
			}
			names[n] = b.Token
		}
		t.byToken[b.Token] = i
		t.bindings = append(t.bindings, Binding{Token: b.Token, Names: append([]string(nil), b.Names...)})
	}
	return t, nil
}

// MustBindingTable is NewBindingTable that panics on an invalid table.
func MustBindingTable(bindings []Binding) BindingTable {
	t, err := NewBindingTable(bindings)
	if err != nil {
		panic(fmt.Sprintf("markers: invalid binding table: %v", err))
	}
	return t
}

// DefaultBindings is the standard token table.
var DefaultBindings = MustBindingTable([]Binding{
	{Token: TokenMSR, Names: []string{FieldMSRDaily, FieldMSRSecondly}},
	{Token: TokenN, Names: []string{FieldPumpModel}},
	{Token: TokenSH, Names: []string{FieldProjectCode}},
	{Token: TokenMCHR, Names: []string{FieldMaxHourly}},
})

// IsToken reports whether s is one of the table's tokens.
func (t BindingTable) IsToken(s string) bool {
	_, ok := t.byToken[s]
	return ok
}

// Name returns the field bound to the nth (zero-based) occurrence of token.
func (t BindingTable) Name(token string, nth int) (string, bool) {
	i, ok := t.byToken[token]
	if !ok || nth < 0 || nth >= len(t.bindings[i].Names) {
		return "", false
	}
	return t.bindings[i].Names[nth], true
}

// Tokens returns the tokens in table order.
func (t BindingTable) Tokens() []string {
	out := make([]string, len(t.bindings))
	for i, b := range t.bindings {
		out[i] = b.Token
	}
	return out
}

package template

// PlaceholderType is the typed kind of a template placeholder. The zero
// value is TypeString, matching the "string (default)" rule in spec §3.1.
type PlaceholderType int

const (
	TypeString PlaceholderType = iota
	TypeInt
	TypeNumber
	TypeBool
	TypePattern
)

func (t PlaceholderType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypePattern:
		return "pattern"
	default:
		return "string"
	}
}

// Modifier controls whether a placeholder is required, optional, or
// required-with-default per spec §3.1.
type Modifier int

const (
	ModRequired Modifier = iota
	ModOptional
	ModDefault
)

// segmentKind distinguishes a literal run of bytes from a placeholder.
type segmentKind int

const (
	kindLiteral segmentKind = iota
	kindPlaceholder
)

// segment is one element of a compiled template: either a literal
// byte-string or a placeholder descriptor. The compiled form is an
// ordered sequence of these, per spec §3.1.
type segment struct {
	kind segmentKind

	// literal is populated when kind == kindLiteral.
	literal string

	// Placeholder fields, populated when kind == kindPlaceholder.
	name     string
	ptype    PlaceholderType
	spec     string // pattern prefix (type == TypePattern only)
	modifier Modifier
	def      string // default value (modifier == ModDefault only)
}

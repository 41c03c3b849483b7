package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes free-text entity and attribute labels into stable
// identifiers. It is deterministic and pure: the same raw input always
// produces the same output.
type Normalizer struct {
	entities   map[string]string // folded alias phrase -> canonical entity id
	attributes map[string]string // folded alias phrase -> canonical attribute name
}

// New creates a normalizer from the built-in synonym table merged with extra.
// Entries in extra override the built-ins for the same alias.
func New(extra Table) *Normalizer {
	n := &Normalizer{
		entities:   make(map[string]string),
		attributes: make(map[string]string),
	}
	n.addTable(builtinTable())
	n.addTable(extra)
	return n
}

func (n *Normalizer) addTable(t Table) {
	for _, g := range t.Entities {
		id := kebab(foldWords(g.Canonical))
		n.entities[strings.Join(foldWords(g.Canonical), " ")] = id
		for _, a := range g.Aliases {
			n.entities[strings.Join(foldWords(a), " ")] = id
		}
	}
	for _, g := range t.Attributes {
		name := camel(foldWords(g.Canonical))
		n.attributes[strings.Join(foldWords(g.Canonical), " ")] = name
		for _, a := range g.Aliases {
			n.attributes[strings.Join(foldWords(a), " ")] = name
		}
	}
}

// EntityID returns the canonical id for a raw entity label: lower-cased,
// diacritics and punctuation stripped, synonyms applied, plural singularized,
// words joined with hyphens ("Inicio de Sesión" -> "user",
// "Order Items" -> "order-item"). Unrecognized labels fall through to the
// slugified form.
func (n *Normalizer) EntityID(raw string) string {
	words := foldWords(raw)
	if len(words) == 0 {
		return ""
	}
	if id, ok := n.entities[strings.Join(words, " ")]; ok {
		return id
	}
	words[len(words)-1] = singularize(words[len(words)-1])
	if id, ok := n.entities[strings.Join(words, " ")]; ok {
		return id
	}
	return kebab(words)
}

// AttributeName returns the canonical camelCase name for a raw attribute
// label ("User ID" -> "userId", "Correo electrónico" -> "email").
func (n *Normalizer) AttributeName(raw string) string {
	words := foldWords(raw)
	if len(words) == 0 {
		return ""
	}
	if name, ok := n.attributes[strings.Join(words, " ")]; ok {
		return name
	}
	return camel(words)
}

// DisplayName converts a canonical entity id to its display form
// ("order-item" -> "OrderItem")
func DisplayName(id string) string {
	var b strings.Builder
	for _, w := range strings.Split(id, "-") {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldWords lower-cases the label, strips diacritics, and splits it into
// words on any non-alphanumeric rune. Also splits camelCase boundaries so
// "userId" and "user_id" fold to the same words.
func foldWords(raw string) []string {
	folded, _, err := transform.String(stripMarks, raw)
	if err != nil {
		folded = raw
	}

	var b strings.Builder
	prevLower := false
	for _, r := range folded {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = unicode.IsLower(r)
		default:
			b.WriteRune(' ')
			prevLower = false
		}
	}
	return strings.Fields(b.String())
}

// singularize reduces a plural English/Spanish word to its singular form
// using suffix heuristics. Only the last word of an entity label is
// singularized ("order items" -> "order item").
func singularize(w string) string {
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes")):
		return w[:len(w)-2]
	case len(w) > 3 && (strings.HasSuffix(w, "ses") || strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "zes")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "nes"): // sesiones -> sesion
		return w[:len(w)-2]
	case len(w) > 2 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	}
	return w
}

func kebab(words []string) string {
	return strings.Join(words, "-")
}

func camel(words []string) string {
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

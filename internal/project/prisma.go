// Package project turns the merged model into downstream schema artifacts.
// Projection is a pure function of the model: same model in, byte-identical
// schema out.
package project

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/avillena/merforge/internal/model"
)

// prismaTypes maps merged attribute types to Prisma scalar types. Unknown
// types fall back to String.
var prismaTypes = map[string]string{
	"string":    "String",
	"text":      "String",
	"int":       "Int",
	"integer":   "Int",
	"bigint":    "BigInt",
	"float":     "Float",
	"decimal":   "Decimal",
	"boolean":   "Boolean",
	"bool":      "Boolean",
	"date":      "DateTime",
	"datetime":  "DateTime",
	"timestamp": "DateTime",
	"uuid":      "String",
	"cuid":      "String",
	"json":      "Json",
	"email":     "String",
	"url":       "String",
}

// PrismaFormatter writes a model as a Prisma schema
type PrismaFormatter struct {
	writer io.Writer
}

// NewPrismaFormatter creates a new Prisma formatter
func NewPrismaFormatter(w io.Writer) *PrismaFormatter {
	return &PrismaFormatter{writer: w}
}

// Format writes the full schema: datasource and generator blocks, enums,
// then one model per entity in model order
func (f *PrismaFormatter) Format(m *model.MER) error {
	var b strings.Builder

	b.WriteString("datasource db {\n")
	b.WriteString("  provider = \"postgresql\"\n")
	b.WriteString("  url      = env(\"DATABASE_URL\")\n")
	b.WriteString("}\n\n")
	b.WriteString("generator client {\n")
	b.WriteString("  provider = \"prisma-client-js\"\n")
	b.WriteString("}\n\n")

	for _, enum := range m.Enums {
		formatEnum(&b, enum)
	}

	relations := relationIndex(m)
	for i, entity := range m.Entities {
		if i > 0 {
			b.WriteString("\n")
		}
		if err := formatModel(&b, m, entity, relations); err != nil {
			return err
		}
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

// relation is one projected relation field: the owning side carries the
// scalar foreign key, the other side gets a back-reference.
type relation struct {
	owner    string // display name of the entity holding the FK
	target   string // display name of the referenced entity
	fkAttr   string
	refField string
	oneToOne bool
}

// relationIndex resolves each relationship to its owning side. Many-to-many
// relationships have no FK and are projected as implicit relation lists.
func relationIndex(m *model.MER) []relation {
	var relations []relation
	for _, r := range m.Relationships {
		if r.Type == model.ManyToMany {
			relations = append(relations, relation{owner: r.From, target: r.To})
			continue
		}
		if r.FK == nil {
			continue
		}
		target, refField, ok := strings.Cut(r.FK.Ref, ".")
		if !ok {
			continue
		}
		owner := r.From
		if owner == target {
			owner = r.To
		}
		relations = append(relations, relation{
			owner:    owner,
			target:   target,
			fkAttr:   r.FK.Attribute,
			refField: refField,
			oneToOne: r.Type == model.OneToOne,
		})
	}
	return relations
}

func formatModel(b *strings.Builder, m *model.MER, entity *model.Entity, relations []relation) error {
	fmt.Fprintf(b, "model %s {\n", entity.Name)

	for _, attr := range entity.Attributes {
		line := fmt.Sprintf("  %s %s", attr.Name, mapType(attr.Type))
		if attr.Nullable {
			line += "?"
		}
		if attr.PK {
			line += " @id"
			if def := idDefault(attr.Type); def != "" {
				line += " @default(" + def + ")"
			}
		} else if attr.Unique {
			line += " @unique"
		}
		b.WriteString(line + "\n")
	}

	// Relation fields on the owning side
	for _, rel := range relations {
		if rel.owner != entity.Name {
			continue
		}
		if rel.fkAttr == "" {
			// Implicit many-to-many list
			fmt.Fprintf(b, "  %s %s[]\n", plural(lowerFirst(rel.target)), rel.target)
			continue
		}
		if m.EntityByName(rel.target) == nil {
			return fmt.Errorf("model %s: relation target %s not in model", entity.Name, rel.target)
		}
		fmt.Fprintf(b, "  %s %s @relation(fields: [%s], references: [%s])\n",
			lowerFirst(rel.target), rel.target, rel.fkAttr, rel.refField)
	}

	// Back-references on the referenced side
	for _, rel := range relations {
		if rel.target != entity.Name || rel.owner == entity.Name {
			continue
		}
		if rel.fkAttr == "" {
			fmt.Fprintf(b, "  %s %s[]\n", plural(lowerFirst(rel.owner)), rel.owner)
		} else if rel.oneToOne {
			fmt.Fprintf(b, "  %s %s?\n", lowerFirst(rel.owner), rel.owner)
		} else {
			fmt.Fprintf(b, "  %s %s[]\n", plural(lowerFirst(rel.owner)), rel.owner)
		}
	}

	b.WriteString("}\n")
	return nil
}

func formatEnum(b *strings.Builder, enum model.Enum) {
	fmt.Fprintf(b, "enum %s {\n", enum.Name)
	for _, value := range enum.Values {
		clean := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(value))
		fmt.Fprintf(b, "  %s\n", clean)
	}
	b.WriteString("}\n\n")
}

func mapType(t string) string {
	if mapped, ok := prismaTypes[strings.ToLower(t)]; ok {
		return mapped
	}
	return "String"
}

// idDefault picks a value generator for generated identifier types
func idDefault(t string) string {
	switch strings.ToLower(t) {
	case "uuid":
		return "uuid()"
	case "cuid":
		return "cuid()"
	}
	return ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func plural(s string) string {
	if strings.HasSuffix(s, "y") && len(s) > 1 {
		return s[:len(s)-1] + "ies"
	}
	if strings.HasSuffix(s, "s") || strings.HasSuffix(s, "x") || strings.HasSuffix(s, "ch") || strings.HasSuffix(s, "sh") {
		return s + "es"
	}
	return s + "s"
}

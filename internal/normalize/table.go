package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group maps alias labels to one canonical term
type Group struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// Table is a configurable synonym table. New language variants or domain
// vocabularies are added here, not in merge logic.
type Table struct {
	Entities   []Group `yaml:"entities"`
	Attributes []Group `yaml:"attributes"`
}

// Load reads a synonym table from a YAML file
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read synonym table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse synonym table: %w", err)
	}
	return t, nil
}

// builtinTable covers the login/account vocabulary and the Spanish UI labels
// common in design exports. A user-supplied table extends or overrides it.
func builtinTable() Table {
	return Table{
		Entities: []Group{
			{Canonical: "user", Aliases: []string{
				"users", "usuario", "usuarios", "account", "accounts", "cuenta",
				"login", "log in", "sign in", "signin", "sign up", "signup",
				"inicio de sesion", "iniciar sesion", "crear cuenta",
				"registro", "customer", "customers", "cliente", "clientes",
			}},
			{Canonical: "project", Aliases: []string{
				"projects", "proyecto", "proyectos",
			}},
			{Canonical: "session", Aliases: []string{
				"sessions", "sesion", "sesiones",
			}},
			{Canonical: "task", Aliases: []string{
				"tasks", "tarea", "tareas",
			}},
			{Canonical: "order", Aliases: []string{
				"orders", "pedido", "pedidos",
			}},
		},
		Attributes: []Group{
			{Canonical: "email", Aliases: []string{"correo", "correo electronico", "e mail"}},
			{Canonical: "password", Aliases: []string{"contrasena", "clave"}},
			{Canonical: "name", Aliases: []string{"nombre"}},
			{Canonical: "description", Aliases: []string{"descripcion"}},
			{Canonical: "createdAt", Aliases: []string{"created at", "fecha de creacion"}},
		},
	}
}

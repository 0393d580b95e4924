package commands

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_commands.yaml
var defaultCatalog []byte

// Catalog is a Registry read from a YAML file.
type Catalog struct {
	commands []Command
	byID     map[string]int
}

var _ Registry = (*Catalog)(nil)

type catalogFile struct {
	Commands []Command `yaml:"commands"`
}

// DefaultCatalog returns the built-in commands.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("commands: built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file. A missing file yields the built-in
// commands.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: catalog path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("failed to read commands file: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes a catalog. Every command needs a unique id.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse commands: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(f.Commands))}
	for i, cmd := range f.Commands {
		cmd.ID = strings.TrimSpace(cmd.ID)
		if cmd.ID == "" {
			return nil, fmt.Errorf("command %d: missing id", i+1)
		}
		if _, dup := c.byID[cmd.ID]; dup {
			return nil, fmt.Errorf("command %q: duplicate id", cmd.ID)
		}
		if cmd.Precondition != "" {
			if _, err := parsePrecondition(cmd.Precondition); err != nil {
				return nil, fmt.Errorf("command %q: %w", cmd.ID, err)
			}
		}
		c.byID[cmd.ID] = len(c.commands)
		c.commands = append(c.commands, cmd)
	}
	return c, nil
}

// ListCommands implements Registry.
func (c *Catalog) ListCommands() []Command {
	out := make([]Command, len(c.commands))
	copy(out, c.commands)
	return out
}

// Command returns the command with id.
func (c *Catalog) Command(id string) (Command, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Command{}, false
	}
	return c.commands[i], true
}

// clause is one term of a precondition. Preconditions are clauses joined
// by "&&"; a clause is "os.<goos>", "env.<NAME>" (set and non-empty) or
// "true", optionally negated with "!".
type clause struct {
	negate bool
	kind   string // os, env, true
	arg    string
}

func parsePrecondition(expr string) ([]clause, error) {
	var out []clause
	for _, part := range strings.Split(expr, "&&") {
		part = strings.TrimSpace(part)
		var cl clause
		if strings.HasPrefix(part, "!") {
			cl.negate = true
			part = strings.TrimSpace(part[1:])
		}
		switch {
		case part == "true":
			cl.kind = "true"
		case strings.HasPrefix(part, "os.") && len(part) > 3:
			cl.kind, cl.arg = "os", part[3:]
		case strings.HasPrefix(part, "env.") && len(part) > 4:
			cl.kind, cl.arg = "env", part[4:]
		default:
			return nil, fmt.Errorf("invalid precondition clause %q", part)
		}
		out = append(out, cl)
	}
	return out, nil
}

// EvalPrecondition evaluates expr against the running process. A malformed
// expression is false.
func EvalPrecondition(expr string) bool {
	clauses, err := parsePrecondition(expr)
	if err != nil {
		return false
	}
	for _, cl := range clauses {
		var ok bool
		switch cl.kind {
		case "true":
			ok = true
		case "os":
			ok = runtime.GOOS == cl.arg
		case "env":
			ok = os.Getenv(cl.arg) != ""
		}
		if ok == cl.negate {
			return false
		}
	}
	return true
}

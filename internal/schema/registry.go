package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/mowerble/internal/protocol"
)

//go:embed commands.yaml
var commandsYAML []byte

//go:embed models.yaml
var modelsYAML []byte

const definitionVersion = 1

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Registry maps command names to their definitions.
// It is immutable after Load returns. Entries must not be modified.
type Registry struct {
	entries map[Name]*Entry
	models  *ModelTable
}

type definitionFile struct {
	Version  int `yaml:"version"`
	Defaults struct {
		Prefix []byte `yaml:"prefix"`
	} `yaml:"defaults"`
	Commands []commandDef `yaml:"commands"`
}

type commandDef struct {
	Name       string      `yaml:"name"`
	Major      uint16      `yaml:"major"`
	Minor      uint8       `yaml:"minor"`
	Request    []FieldSpec `yaml:"request"`
	Response   []FieldSpec `yaml:"response"`
	Validation *Validation `yaml:"validation"`
}

// Default returns the registry built from the embedded definitions.
// The definitions are parsed on first call. A broken embedded file is a
// build defect, so Default panics rather than returning an error.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		reg, err := Load(commandsYAML, modelsYAML)
		if err != nil {
			panic(fmt.Sprintf("schema: embedded definitions: %v", err))
		}
		for _, name := range Names {
			if _, ok := reg.entries[name]; !ok {
				panic(fmt.Sprintf("schema: embedded definitions: missing command %s", name))
			}
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Load parses command and model definitions. models may be nil, giving an
// empty model table.
func Load(commands, models []byte) (*Registry, error) {
	var file definitionFile
	if err := yaml.Unmarshal(commands, &file); err != nil {
		return nil, fmt.Errorf("failed to parse command definitions: %w", err)
	}
	if file.Version != definitionVersion {
		return nil, fmt.Errorf("unsupported command definition version: %d (expected %d)", file.Version, definitionVersion)
	}

	reg := &Registry{entries: make(map[Name]*Entry, len(file.Commands))}
	ids := make(map[protocol.CommandID]string, len(file.Commands))

	for i, def := range file.Commands {
		entry, err := buildEntry(def, file.Defaults.Prefix)
		if err != nil {
			return nil, fmt.Errorf("command %d (%q): %w", i, def.Name, err)
		}
		if _, dup := reg.entries[entry.Name]; dup {
			return nil, fmt.Errorf("duplicate command name %q", entry.Name)
		}
		if other, dup := ids[entry.ID]; dup {
			return nil, fmt.Errorf("commands %q and %q share id %s", other, entry.Name, entry.ID)
		}
		ids[entry.ID] = def.Name
		reg.entries[entry.Name] = entry
	}

	table, err := parseModels(models)
	if err != nil {
		return nil, err
	}
	reg.models = table

	return reg, nil
}

func buildEntry(def commandDef, defaultPrefix []byte) (*Entry, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("missing name")
	}

	request, err := checkFields(def.Request, true)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	response, err := checkFields(def.Response, false)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	entry := &Entry{
		Name:     Name(def.Name),
		ID:       protocol.CommandID{Major: def.Major, Minor: def.Minor},
		Request:  request,
		Response: response,
	}

	if def.Validation != nil {
		entry.Validation = *def.Validation
	} else {
		entry.Validation = Validation{Prefix: defaultPrefix}
		entry.Validation.MinLength = len(defaultPrefix)
		entry.Validation.MaxLength = len(defaultPrefix)
		for _, f := range response {
			entry.Validation.MinLength += f.MinSize()
			entry.Validation.MaxLength += f.MaxSize()
		}
	}
	if v := entry.Validation; v.MaxLength != 0 && v.MaxLength < v.MinLength {
		return nil, fmt.Errorf("validation maxLength %d below minLength %d", v.MaxLength, v.MinLength)
	}

	return entry, nil
}

func checkFields(fields []FieldSpec, request bool) ([]FieldSpec, error) {
	out := make([]FieldSpec, len(fields))
	seen := make(map[string]bool, len(fields))

	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: missing name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		if !f.Type.Valid() {
			return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
		if f.Type.IsString() {
			if f.MaxLength == 0 {
				f.MaxLength = DefaultStringLength
			}
			if f.MaxLength < 0 || f.MaxLength > 255 {
				return nil, fmt.Errorf("field %q: maxLength %d out of range 1-255", f.Name, f.MaxLength)
			}
		}
		if !request && f.HasDefault() {
			return nil, fmt.Errorf("field %q: response fields cannot declare a default", f.Name)
		}
		out[i] = f
	}

	return out, nil
}

// Get returns the entry for a command name.
// It fails with protocol.ErrUnknownCommand if the name is not registered.
func (r *Registry) Get(name Name) (*Entry, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, protocol.NewUnknownCommandError(string(name))
	}
	return entry, nil
}

// Names returns every registered command name in sorted order
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Models returns the manufacturer/model lookup table
func (r *Registry) Models() *ModelTable {
	return r.models
}

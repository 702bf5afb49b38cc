package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/ir"
	"github.com/oriys/weft/internal/store"
)

// EntitySpec is the YAML specification of one world entity: its properties,
// the verbs attached to it, and the capabilities it starts out owning.
// Prototype references are by spec name, resolved in file order, so a spec
// document can build a whole prototype chain without knowing entity ids.
type EntitySpec struct {
	// API version for future compatibility
	APIVersion string `yaml:"apiVersion,omitempty"`
	// Kind is always "Entity"
	Kind string `yaml:"kind,omitempty"`

	Name      string         `yaml:"name"`
	Prototype string         `yaml:"prototype,omitempty"` // name of an earlier spec in the same file, or a seeded entity name
	Props     map[string]any `yaml:"props,omitempty"`

	Verbs        []VerbSpec       `yaml:"verbs,omitempty"`
	Capabilities []CapabilitySpec `yaml:"capabilities,omitempty"`
}

// VerbSpec is the YAML specification of a verb. Code is the verb's IR tree
// written directly in YAML (sequences become opcode calls the same way the
// JSON wire form does).
type VerbSpec struct {
	Name               string `yaml:"name"`
	Code               any    `yaml:"code"`
	RequiredCapability string `yaml:"requiredCapability,omitempty"`
}

// CapabilitySpec is the YAML specification of a capability granted to the
// entity at load time. Loading a spec is a privileged bootstrap path, so
// this goes through the store directly rather than mint/delegate.
type CapabilitySpec struct {
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params,omitempty"`
}

// WorldSpec holds every entity spec parsed from a single file.
type WorldSpec struct {
	Entities []EntitySpec
}

// ParseSpecFile parses a YAML file containing one or more entity specs.
func ParseSpecFile(path string) (*WorldSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return ParseSpec(f)
}

// ParseSpec parses YAML content containing one or more entity specs,
// separated by document markers.
func ParseSpec(r io.Reader) (*WorldSpec, error) {
	decoder := yaml.NewDecoder(r)
	var specs []EntitySpec

	for {
		var spec EntitySpec
		err := decoder.Decode(&spec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}

		// Skip empty documents
		if spec.Name == "" && len(spec.Props) == 0 {
			continue
		}

		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no valid entity specs found")
	}

	return &WorldSpec{Entities: specs}, nil
}

// Validate validates an entity spec.
func (s *EntitySpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Kind != "" && s.Kind != "Entity" {
		return fmt.Errorf("invalid kind: %s (valid: Entity)", s.Kind)
	}
	seen := map[string]bool{}
	for _, v := range s.Verbs {
		if v.Name == "" {
			return fmt.Errorf("entity %s: verb name is required", s.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("entity %s: duplicate verb %q", s.Name, v.Name)
		}
		seen[v.Name] = true
		if v.Code == nil {
			return fmt.Errorf("entity %s: verb %q has no code", s.Name, v.Name)
		}
	}
	for _, c := range s.Capabilities {
		if c.Kind == "" {
			return fmt.Errorf("entity %s: capability kind is required", s.Name)
		}
	}
	return nil
}

// Apply loads the spec's entities, verbs and capabilities into s inside one
// transaction: either the whole file lands or none of it does. Prototype
// names resolve against entities created earlier in the same file, then
// against any existing entity whose props carry the same "name". Returns
// the created entity ids keyed by spec name.
func (w *WorldSpec) Apply(ctx context.Context, s *store.Store) (map[string]domain.EntityID, error) {
	created := map[string]domain.EntityID{}

	err := s.WithTx(ctx, func(ctx context.Context) error {
		for i := range w.Entities {
			spec := &w.Entities[i]
			if err := spec.Validate(); err != nil {
				return fmt.Errorf("seed: spec %d: %w", i, err)
			}

			var protoID *domain.EntityID
			if spec.Prototype != "" {
				id, ok := created[spec.Prototype]
				if !ok {
					found, err := s.FindEntityByName(ctx, spec.Prototype)
					if err != nil {
						return fmt.Errorf("seed: entity %s: prototype %q: %w", spec.Name, spec.Prototype, err)
					}
					id = found
				}
				protoID = &id
			}

			props := map[string]any{"name": spec.Name}
			for k, v := range spec.Props {
				props[k] = normalizeYAML(v)
			}
			data, err := json.Marshal(props)
			if err != nil {
				return fmt.Errorf("seed: entity %s: marshal props: %w", spec.Name, err)
			}

			id, err := s.CreateEntity(ctx, data, protoID)
			if err != nil {
				return fmt.Errorf("seed: entity %s: %w", spec.Name, err)
			}
			created[spec.Name] = id

			for _, v := range spec.Verbs {
				code := ir.FromAny(normalizeYAML(v.Code))
				var reqCap *string
				if v.RequiredCapability != "" {
					rc := v.RequiredCapability
					reqCap = &rc
				}
				if _, err := s.AddVerb(ctx, id, v.Name, code, reqCap); err != nil {
					return fmt.Errorf("seed: entity %s: verb %s: %w", spec.Name, v.Name, err)
				}
			}

			for _, c := range spec.Capabilities {
				params := map[string]any{}
				for k, v := range c.Params {
					params[k] = normalizeYAML(v)
				}
				if _, err := s.CreateCapability(ctx, id, c.Kind, params); err != nil {
					return fmt.Errorf("seed: entity %s: capability %s: %w", spec.Name, c.Kind, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// normalizeYAML rewrites the value trees yaml.v3 produces (map[string]any
// with int values, nested map[any]any in older documents) into the
// map[string]any/[]any/float64 shape the rest of the runtime — the store's
// props columns and ir.FromAny — expects.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

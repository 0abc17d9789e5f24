// Package profile loads YAML session profiles and turns them into the
// command line a session dispatches.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tldr-it-stepankutaj/lunapad/internal/script"
)

// Profile is a named, ordered list of configuration steps.
type Profile struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string            `yaml:"author,omitempty" json:"author,omitempty"`
	Variables   map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps       []Step            `yaml:"steps" json:"steps"`

	// Dir anchors relative module paths. Load sets it to the profile's
	// directory.
	Dir string `yaml:"-" json:"-"`
}

// Step changes the library mask, loads modules, or both; the mask applies
// to the modules of the same step.
type Step struct {
	ID          string   `yaml:"id,omitempty" json:"id,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Libraries   string   `yaml:"libraries,omitempty" json:"libraries,omitempty"`
	Modules     []string `yaml:"modules,omitempty" json:"modules,omitempty"`
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.Dir = filepath.Dir(path)
	return p, nil
}

// Parse decodes a profile and assigns IDs to anonymous steps.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	for i := range p.Steps {
		if p.Steps[i].ID == "" {
			p.Steps[i].ID = fmt.Sprintf("step_%d", i+1)
		}
	}
	return &p, nil
}

// Save writes p to path as YAML.
func Save(p *Profile, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate reports every problem found in p.
func (p *Profile) Validate() error {
	var problems []string
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if len(p.Steps) == 0 {
		problems = append(problems, "at least one step is required")
	}
	seen := make(map[string]bool)
	for _, s := range p.Steps {
		if seen[s.ID] {
			problems = append(problems, fmt.Sprintf("step %s: duplicate id", s.ID))
		}
		seen[s.ID] = true
		if s.Libraries == "" && len(s.Modules) == 0 {
			problems = append(problems, fmt.Sprintf("step %s: needs libraries or modules", s.ID))
		}
		if s.Libraries != "" {
			if _, err := script.ParseLibraries(p.expand(s.Libraries)); err != nil {
				problems = append(problems, fmt.Sprintf("step %s: %v", s.ID, err))
			}
		}
		for _, m := range s.Modules {
			m = p.expand(m)
			switch {
			case m == "":
				problems = append(problems, fmt.Sprintf("step %s: empty module path", s.ID))
			case strings.HasPrefix(m, "-"):
				problems = append(problems, fmt.Sprintf("step %s: module %q looks like a flag", s.ID, m))
			case strings.Contains(m, "${"):
				problems = append(problems, fmt.Sprintf("step %s: unresolved variable in %q", s.ID, m))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid profile %q: %s", p.Name, strings.Join(problems, "; "))
	}
	return nil
}

// Args renders the profile as dispatch arguments, for example
// ["-l", "7", "-m", "a.lua", "b.lua"].
func (p *Profile) Args() []string {
	var args []string
	for _, s := range p.Steps {
		if s.Libraries != "" {
			args = append(args, "-l", p.expand(s.Libraries))
		}
		if len(s.Modules) > 0 {
			args = append(args, "-m")
			for _, m := range s.Modules {
				args = append(args, p.resolve(p.expand(m)))
			}
		}
	}
	return args
}

// Modules lists every module path the profile loads, in load order.
func (p *Profile) Modules() []string {
	var out []string
	for _, s := range p.Steps {
		for _, m := range s.Modules {
			out = append(out, p.resolve(p.expand(m)))
		}
	}
	return out
}

// Override replaces variables for this run.
func (p *Profile) Override(vars map[string]string) {
	if len(vars) == 0 {
		return
	}
	if p.Variables == nil {
		p.Variables = make(map[string]string, len(vars))
	}
	for k, v := range vars {
		p.Variables[k] = v
	}
}

// expand replaces ${name} references with profile variables.
func (p *Profile) expand(s string) string {
	if !strings.Contains(s, "${") || len(p.Variables) == 0 {
		return s
	}
	names := make([]string, 0, len(p.Variables))
	for k := range p.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(names))
	for _, k := range names {
		pairs = append(pairs, "${"+k+"}", p.Variables[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func (p *Profile) resolve(path string) string {
	if p.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// Template returns a starter profile for name.
func Template(name string) *Profile {
	return &Profile{
		Name:        name,
		Description: "Loads the starter pad script with the recommended libraries",
		Variables:   map[string]string{"scripts": "."},
		Steps: []Step{
			{ID: "libraries", Libraries: strconv.FormatUint(uint64(script.LibRecommended), 10)},
			{ID: "pads", Modules: []string{"${scripts}/pad.lua"}},
		},
	}
}

// Package profile describes how each supported language is built and run.
package profile

import (
	"runtime"
	"sort"
	"strings"

	appErr "examgrader/pkg/errors"
)

// HostFamily selects host-specific command forms.
type HostFamily string

const (
	HostPOSIX   HostFamily = "posix"
	HostWindows HostFamily = "windows"
)

// CurrentHost returns the family of the running operating system.
func CurrentHost() HostFamily {
	if runtime.GOOS == "windows" {
		return HostWindows
	}
	return HostPOSIX
}

// LanguageSpec defines compile and run templates for one language.
//
// Templates are split into argv with shell-like quoting and support the
// placeholders {src}, {bin}, {dir} and {class}.
type LanguageSpec struct {
	ID             string   `yaml:"id"`
	Extension      string   `yaml:"extension"`
	SourceBase     string   `yaml:"sourceBase"`
	CompileEnabled bool     `yaml:"compileEnabled"`
	CompileCmdTpl  string   `yaml:"compileCmd"`
	RunCmdTpl      string   `yaml:"runCmd"`
	BinaryFile     string   `yaml:"binaryFile"`
	Env            []string `yaml:"env"`
}

// SourceFile is the canonical name of the submitted source inside a workspace.
func (l LanguageSpec) SourceFile() string {
	return l.SourceBase + "." + l.Extension
}

func (l LanguageSpec) validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return appErr.ValidationError("id", "language id is required")
	}
	if l.SourceBase == "" || l.Extension == "" {
		return appErr.ValidationError("sourceBase", "source base and extension are required for "+l.ID)
	}
	if strings.TrimSpace(l.RunCmdTpl) == "" {
		return appErr.ValidationError("runCmd", "run command is required for "+l.ID)
	}
	if l.CompileEnabled && strings.TrimSpace(l.CompileCmdTpl) == "" {
		return appErr.ValidationError("compileCmd", "compile command is required for "+l.ID)
	}
	return nil
}

// Registry is an immutable set of language specs keyed by identifier.
type Registry struct {
	specs map[string]LanguageSpec
}

// supportedIDs is the fixed set of language identifiers the grader accepts.
var supportedIDs = map[string]struct{}{
	"python": {},
	"java":   {},
	"c":      {},
}

// NewRegistry validates specs and builds a registry. Later specs with a
// repeated id replace earlier ones, so configuration can only retune the
// templates of python, java and c. Any other id fails with
// LanguageNotSupported.
func NewRegistry(specs ...LanguageSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]LanguageSpec, len(specs))}
	for _, s := range specs {
		if _, ok := supportedIDs[s.ID]; !ok {
			return nil, appErr.UnsupportedLanguage(s.ID)
		}
		if err := s.validate(); err != nil {
			return nil, err
		}
		r.specs[s.ID] = s
	}
	return r, nil
}

// WithOverrides builds the host registry with overrides applied on top of
// the built-in profiles.
func WithOverrides(host HostFamily, overrides ...LanguageSpec) (*Registry, error) {
	return NewRegistry(append(Builtins(host), overrides...)...)
}

// DefaultRegistry returns the built-in python, java and c profiles for host.
func DefaultRegistry(host HostFamily) *Registry {
	r, err := NewRegistry(Builtins(host)...)
	if err != nil {
		panic(err)
	}
	return r
}

// Builtins returns the stock language specs for host.
func Builtins(host HostFamily) []LanguageSpec {
	python := "python3 {src}"
	if host == HostWindows {
		python = "python {src}"
	}
	return []LanguageSpec{
		{
			ID:         "python",
			Extension:  "py",
			SourceBase: "solution",
			RunCmdTpl:  python,
		},
		{
			ID:             "java",
			Extension:      "java",
			SourceBase:     "Solution",
			CompileEnabled: true,
			CompileCmdTpl:  "javac {src}",
			RunCmdTpl:      "java -cp {dir} {class}",
		},
		{
			ID:             "c",
			Extension:      "c",
			SourceBase:     "solution",
			CompileEnabled: true,
			CompileCmdTpl:  "gcc {src} -o {bin}",
			RunCmdTpl:      "{bin}",
			BinaryFile:     "solution",
		},
	}
}

// Resolve returns the language registered under id.
func (r *Registry) Resolve(id string) (LanguageSpec, error) {
	if r != nil {
		if s, ok := r.specs[id]; ok {
			return s, nil
		}
	}
	return LanguageSpec{}, appErr.UnsupportedLanguage(id)
}

// Languages lists registered identifiers in sorted order.
func (r *Registry) Languages() []string {
	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

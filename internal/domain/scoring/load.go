package scoring

import (
	"embed"
	"fmt"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// keyDelim separates nested keys inside koanf. Action keys may contain dots
// (e.g. "coral.l4"), so a character that never appears in them is used.
const keyDelim = "/"

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Embedded schemas, compiled on first use.
var (
	defaultsOnce sync.Once //nolint:gochecknoglobals // lazily compiled embedded assets
	defaults     []*Schema //nolint:gochecknoglobals // lazily compiled embedded assets
	defaultsErr  error     //nolint:gochecknoglobals // lazily compiled embedded assets
)

// defaultFiles lists the embedded schemas; the first one is the fallback.
var defaultFiles = []string{"defaults/reefscape_2025.yaml", "defaults/crescendo_2024.yaml"} //nolint:gochecknoglobals // fixed asset list

// Parse decodes and compiles a YAML schema document.
func Parse(b []byte) (*Schema, error) {
	doc, err := yaml.Parser().Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadSchema, err)
	}
	return Compile(doc)
}

// LoadFile reads and compiles a YAML schema from path.
func LoadFile(path string) (*Schema, error) {
	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadSchema, path, err)
	}
	s, err := Compile(k.Raw())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Defaults returns the embedded game schemas, newest first.
func Defaults() ([]*Schema, error) {
	defaultsOnce.Do(func() {
		for _, name := range defaultFiles {
			b, err := defaultsFS.ReadFile(name)
			if err != nil {
				defaultsErr = fmt.Errorf("%w: %s: %w", ErrLoadSchema, name, err)
				return
			}
			s, err := Parse(b)
			if err != nil {
				defaultsErr = fmt.Errorf("%s: %w", name, err)
				return
			}
			defaults = append(defaults, s)
		}
	})
	return defaults, defaultsErr
}

// Default returns the newest embedded schema. It panics if the embedded
// assets are broken, which only a bad build can cause.
func Default() *Schema {
	all, err := Defaults()
	if err != nil {
		panic(err)
	}
	return all[0]
}

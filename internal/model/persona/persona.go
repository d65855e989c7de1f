package persona

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultID identifies the built-in companion.
const DefaultID = "lumi"

// Persona captures the companion attributes used for prompts and client greetings.
type Persona struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Title        string   `json:"title" yaml:"title"`
	Tone         string   `json:"tone" yaml:"tone"`
	Intro        string   `json:"-" yaml:"intro"`
	Rules        []string `json:"-" yaml:"rules"`
	OpeningLine  string   `json:"openingLine" yaml:"openingLine"`
	Greeting     string   `json:"greeting" yaml:"greeting"`
	FallbackLine string   `json:"-" yaml:"fallbackLine"`
}

//go:embed seed.yaml
var seedYAML []byte

// Seed returns the built-in personas.
func Seed() []Persona {
	items, err := Parse(seedYAML)
	if err != nil {
		panic(fmt.Sprintf("persona: invalid embedded seed: %v", err))
	}
	return items
}

// Parse decodes a YAML persona list.
func Parse(data []byte) ([]Persona, error) {
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}
	for i, p := range doc.Personas {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("persona %d: id and name are required", i)
		}
	}
	return doc.Personas, nil
}

// Greet renders the greeting for a named user.
func (p Persona) Greet(username string) string {
	return fmt.Sprintf(p.Greeting, username)
}

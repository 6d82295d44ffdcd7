package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/askme/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultToneName is used when a request names no tone
const DefaultToneName = "Interview Mode"

// Tone is a named answering style appended to the system prompt
type Tone struct {
	Name        string `yaml:"name" json:"name"`
	Instruction string `yaml:"instruction" json:"instruction"`
}

var builtinTones = []Tone{
	{"Interview Mode", "Answer concisely, professionally, and highlight achievements as if in a job interview."},
	{"Fast Facts", "Answer in bullet points or TL;DR style for quick reference."},
	{"Mentor Mode", "Answer like a helpful mentor: encouraging, insightful, and guiding."},
	{"Playful Mode", "Answer with light humor, metaphors, or fun comparisons while staying informative."},
	{"Casual Chat", "Answer like you would in a relaxed conversation with a peer: natural, friendly, and relatable."},
	{"Debug Mode", "Answer step-by-step, like explaining your reasoning while debugging code."},
	{"Analogy Mode", "Always explain with analogies and metaphors."},
	{"Concise", "Answer as briefly and to the point as possible, with no extra fluff."},
}

// ToneCatalog is an ordered, immutable set of tones
type ToneCatalog struct {
	tones       []Tone
	byName      map[string]int
	defaultName string
}

// toneFile is the YAML layout of a tones file
type toneFile struct {
	Default string `yaml:"default"`
	Tones   []Tone `yaml:"tones"`
}

func DefaultToneCatalog() *ToneCatalog {
	c := &ToneCatalog{byName: make(map[string]int), defaultName: DefaultToneName}
	for _, t := range builtinTones {
		c.set(t)
	}
	return c
}

// LoadToneCatalog starts from the built-in tones and applies the YAML file
// at path on top. Entries with an existing name replace its instruction in
// place; new names are appended. An empty path yields the built-ins.
func LoadToneCatalog(path string) (*ToneCatalog, error) {
	c := DefaultToneCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tones file: %w", err)
	}
	var f toneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tones file: %w", err)
	}

	for i, t := range f.Tones {
		t.Name = strings.TrimSpace(t.Name)
		t.Instruction = strings.TrimSpace(t.Instruction)
		if t.Name == "" || t.Instruction == "" {
			return nil, fmt.Errorf("tones file entry %d needs a name and an instruction", i)
		}
		c.set(t)
	}
	if f.Default != "" {
		if _, ok := c.byName[f.Default]; !ok {
			return nil, fmt.Errorf("tones file default %q is not a known tone", f.Default)
		}
		c.defaultName = f.Default
	}
	return c, nil
}

func (c *ToneCatalog) set(t Tone) {
	if i, ok := c.byName[t.Name]; ok {
		c.tones[i] = t
		return
	}
	c.byName[t.Name] = len(c.tones)
	c.tones = append(c.tones, t)
}

// List returns the tones in display order
func (c *ToneCatalog) List() []Tone {
	return append([]Tone(nil), c.tones...)
}

func (c *ToneCatalog) Default() Tone {
	return c.tones[c.byName[c.defaultName]]
}

// Lookup resolves a tone by name; an empty name selects the default
func (c *ToneCatalog) Lookup(name string) (Tone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return c.Default(), nil
	}
	i, ok := c.byName[name]
	if !ok {
		return Tone{}, domain.ErrToneNotFound
	}
	return c.tones[i], nil
}

package toolkit

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed content.yaml
var contentYAML []byte

type Formula struct {
	Name    string `yaml:"name" json:"name"`
	Formula string `yaml:"formula" json:"formula"`
	Note    string `yaml:"note" json:"note"`
}

type Flashcard struct {
	Question string `yaml:"q" json:"question"`
	Answer   string `yaml:"a" json:"answer"`
}

// Content is the static material behind the toolkit widgets.
type Content struct {
	Formulas   []Formula   `yaml:"formulas"`
	Flashcards []Flashcard `yaml:"flashcards"`
	Chapters   []string    `yaml:"chapters"`
	Quotes     []string    `yaml:"quotes"`
}

func DefaultContent() (Content, error) {
	return ParseContent(contentYAML)
}

func ParseContent(data []byte) (Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("parse toolkit content: %w", err)
	}
	if len(c.Flashcards) == 0 {
		return Content{}, fmt.Errorf("parse toolkit content: no flashcards")
	}
	return c, nil
}

// SearchFormulas matches query case-insensitively against formula names.
// An empty query matches nothing.
func (c Content) SearchFormulas(query string) []Formula {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Formula
	for _, f := range c.Formulas {
		if strings.Contains(strings.ToLower(f.Name), q) {
			out = append(out, f)
		}
	}
	return out
}

// RandomQuote returns one of the motivational quotes, or "" if there are none.
func (c Content) RandomQuote() string {
	if len(c.Quotes) == 0 {
		return ""
	}
	return c.Quotes[rand.IntN(len(c.Quotes))]
}

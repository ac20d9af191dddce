// Package corpus holds the static prompt lookup table. Every entry is a pair of
// question variants: the "real" one most participants receive and the "fake" one
// handed to the imposter. The table is read-only after load.
package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed prompts.json
var embeddedPrompts []byte

type PromptPair struct {
	ID   string `json:"id"`
	Real string `json:"real"`
	Fake string `json:"fake"`
}

type Corpus struct {
	byID map[string]PromptPair
	ids  []string
}

// Load builds the corpus from the prompt set compiled into the binary.
func Load() (*Corpus, error) {
	return parse(embeddedPrompts)
}

// LoadFile builds the corpus from a JSON file on disk, for operator-supplied
// prompt sets.
func LoadFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Corpus, error) {
	var pairs []PromptPair

	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse prompt corpus: %w", err)
	}

	return New(pairs)
}

// New validates the prompt pairs and builds the lookup table.
func New(pairs []PromptPair) (*Corpus, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("prompt corpus is empty")
	}

	byID := make(map[string]PromptPair, len(pairs))

	for _, p := range pairs {
		if p.ID == "" {
			return nil, fmt.Errorf("prompt with empty id")
		}
		if p.Real == "" || p.Fake == "" {
			return nil, fmt.Errorf("prompt %s is missing a variant", p.ID)
		}
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate prompt id %s", p.ID)
		}

		byID[p.ID] = p
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return &Corpus{byID: byID, ids: ids}, nil
}

func (c *Corpus) Get(id string) (PromptPair, bool) {
	pair, ok := c.byID[id]
	return pair, ok
}

// IDs returns all prompt ids in a stable order. Callers must not mutate the
// returned slice.
func (c *Corpus) IDs() []string {
	return c.ids
}

func (c *Corpus) Len() int {
	return len(c.ids)
}

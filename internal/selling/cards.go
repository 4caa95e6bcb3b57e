package selling

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OptionCard is the display projection of one option: derived data only,
// rebuilt fresh from the content table on every call.
type OptionCard struct {
	Option   Option   `json:"option" yaml:"-"`
	Title    string   `json:"title" yaml:"title"`
	Subtitle string   `json:"subtitle" yaml:"subtitle"`
	Bullets  []string `json:"bullets" yaml:"bullets"`
	Badge    string   `json:"badge,omitempty" yaml:"badge"`
	LearnURL string   `json:"learn_url,omitempty" yaml:"learn_url"`
}

//go:embed cards.yaml
var cardsYAML []byte

var cardTable = func() map[Option]OptionCard {
	var raw map[Option]OptionCard
	if err := yaml.Unmarshal(cardsYAML, &raw); err != nil {
		panic(fmt.Sprintf("selling: malformed cards.yaml: %v", err))
	}
	for _, o := range priorityOrder {
		if _, ok := raw[o]; !ok {
			panic(fmt.Sprintf("selling: cards.yaml missing option %q", o))
		}
	}
	return raw
}()

// BuildOptionCard returns the display card for an option. The option space is
// closed and fully enumerated by the engine, so an unrecognized identifier is
// a programming error and panics.
func BuildOptionCard(o Option) OptionCard {
	card, ok := cardTable[o]
	if !ok {
		panic(fmt.Sprintf("selling: unknown option %q", o))
	}
	card.Option = o
	out := card
	out.Bullets = make([]string, len(card.Bullets))
	copy(out.Bullets, card.Bullets)
	return out
}

// Package icon renders status symbols in the variant chosen by icons.variant.
package icon

import (
	"slices"

	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/spf13/viper"
)

var variants = []string{"emoji", "nerd", "plain", "kaomoji", "squares"}

func AvailableVariants() []string {
	return slices.Clone(variants)
}

type iconDef struct {
	emoji, nerd, plain, kaomoji, squares string
}

func (d *iconDef) in(variant string) string {
	switch variant {
	case "emoji":
		return d.emoji
	case "nerd":
		return d.nerd
	case "plain":
		return d.plain
	case "kaomoji":
		return d.kaomoji
	case "squares":
		return d.squares
	}
	return ""
}

// Get renders i. Unknown icons and variants render as the empty string.
func Get(i Icon) string {
	def, ok := icons[i]
	if !ok {
		return ""
	}
	return def.in(viper.GetString(key.IconsVariant))
}

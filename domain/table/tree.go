package table

import (
	"fmt"
	"strings"

	"jetfakes/domain/core"
)

// Known event trees, one per channel
var KnownTrees = []string{"et_tree", "mt_tree"}

// ParseTreeName finds the event tree among the keys of a store. Keys may
// carry a ";N" cycle suffix.
func ParseTreeName(keys []string) (string, error) {
	for _, tree := range KnownTrees {
		for _, key := range keys {
			name, _, _ := strings.Cut(key, ";")
			if name == tree {
				return tree, nil
			}
		}
	}
	return "", fmt.Errorf("%w in keys %v", core.ErrTreeNotFound, keys)
}

// TreeForChannel returns the tree name of a channel prefix
func TreeForChannel(channel string) (string, error) {
	tree := channel + "_tree"
	for _, known := range KnownTrees {
		if known == tree {
			return tree, nil
		}
	}
	return "", fmt.Errorf("%w: unknown channel %q", core.ErrTreeNotFound, channel)
}

// ChannelPrefix returns the two-letter channel of a tree name
func ChannelPrefix(tree string) string {
	if len(tree) < 2 {
		return tree
	}
	return tree[:2]
}

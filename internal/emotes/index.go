package emotes

import (
	"regexp"
	"sort"
	"strings"
)

// Index is the merged, name-keyed emote lookup for one channel context.
// It is immutable after BuildIndex; a channel switch builds a fresh one.
type Index struct {
	byName  map[string]Descriptor
	pattern *regexp.Regexp
}

// BuildIndex merges the four emote sources into one index. Insert order
// defines precedence on name collision, later wins: platform global <
// platform channel < third-party global < third-party channel.
func BuildIndex(platformGlobal, platformChannel []PlatformEmote, thirdGlobal, thirdChannel []ThirdPartyEmote) *Index {
	byName := make(map[string]Descriptor)
	for _, e := range platformGlobal {
		if e.Name != "" {
			byName[e.Name] = FromPlatform(e)
		}
	}
	for _, e := range platformChannel {
		if e.Name != "" {
			byName[e.Name] = FromPlatform(e)
		}
	}
	for _, e := range thirdGlobal {
		if e.Name != "" {
			byName[e.Name] = FromThirdParty(e)
		}
	}
	for _, e := range thirdChannel {
		if e.Name != "" {
			byName[e.Name] = FromThirdParty(e)
		}
	}

	ix := &Index{byName: byName}
	ix.pattern = buildPattern(byName)
	return ix
}

// EmptyIndex returns an index with no entries; Tokenize against it returns
// the message untouched.
func EmptyIndex() *Index {
	return &Index{byName: map[string]Descriptor{}}
}

// Lookup returns the descriptor for an exact, case-sensitive emote name.
func (ix *Index) Lookup(name string) (Descriptor, bool) {
	d, ok := ix.byName[name]
	return d, ok
}

// Len reports the number of distinct emote names in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byName)
}

// buildPattern compiles one alternation over all index keys. Each name is
// literal-escaped, and names are ordered longest-first so that when two
// names could match at the same position the longest one wins (the regexp
// engine tries alternatives in order). Matches must sit on word boundaries:
// a name embedded inside a longer word does not match, while a name followed
// by punctuation ("Kappa!") does.
func buildPattern(byName map[string]Descriptor) *regexp.Regexp {
	if len(byName) == 0 {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = regexp.QuoteMeta(name)
	}

	re, err := regexp.Compile(`\b(` + strings.Join(escaped, "|") + `)\b`)
	if err != nil {
		// QuoteMeta neutralizes every metacharacter, so this only trips on
		// pathological input; treat it as an empty pattern.
		return nil
	}
	return re
}

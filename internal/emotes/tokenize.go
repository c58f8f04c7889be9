package emotes

// Segment is one run of tokenized message text. Emote is nil for literal
// text; for a match it carries the index descriptor for the matched name.
type Segment struct {
	Text  string
	Emote *Descriptor
}

// Tokenize scans a message left to right for non-overlapping emote name
// occurrences and returns the ordered text/emote segments. With an empty
// index the whole message comes back as a single text segment; empty literal
// spans between adjacent matches are omitted.
func Tokenize(message string, ix *Index) []Segment {
	if ix == nil || ix.Len() == 0 || ix.pattern == nil {
		return []Segment{{Text: message}}
	}

	matches := ix.pattern.FindAllStringIndex(message, -1)
	if len(matches) == 0 {
		return []Segment{{Text: message}}
	}

	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > last {
			segments = append(segments, Segment{Text: message[last:start]})
		}
		name := message[start:end]
		d, ok := ix.Lookup(name)
		if !ok {
			// Pattern and map are built from the same keys; an unknown match
			// would mean the index was mutated, which BuildIndex forbids.
			segments = append(segments, Segment{Text: name})
			last = end
			continue
		}
		segments = append(segments, Segment{Text: name, Emote: &d})
		last = end
	}
	if last < len(message) {
		segments = append(segments, Segment{Text: message[last:]})
	}
	return segments
}

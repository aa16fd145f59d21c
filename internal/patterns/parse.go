package patterns

import (
	"encoding/json"
	"strings"
)

// Item is one {type, text} element from classifier output after
// normalisation.
type Item struct {
	Type string
	Text string
}

// Parsed is the result of reading classifier output. OK is false when
// neither the bracketed slice nor the raw text was a JSON array; Items is
// then empty.
type Parsed struct {
	Items []Item
	OK    bool
}

type rawItem struct {
	Type any `json:"type"`
	Text any `json:"text"`
}

// Parse reads a JSON array of {type, text} from raw model output. The slice
// between the first '[' and the last ']' is tried first since models often
// wrap the array in prose; the raw text is tried second.
func Parse(raw string) Parsed {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Parsed{}
	}

	var elems []json.RawMessage
	ok := false
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start >= 0 && end > start {
		ok = json.Unmarshal([]byte(raw[start:end+1]), &elems) == nil
	}
	if !ok {
		elems = nil
		ok = json.Unmarshal([]byte(raw), &elems) == nil
	}
	if !ok {
		return Parsed{}
	}

	items := make([]Item, 0, len(elems))
	for _, e := range elems {
		var ri rawItem
		if err := json.Unmarshal(e, &ri); err != nil {
			continue
		}
		text, _ := ri.Text.(string)
		text = truncateRunes(strings.TrimSpace(text), maxPatternText)
		if text == "" {
			continue
		}
		typ, _ := ri.Type.(string)
		typ = strings.ToLower(strings.TrimSpace(typ))
		if !ValidType(typ) {
			typ = TypeTheme
		}
		items = append(items, Item{Type: typ, Text: text})
	}
	return Parsed{Items: items, OK: true}
}

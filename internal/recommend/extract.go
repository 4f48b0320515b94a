package recommend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"nexlook/internal/infra"
)

var ErrExtraction = errors.New("response extraction failed")

// LookRecommendation is a structured outfit built only from the user's own items.
type LookRecommendation struct {
	Occasion            string     `json:"occasion"`
	Rationale           string     `json:"rationale"`
	Items               []LookItem `json:"items"`
	FootwearSuggestion  string     `json:"footwearSuggestion"`
	AccessorySuggestion string     `json:"accessorySuggestion"`
}

type LookItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	ImageRef string `json:"imageRef"`
}

type completionEnvelope struct {
	Choices []envelopeChoice `json:"choices"`
}

type envelopeChoice struct {
	Message *envelopeMessage `json:"message"`
	Text    *string          `json:"text"`
}

type envelopeMessage struct {
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var contentDiagnostic = regexp.MustCompile(`"content"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// UnwrapEnvelope returns the assistant text of the first choice. A missing
// choice or content yields "" without error. An envelope that is not JSON is
// an error; the raw body is scanned for a content field only for the log.
func UnwrapEnvelope(raw []byte, logger *infra.Logger) (string, error) {
	log := infra.LoggerOrDiscard(logger)
	var env completionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		event := log.Warn().Err(err).Int("bytes", len(raw))
		if m := contentDiagnostic.FindSubmatch(raw); m != nil {
			event = event.Str("content_hint", truncateRunes(string(m[1]), 200))
		}
		event.Msg("completion envelope undecodable")
		return "", fmt.Errorf("%w: decode envelope: %v", ErrExtraction, err)
	}
	if len(env.Choices) == 0 {
		log.Warn().Msg("completion envelope has no choices")
		return "", nil
	}
	choice := env.Choices[0]
	if choice.Message != nil {
		if text := messageText(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	if choice.Text != nil && *choice.Text != "" {
		return *choice.Text, nil
	}
	log.Warn().Msg("completion envelope has no content")
	return "", nil
}

func messageText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if (p.Type == "" || p.Type == "text") && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "")
}

// NarrowJSON isolates the JSON object in model output: it trims whitespace,
// code fences and stray backticks, then keeps the span from the first '{'
// to the last '}' when the text is not already an object.
func NarrowJSON(text string) (string, bool) {
	trimmed := trimCodeFence(text)
	trimmed = strings.TrimSpace(strings.Trim(trimmed, "`"))
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return trimmed[start : end+1], true
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[idx:]
		} else {
			return trimmed
		}
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 && !strings.ContainsAny(trimmed[:nl], "{}") {
		trimmed = trimmed[nl+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

var topLevelAliases = map[string]string{
	"occasion":            "occasion",
	"ocasiao":             "occasion",
	"rationale":           "rationale",
	"descricaoia":         "rationale",
	"items":               "items",
	"look":                "items",
	"footwearsuggestion":  "footwearSuggestion",
	"calcado":             "footwearSuggestion",
	"accessorysuggestion": "accessorySuggestion",
	"acessorio":           "accessorySuggestion",
}

var itemAliases = map[string]string{
	"id":        "id",
	"name":      "name",
	"nome":      "name",
	"category":  "category",
	"categoria": "category",
	"imageref":  "imageRef",
	"imagem":    "imageRef",
	"url":       "imageRef",
}

var lookSchema = map[string]any{
	"type":     "object",
	"required": []any{"rationale", "items"},
	"properties": map[string]any{
		"occasion":  map[string]any{"type": "string"},
		"rationale": map[string]any{"type": "string", "pattern": `\S`},
		"items": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id"},
				"properties": map[string]any{
					"id":       map[string]any{"type": "string", "pattern": `\S`},
					"name":     map[string]any{"type": "string"},
					"category": map[string]any{"type": "string"},
					"imageRef": map[string]any{"type": "string"},
				},
			},
		},
		"footwearSuggestion":  map[string]any{"type": "string"},
		"accessorySuggestion": map[string]any{"type": "string"},
	},
}

var compiledLookSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(lookSchema))
})

// ParseLook decodes a narrowed JSON fragment into a LookRecommendation. It
// tolerates trailing commas, comments, numeric scalars and the Portuguese
// field names, then requires a rationale, at least one item and that every
// item id belongs to allowedIDs. Every failure wraps ErrExtraction.
func ParseLook(text string, allowedIDs map[string]struct{}) (*LookRecommendation, error) {
	relaxed := relaxJSON(text)
	dec := json.NewDecoder(strings.NewReader(relaxed))
	dec.UseNumber()
	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode look: %v", ErrExtraction, err)
	}

	doc := canonicalLook(decoded)
	schema, err := compiledLookSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: compile look schema: %v", ErrExtraction, err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: validate look: %v", ErrExtraction, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: look failed validation: %v", ErrExtraction, errs)
	}

	look := &LookRecommendation{
		Occasion:            stringField(doc, "occasion"),
		Rationale:           strings.TrimSpace(stringField(doc, "rationale")),
		FootwearSuggestion:  stringField(doc, "footwearSuggestion"),
		AccessorySuggestion: stringField(doc, "accessorySuggestion"),
	}
	for _, raw := range doc["items"].([]any) {
		item := raw.(map[string]any)
		look.Items = append(look.Items, LookItem{
			ID:       strings.TrimSpace(stringField(item, "id")),
			Name:     stringField(item, "name"),
			Category: stringField(item, "category"),
			ImageRef: stringField(item, "imageRef"),
		})
	}
	for _, item := range look.Items {
		if _, ok := allowedIDs[item.ID]; !ok {
			return nil, fmt.Errorf("%w: item id %q was not offered", ErrExtraction, item.ID)
		}
	}
	return look, nil
}

// canonicalLook maps known field names case-insensitively onto their English
// form and turns scalars into strings. Unknown fields are dropped.
func canonicalLook(in map[string]any) map[string]any {
	out := foldAliases(in, topLevelAliases)
	for name, value := range out {
		if name != "items" {
			out[name] = scalarString(value)
			continue
		}
		var list []any
		switch v := value.(type) {
		case []any:
			list = v
		case map[string]any:
			list = []any{v}
		default:
			continue
		}
		items := make([]any, 0, len(list))
		for _, entry := range list {
			obj, ok := entry.(map[string]any)
			if !ok {
				items = append(items, entry)
				continue
			}
			item := foldAliases(obj, itemAliases)
			for field, v := range item {
				item[field] = scalarString(v)
			}
			items = append(items, item)
		}
		out[name] = items
	}
	return out
}

// foldAliases renames keys through aliases. When several keys land on the
// same field, the English spelling beats a Portuguese alias and ties go to
// the lexically smallest key, so the result never depends on map order.
func foldAliases(in map[string]any, aliases map[string]string) map[string]any {
	keys := make([]string, 0, len(in))
	for key := range in {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(in))
	rank := make(map[string]int, len(in))
	for _, key := range keys {
		name, ok := aliases[strings.ToLower(key)]
		if !ok || in[key] == nil {
			continue
		}
		r := 1
		if strings.EqualFold(key, name) {
			r = 0
		}
		if prev, seen := rank[name]; seen && prev <= r {
			continue
		}
		rank[name] = r
		out[name] = in[key]
	}
	return out
}

func scalarString(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return v
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// relaxJSON removes comments and trailing commas that sit outside string literals.
func relaxJSON(in string) string {
	return dropTrailingCommas(stripComments(in))
}

func stripComments(in string) string {
	var b strings.Builder
	b.Grow(len(in))
	inString, escaped := false, false
	for i := 0; i < len(in); i++ {
		c := in[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '/' && i+1 < len(in) {
			switch in[i+1] {
			case '/':
				for i < len(in) && in[i] != '\n' {
					i++
				}
				if i < len(in) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(in[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += end + 3
				continue
			}
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

func dropTrailingCommas(in string) string {
	var b strings.Builder
	b.Grow(len(in))
	inString, escaped := false, false
	for i := 0; i < len(in); i++ {
		c := in[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(in) && strings.IndexByte(" \t\r\n", in[j]) >= 0 {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

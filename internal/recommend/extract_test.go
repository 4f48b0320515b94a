package recommend

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(content string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return raw
}

func TestUnwrapEnvelope(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "message content", raw: `{"choices":[{"message":{"content":"wear the blue shirt"}}]}`, want: "wear the blue shirt"},
		{name: "content parts", raw: `{"choices":[{"message":{"content":[{"type":"text","text":"wear "},{"type":"text","text":"jeans"}]}}]}`, want: "wear jeans"},
		{name: "text fallback", raw: `{"choices":[{"text":"legacy completion"}]}`, want: "legacy completion"},
		{name: "null content falls back to text", raw: `{"choices":[{"message":{"content":null},"text":"from text"}]}`, want: "from text"},
		{name: "no choices", raw: `{"choices":[]}`, want: ""},
		{name: "no content", raw: `{"choices":[{"message":{"role":"assistant"}}]}`, want: ""},
		{name: "unrelated object", raw: `{"id":"x"}`, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UnwrapEnvelope([]byte(tc.raw), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUnwrapEnvelopeUndecodable(t *testing.T) {
	got, err := UnwrapEnvelope([]byte(`{"choices":[{"message":{"content": "partial answer"}}`), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.Empty(t, got, "diagnostic scan must not produce content")
}

func TestNarrowJSONFencedEqualsBare(t *testing.T) {
	bare := `{"occasion":"Office","rationale":"Clean lines","items":[{"id":"1","name":"Blue Shirt"}]}`
	wrapped := []string{
		"```json\n" + bare + "\n```",
		"Here is your look:\n```json\n" + bare + "\n```\nEnjoy!",
		"Sure! " + bare + " Let me know if you need more.",
		"`" + bare + "`",
		"  \n" + bare + "\n ",
		"```\n" + bare + "```",
	}
	want, ok := NarrowJSON(bare)
	require.True(t, ok)
	var wantObj map[string]any
	require.NoError(t, json.Unmarshal([]byte(want), &wantObj))

	for _, text := range wrapped {
		got, ok := NarrowJSON(text)
		require.True(t, ok, "input %q", text)
		var gotObj map[string]any
		require.NoError(t, json.Unmarshal([]byte(got), &gotObj), "input %q", text)
		assert.Equal(t, wantObj, gotObj)
	}
}

func TestNarrowJSONWithoutObject(t *testing.T) {
	_, ok := NarrowJSON("I could not find a good combination.")
	assert.False(t, ok)
	_, ok = NarrowJSON("} backwards {")
	assert.False(t, ok)
}

func TestParseLookPortugueseAliases(t *testing.T) {
	text := `{"ocasiao":"Casual Friday","descricaoIA":"Relaxed but tidy","look":[{"id":1,"nome":"Blue Shirt","categoria":"Shirt","imagem":"https://trusted/x.jpg"}],"calcado":"Sneakers","acessorio":"Watch"}`
	look, err := ParseLook(text, map[string]struct{}{"1": {}})
	require.NoError(t, err)
	assert.Equal(t, "Casual Friday", look.Occasion)
	assert.Equal(t, "Relaxed but tidy", look.Rationale)
	require.Len(t, look.Items, 1)
	assert.Equal(t, LookItem{ID: "1", Name: "Blue Shirt", Category: "Shirt", ImageRef: "https://trusted/x.jpg"}, look.Items[0])
	assert.Equal(t, "Sneakers", look.FootwearSuggestion)
	assert.Equal(t, "Watch", look.AccessorySuggestion)
}

func TestParseLookPermissive(t *testing.T) {
	text := `{
		// chosen by the model
		"OCCASION": "Office",
		"Rationale": "Sharp, with a \"pop\" of colour, // not a comment",
		"Items": [
			{"ID": "7", "Name": "Blazer", "imageRef": "https://res.cloudinary.com/z.jpg",},
		],
		/* trailing */
		"footwearsuggestion": "Loafers",
	}`
	look, err := ParseLook(text, map[string]struct{}{"7": {}})
	require.NoError(t, err)
	assert.Equal(t, "Office", look.Occasion)
	assert.Equal(t, `Sharp, with a "pop" of colour, // not a comment`, look.Rationale)
	assert.Equal(t, "Blazer", look.Items[0].Name)
	assert.Equal(t, "Loafers", look.FootwearSuggestion)
}

func TestParseLookRejects(t *testing.T) {
	allowed := map[string]struct{}{"1": {}}
	cases := []struct {
		name string
		text string
	}{
		{name: "empty items", text: `{"occasion":"x","rationale":"because","items":[]}`},
		{name: "missing items", text: `{"occasion":"x","rationale":"because"}`},
		{name: "blank rationale", text: `{"rationale":"   ","items":[{"id":"1"}]}`},
		{name: "missing rationale", text: `{"items":[{"id":"1"}]}`},
		{name: "item without id", text: `{"rationale":"ok","items":[{"name":"Shirt"}]}`},
		{name: "invented id", text: `{"rationale":"ok","items":[{"id":"99","name":"Ghost"}]}`},
		{name: "items not objects", text: `{"rationale":"ok","items":["1"]}`},
		{name: "truncated", text: `{"rationale":"ok","items":[{"id":"1"`},
		{name: "array root", text: `[{"id":"1"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			look, err := ParseLook(tc.text, allowed)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrExtraction))
			assert.Nil(t, look)
		})
	}
}

func TestRelaxJSON(t *testing.T) {
	assert.Equal(t, `{"a":[1,2]}`, relaxJSON(`{"a":[1,2,]}`))
	assert.Equal(t, `{"a":"x,}"}`, relaxJSON(`{"a":"x,}",}`))
	assert.Equal(t, "{\n\"a\":1}", relaxJSON("{// note\n\"a\":1}"))
	assert.Equal(t, `{"a":"/* kept */"}`, relaxJSON(`{"a":"/* kept */"/* dropped */}`))
}

func TestParseLookEnglishKeyBeatsAlias(t *testing.T) {
	allowed := map[string]struct{}{"1": {}}
	doc := `{"rationale":"r","descricaoIA":"ignored","items":[{"id":"1","name":"Shirt","nome":"Camisa"}],` +
		`"look":[{"id":"zzz"}],"ocasiao":"Festa","occasion":"Party"}`

	for i := 0; i < 100; i++ {
		look, err := ParseLook(doc, allowed)
		require.NoError(t, err, "run %d", i)
		require.Len(t, look.Items, 1)
		assert.Equal(t, "Shirt", look.Items[0].Name)
		assert.Equal(t, "Party", look.Occasion)
		assert.Equal(t, "r", look.Rationale)
	}
}

func TestFoldAliasesTieBreak(t *testing.T) {
	in := map[string]any{"url": "b", "imagem": "a", "Items": []any{}, "items": []any{"x"}}
	for i := 0; i < 50; i++ {
		item := foldAliases(in, itemAliases)
		assert.Equal(t, "a", item["imageRef"])

		top := foldAliases(in, topLevelAliases)
		assert.Equal(t, []any{}, top["items"], "exact-case ties fall to the smallest key")
	}
}

package recommend

import (
	"fmt"
	"strings"

	"nexlook/internal/providers/llm"
)

const (
	LocaleEnglish    = "en"
	LocalePortuguese = "pt"
)

type promptTexts struct {
	freeTextSystem   string
	structuredSystem string
	caption          string
}

var promptCatalog = map[string]promptTexts{
	LocaleEnglish: {
		freeTextSystem: `You are an objective fashion consultant.
Look at the wardrobe photos and answer the request in at most 5 lines.
Name the pieces you recommend, then suggest footwear and one accessory.`,
		structuredSystem: `You are a fashion consultant that answers with exactly one JSON object and nothing else.
Use this shape and these field names:
{
  "occasion": "<the occasion>",
  "rationale": "<a short explanation>",
  "items": [
    { "id": "<id received>", "name": "<name received>", "category": "<category received>", "imageRef": "<url received>" }
  ],
  "footwearSuggestion": "<footwear suggestion>",
  "accessorySuggestion": "<accessory suggestion>"
}
Rules:
- Use only the id, name, category and url values supplied by the user. Never invent values or placeholders.
- Do not wrap the JSON in markdown fences.
- Do not add commentary before or after the JSON.`,
		caption: "Piece: %s, Category: %s",
	},
	LocalePortuguese: {
		freeTextSystem: `Você é um consultor de moda objetivo.
Observe as fotos do guarda-roupa e responda ao pedido em no máximo 5 linhas.
Cite as peças recomendadas e sugira um calçado e um acessório.`,
		structuredSystem: `Você é um consultor de moda que responde com exatamente um objeto JSON e nada mais.
Use este formato e estes nomes de campo:
{
  "occasion": "<a ocasião>",
  "rationale": "<uma breve explicação>",
  "items": [
    { "id": "<id recebido>", "name": "<nome recebido>", "category": "<categoria recebida>", "imageRef": "<url recebida>" }
  ],
  "footwearSuggestion": "<sugestão de calçado>",
  "accessorySuggestion": "<sugestão de acessório>"
}
Regras:
- Use apenas os valores de id, nome, categoria e url fornecidos pelo usuário. Nunca invente valores nem placeholders.
- Não envolva o JSON em blocos de código markdown.
- Não inclua comentários antes ou depois do JSON.`,
		caption: "Peça: %s, Categoria: %s",
	},
}

// Builder assembles the messages for both recommendation contracts. It does no I/O.
type Builder struct {
	defaultLocale string
}

func NewBuilder(defaultLocale string) *Builder {
	return &Builder{defaultLocale: resolveLocale(defaultLocale, LocaleEnglish)}
}

// FreeText builds a persona instruction and a user message with one caption
// and one image block per item.
func (b *Builder) FreeText(prompt string, items []ClothingItem, locale string) []llm.Message {
	texts := promptCatalog[resolveLocale(locale, b.defaultLocale)]
	content := []llm.ContentBlock{llm.Text(prompt)}
	for _, item := range items {
		content = append(content,
			llm.Text(fmt.Sprintf(texts.caption, item.Name, item.Category)),
			llm.ImageURL(item.ImageRef),
		)
	}
	return []llm.Message{
		llm.SystemMessage(texts.freeTextSystem),
		{Role: llm.RoleUser, Content: content},
	}
}

// Structured builds the strict-JSON instruction and a user message listing
// each item as "name, category, id, url" followed by its image block.
func (b *Builder) Structured(prompt string, items []ClothingItem, locale string) []llm.Message {
	texts := promptCatalog[resolveLocale(locale, b.defaultLocale)]
	content := []llm.ContentBlock{llm.Text(prompt)}
	for _, item := range items {
		content = append(content,
			llm.Text(strings.Join([]string{item.Name, item.Category, item.ID, item.ImageRef}, ", ")),
			llm.ImageURL(item.ImageRef),
		)
	}
	return []llm.Message{
		llm.SystemMessage(texts.structuredSystem),
		{Role: llm.RoleUser, Content: content},
	}
}

// resolveLocale reduces tags like "pt-BR" to a supported base language.
func resolveLocale(locale, fallback string) string {
	base := strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(base, "-_"); idx > 0 {
		base = base[:idx]
	}
	if _, ok := promptCatalog[base]; ok {
		return base
	}
	return fallback
}

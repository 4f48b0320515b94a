package llm

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
)

// CompletionOptions are the per-call sampling parameters.
type CompletionOptions struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

func Penalty(v float64) *float64 { return &v }

func buildParams(messages []Message, opts CompletionOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(opts.Model),
		Temperature: openai.Float(opts.Temperature),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*opts.PresencePenalty)
	}
	if opts.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*opts.FrequencyPenalty)
	}
	for _, msg := range messages {
		params.Messages = append(params.Messages, messageParam(msg))
	}
	return params
}

func messageParam(msg Message) openai.ChatCompletionMessageParamUnion {
	if msg.Role == RoleSystem {
		return openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(msg.PlainText()),
				},
			},
		}
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Kind {
		case BlockImageURL:
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfImageURL: &openai.ChatCompletionContentPartImageParam{
					ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: block.URL},
				},
			})
		default:
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfText: &openai.ChatCompletionContentPartTextParam{Text: block.Text},
			})
		}
	}
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}
}

func encodeRequest(messages []Message, opts CompletionOptions) ([]byte, error) {
	raw, err := json.Marshal(buildParams(messages, opts))
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}
	return raw, nil
}

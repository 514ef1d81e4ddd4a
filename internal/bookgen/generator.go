package bookgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kibook/order-engine/internal/orders"
)

const generateMaxRetries = 3

var errNoContent = errors.New("model returned no content")

// OpenAIGenerator writes the personalized story through the OpenAI chat API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIGenerator{client: openai.NewClient(apiKey), model: model}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, snap orders.PersonalizedSnapshot) (string, error) {
	prompt := buildPrompt(snap)

	var lastErr error = errNoContent
	for attempt := 0; attempt < generateMaxRetries; attempt++ {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a children's book author. Write warm, age-appropriate stories in the requested languages.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.7,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = errNoContent
	}
	return "", lastErr
}

func buildPrompt(snap orders.PersonalizedSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a personalized children's story for %s, age %d.\n", snap.HeroName, snap.HeroAge)
	if snap.Theme != "" {
		fmt.Fprintf(&b, "Theme: %s.\n", snap.Theme)
	}
	if snap.Location != "" {
		fmt.Fprintf(&b, "Setting: %s.\n", snap.Location)
	}
	if len(snap.Characters) > 0 {
		b.WriteString("Supporting characters:\n")
		for _, c := range snap.Characters {
			if c.AnimalType != "" {
				fmt.Fprintf(&b, "- %s, the hero's %s (a %s)\n", c.Name, c.Relationship, c.AnimalType)
			} else {
				fmt.Fprintf(&b, "- %s, the hero's %s\n", c.Name, c.Relationship)
			}
		}
	}
	if len(snap.ValueIDs) > 0 {
		fmt.Fprintf(&b, "Weave in these values: %s.\n", strings.Join(snap.ValueIDs, ", "))
	}
	if len(snap.Languages) > 0 {
		fmt.Fprintf(&b, "Write the story in: %s.\n", strings.Join(snap.Languages, ", "))
	}
	if snap.Message != "" {
		fmt.Fprintf(&b, "End with a dedication inspired by: %q.\n", snap.Message)
	}
	return b.String()
}

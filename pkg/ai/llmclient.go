package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

// toolTimeout bounds each side-effect tool call inside a generation run. A
// tool timeout is recoverable and fed back into the generation context.
const toolTimeout = 30 * time.Second

// Client talks to an OpenAI-compatible endpoint. It implements the primary
// generation service and both auxiliary derivation passes.
type Client struct {
	client *openai.Client
	model  string

	search        *SearchClient
	knowledgeBase *KnowledgeBaseClient
	sideChannel   *chat.SideChannelCache
}

func NewClient(url, model string) *Client {
	options := []option.RequestOption{option.WithBaseURL(url)}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Info("OPENAI_API_KEY environment variable is not set, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &Client{client: &client, model: model}
}

// EnableWebSearch wires the web-search tool into generation runs that ask
// for it. Retrieved citations are handed off through the side-channel cache.
func (c *Client) EnableWebSearch(search *SearchClient, sideChannel *chat.SideChannelCache) {
	c.search = search
	c.sideChannel = sideChannel
}

// EnableKnowledgeBase wires the knowledge-base tool into every generation
// run. Matched documents are handed off through the side-channel cache.
func (c *Client) EnableKnowledgeBase(kb *KnowledgeBaseClient, sideChannel *chat.SideChannelCache) {
	c.knowledgeBase = kb
	c.sideChannel = sideChannel
}

// Chat sends a single non-streaming completion and returns its content.
func (c *Client) Chat(ctx context.Context, instructions, data string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(data),
		},
		Model: c.model,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("client didn't return any content choices")
	}

	return resp.Choices[0].Message.Content, nil
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

const (
	webSearchToolName     = "web_search"
	knowledgeBaseToolName = "knowledge_base_search"
)

// maxToolRounds bounds how many tool-call rounds a single generation run may
// take before it is considered stuck.
const maxToolRounds = 3

// Generate starts a streaming generation run. The run pushes cumulative text
// states and finishes with the full turn list for the exchange, including
// tool-call and tool-return turns.
func (c *Client) Generate(ctx context.Context, req chat.GenerationRequest) *chat.Generation {
	generation := chat.NewGeneration()
	go c.run(ctx, req, generation)
	return generation
}

func (c *Client) run(ctx context.Context, req chat.GenerationRequest, generation *chat.Generation) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(chatSystemPrompt),
	}
	for _, t := range req.History {
		for _, p := range t.Parts {
			switch p.Kind {
			case chat.PartKindUserPrompt:
				messages = append(messages, openai.UserMessage(p.Text))
			case chat.PartKindText:
				messages = append(messages, openai.AssistantMessage(p.Text))
			case chat.PartKindToolCall, chat.PartKindToolReturn, chat.PartKindInstruction:
				// tool traffic and instructions from past exchanges are not
				// replayed as context
			}
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
	}
	// The knowledge base is offered on every run; web search only when the
	// request asks for it.
	if c.knowledgeBase != nil {
		params.Tools = append(params.Tools, knowledgeBaseTool())
	}
	if req.EnableWebSearch && c.search != nil {
		params.Tools = append(params.Tools, webSearchTool())
	}

	var turns []chat.Turn
	var full strings.Builder

	for round := 0; round <= maxToolRounds; round++ {
		message, err := c.streamRound(ctx, &params, generation, &full)
		if err != nil {
			generation.Finish(nil, err)
			return
		}

		if len(message.ToolCalls) == 0 {
			turns = append(turns, chat.AssistantTurn(full.String(), time.Now().UTC()))
			generation.Finish(turns, nil)
			return
		}

		params.Messages = append(params.Messages, message.ToParam())
		for _, call := range message.ToolCalls {
			result, toolTurns := c.invokeTool(ctx, call)
			turns = append(turns, toolTurns...)
			params.Messages = append(params.Messages, openai.ToolMessage(result, call.ID))
		}
	}

	generation.Finish(nil, errors.Errorf("generation exceeded %d tool rounds", maxToolRounds))
}

// streamRound runs one streaming completion, pushing the cumulative text
// after every content delta, and returns the round's final message.
func (c *Client) streamRound(ctx context.Context, params *openai.ChatCompletionNewParams, generation *chat.Generation, full *strings.Builder) (openai.ChatCompletionMessage, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, *params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			full.WriteString(chunk.Choices[0].Delta.Content)
			generation.Push(ctx, full.String())
		}
	}
	if err := stream.Err(); err != nil {
		return openai.ChatCompletionMessage{}, errors.Wrap(err, "streaming chat completion")
	}
	if len(acc.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("model returned no choices")
	}
	return acc.Choices[0].Message, nil
}

// invokeTool executes one tool call with a bounded timeout. Failures are
// recoverable: the error payload is fed back into the generation context
// instead of aborting the run.
func (c *Client) invokeTool(ctx context.Context, call openai.ChatCompletionMessageToolCall) (string, []chat.Turn) {
	logger := log.WithFields(log.Fields{"tool": call.Function.Name, "toolCallID": call.ID})
	turns := []chat.Turn{
		chat.ToolCallTurn(call.Function.Name, call.ID, json.RawMessage(call.Function.Arguments), time.Now().UTC()),
	}

	payload := c.executeTool(ctx, logger, call)
	turns = append(turns, chat.ToolReturnTurn(call.Function.Name, call.ID, payload, time.Now().UTC()))
	return string(payload), turns
}

func (c *Client) executeTool(ctx context.Context, logger *log.Entry, call openai.ChatCompletionMessageToolCall) json.RawMessage {
	switch call.Function.Name {
	case webSearchToolName:
		return c.executeWebSearch(ctx, logger, call)
	case knowledgeBaseToolName:
		return c.executeKnowledgeBase(ctx, logger, call)
	default:
		logger.Warn("model requested an unknown tool")
		return toolErrorPayload("unknown_tool", "no such tool is available")
	}
}

func (c *Client) executeWebSearch(ctx context.Context, logger *log.Entry, call openai.ChatCompletionMessageToolCall) json.RawMessage {
	query := gjson.Get(call.Function.Arguments, "query").String()
	if query == "" {
		return toolErrorPayload("invalid_arguments", "a query is required")
	}

	toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	result, err := c.search.Search(toolCtx, query)
	if err != nil {
		logger.WithError(err).Warn("web search failed")
		return toolErrorPayload("search_failed", err.Error())
	}

	c.sideChannel.StoreSources(ctx, chat.CorrelationIDFromContext(ctx), result.Sources)

	payload, err := json.Marshal(map[string]string{"message": result.Message})
	if err != nil {
		return toolErrorPayload("search_failed", err.Error())
	}
	return payload
}

func (c *Client) executeKnowledgeBase(ctx context.Context, logger *log.Entry, call openai.ChatCompletionMessageToolCall) json.RawMessage {
	query := gjson.Get(call.Function.Arguments, "query").String()
	if query == "" {
		return toolErrorPayload("invalid_arguments", "a query is required")
	}

	domain := strings.ToLower(gjson.Get(call.Function.Arguments, "domain").String())
	documentIDs, ok := domainDocuments[domain]
	if !ok {
		return toolErrorPayload("domain_not_found",
			fmt.Sprintf("the domain %q is not supported, available domains: %s", domain, strings.Join(supportedDomains(), ", ")))
	}

	toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	raw, err := c.knowledgeBase.Query(toolCtx, query, documentIDs)
	if err != nil {
		logger.WithError(err).Warn("knowledge base query failed")
		return toolErrorPayload("query_failed", err.Error())
	}

	if results := extractKnowledgeResults(raw); results != nil {
		handoff, err := json.Marshal(map[string]interface{}{
			"filter_params": map[string]string{
				"filter_type": knowledgeBaseToolName,
				"query":       query,
				"domain":      domain,
			},
			"knowledge_results": results,
		})
		if err == nil {
			c.sideChannel.StoreKnowledgeResults(ctx, chat.CorrelationIDFromContext(ctx), handoff)
		}
	}

	return raw
}

func toolErrorPayload(code, message string) json.RawMessage {
	payload, err := json.Marshal(map[string]string{"error": code, "message": message})
	if err != nil {
		return json.RawMessage(`{"error":"internal"}`)
	}
	return payload
}

func knowledgeBaseTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        knowledgeBaseToolName,
			Description: openai.String("Query the curated knowledge base for information about alternative medicine within a specific domain."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query to find information",
					},
					"domain": map[string]interface{}{
						"type":        "string",
						"description": "The domain to search within, for example \"ayurveda\"",
					},
				},
				"required": []string{"query", "domain"},
			},
		},
	}
}

func webSearchTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        webSearchToolName,
			Description: openai.String("Search the web for relevant, up-to-date information about alternative medicine and health topics."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query to find relevant information",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

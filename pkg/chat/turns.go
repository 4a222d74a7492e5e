package chat

import (
	"encoding/json"
	"time"
)

// PartKind discriminates the turn part union. Every part carries a kind tag
// in its serialized form; consumers switch exhaustively on it.
type PartKind string

const (
	PartKindUserPrompt  PartKind = "user-prompt"
	PartKindText        PartKind = "text"
	PartKindToolCall    PartKind = "tool-call"
	PartKindToolReturn  PartKind = "tool-return"
	PartKindInstruction PartKind = "instruction"
)

// Part is one element of a turn. Which fields are meaningful depends on
// Kind: user-prompt, text and instruction parts carry Text; tool-call parts
// carry ToolName, ToolCallID and Args; tool-return parts carry ToolName,
// ToolCallID and Payload.
type Part struct {
	Kind       PartKind        `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type Role string

const (
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleToolCall    Role = "tool-invocation"
	RoleToolReturn  Role = "tool-result"
	RoleInstruction Role = "instruction"
)

// Turn is one transcript turn: a role and its ordered parts. The first part
// determines how the turn projects onto the wire (see ProjectTurn).
type Turn struct {
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Parts     []Part    `json:"parts"`
}

func UserTurn(prompt string, ts time.Time) Turn {
	return Turn{
		Role:      RoleUser,
		Timestamp: ts,
		Parts:     []Part{{Kind: PartKindUserPrompt, Text: prompt}},
	}
}

func AssistantTurn(text string, ts time.Time) Turn {
	return Turn{
		Role:      RoleAssistant,
		Timestamp: ts,
		Parts:     []Part{{Kind: PartKindText, Text: text}},
	}
}

func ToolCallTurn(name, callID string, args json.RawMessage, ts time.Time) Turn {
	return Turn{
		Role:      RoleToolCall,
		Timestamp: ts,
		Parts:     []Part{{Kind: PartKindToolCall, ToolName: name, ToolCallID: callID, Args: args}},
	}
}

func ToolReturnTurn(name, callID string, payload json.RawMessage, ts time.Time) Turn {
	return Turn{
		Role:      RoleToolReturn,
		Timestamp: ts,
		Parts:     []Part{{Kind: PartKindToolReturn, ToolName: name, ToolCallID: callID, Payload: payload}},
	}
}

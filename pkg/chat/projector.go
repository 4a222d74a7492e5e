package chat

// ProjectTurn maps a stored or live turn to its wire representation.
// Tool-call, tool-return and instruction parts are stripped; the turn's
// projected role comes from the first surviving part. A turn left with no
// parts contributes nothing and is dropped (ok=false). Pure function, no
// reordering.
func ProjectTurn(t Turn, conversationID string) (WireMessage, bool) {
	var visible []Part
	for _, p := range t.Parts {
		switch p.Kind {
		case PartKindUserPrompt, PartKindText:
			visible = append(visible, p)
		case PartKindToolCall, PartKindToolReturn, PartKindInstruction:
			// invisible to clients
		}
	}
	if len(visible) == 0 {
		return WireMessage{}, false
	}

	first := visible[0]
	role := WireRoleModel
	if first.Kind == PartKindUserPrompt {
		role = WireRoleUser
	}

	return WireMessage{
		Role:           role,
		ConversationID: conversationID,
		Timestamp:      wireTimestamp(t.Timestamp),
		Content:        first.Text,
	}, true
}

// ProjectTurns projects a turn sequence in order, dropping turns with no
// visible parts.
func ProjectTurns(turns []Turn, conversationID string) []WireMessage {
	out := make([]WireMessage, 0, len(turns))
	for _, t := range turns {
		if m, ok := ProjectTurn(t, conversationID); ok {
			out = append(out, m)
		}
	}
	return out
}

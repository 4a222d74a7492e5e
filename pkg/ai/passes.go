package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

var languageNames = map[string]string{
	"hi": "Hindi",
	"ta": "Tamil",
	"te": "Telugu",
	"kn": "Kannada",
}

// DeriveMetadata runs the metadata pass over a finalized transcript and
// returns follow-up questions plus intent signals.
func (c *Client) DeriveMetadata(ctx context.Context, transcript string, opts chat.MetadataOptions) (chat.Metadata, error) {
	instructions := metadataPrompt + metadataInstructions(opts)

	out, err := c.Chat(ctx, instructions, transcript)
	if err != nil {
		return chat.Metadata{}, errors.Wrap(err, "metadata derivation")
	}
	return parseMetadataResponse(out)
}

// DeriveTitle runs the title pass over a finalized transcript.
func (c *Client) DeriveTitle(ctx context.Context, transcript string) (string, error) {
	out, err := c.Chat(ctx, titlePrompt, transcript)
	if err != nil {
		return "", errors.Wrap(err, "title derivation")
	}
	return parseTitleResponse(out)
}

func metadataInstructions(opts chat.MetadataOptions) string {
	var extra strings.Builder

	if name, ok := languageNames[strings.ToLower(opts.Locale)]; ok {
		extra.WriteString("\n\nIMPORTANT LANGUAGE INSTRUCTION:\n")
		extra.WriteString("- Generate follow-up questions in " + name + ".\n")
		extra.WriteString("- The phrase \"find the appointment booking link below\" may appear in " + name + ", so look for equivalent phrases when checking booking intent.")
	}

	if opts.WebSearchUsed {
		extra.WriteString("\n\nIMPORTANT FOLLOW-UP INSTRUCTION:\n")
		extra.WriteString("- The user requested web search; include at least one follow-up question that explores more up-to-date information.")
	}

	return extra.String()
}

func parseMetadataResponse(raw string) (chat.Metadata, error) {
	doc := extractJSON(raw)
	if !gjson.Valid(doc) {
		return chat.Metadata{}, errors.New("metadata pass returned invalid JSON")
	}

	metadata := chat.Metadata{FollowUpQuestions: []string{}}
	for _, q := range gjson.Get(doc, "questions").Array() {
		if len(metadata.FollowUpQuestions) == chat.MaxFollowUpQuestions {
			break
		}
		if s := strings.TrimSpace(q.String()); s != "" {
			metadata.FollowUpQuestions = append(metadata.FollowUpQuestions, s)
		}
	}
	metadata.ProvideAppointmentBooking = gjson.Get(doc, "provide_appointment_booking").Bool()
	metadata.RecommendProduct = gjson.Get(doc, "recommend_product").Bool()
	return metadata, nil
}

func parseTitleResponse(raw string) (string, error) {
	doc := extractJSON(raw)
	if !gjson.Valid(doc) {
		return "", errors.New("title pass returned invalid JSON")
	}

	title := strings.TrimSpace(gjson.Get(doc, "title").String())
	if title == "" {
		return "", errors.New("title pass returned no title")
	}
	return title, nil
}

// extractJSON strips the markdown code fences models like to wrap JSON in.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

package flags

import (
	"github.com/spf13/pflag"

	"github.com/sandeepstele/guruheal-agent/pkg/ai"
)

// AIFlags contains flags for reaching the OpenAI-compatible model endpoint.
type AIFlags struct {
	Endpoint string
	Model    string
}

func NewAIFlags() *AIFlags {
	return &AIFlags{}
}

func (f *AIFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Endpoint, "ai-endpoint", "", "URL for an OpenAI-compatible endpoint. Set OPENAI_API_KEY to specify an API key.")
	fs.StringVar(&f.Model, "ai-model", "gpt-4o-mini", "The model used for chat generation and metadata passes")
}

func (f *AIFlags) GetLLMClient() *ai.Client {
	return ai.NewClient(f.Endpoint, f.Model)
}

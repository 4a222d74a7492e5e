package flags

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/sandeepstele/guruheal-agent/pkg/ai"
)

// KnowledgeBaseFlags configures the curated knowledge base service the
// assistant can query while answering. Optional; when no URL is given the
// knowledge-base tool is not offered to the model.
type KnowledgeBaseFlags struct {
	URL string
}

func NewKnowledgeBaseFlags() *KnowledgeBaseFlags {
	return &KnowledgeBaseFlags{}
}

func (f *KnowledgeBaseFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.URL,
		"knowledge-base-url",
		os.Getenv("KNOWLEDGE_BASE_URL"),
		"Query URL for the knowledge base service")
}

func (f *KnowledgeBaseFlags) GetKnowledgeBaseClient() *ai.KnowledgeBaseClient {
	if f.URL == "" {
		return nil
	}

	return ai.NewKnowledgeBaseClient(f.URL)
}

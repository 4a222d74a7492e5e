package flags

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/sandeepstele/guruheal-agent/pkg/ai"
)

// SearchFlags configures the external web search service the assistant can
// consult while answering. Search is optional; when no URL is given the
// web search tool is not offered to the model.
type SearchFlags struct {
	URL string
}

func NewSearchFlags() *SearchFlags {
	return &SearchFlags{}
}

func (f *SearchFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.URL,
		"search-url",
		os.Getenv("SEARCH_SERVICE_URL"),
		"Base URL for the web search service")
}

func (f *SearchFlags) GetSearchClient() *ai.SearchClient {
	if f.URL == "" {
		return nil
	}

	return ai.NewSearchClient(f.URL)
}

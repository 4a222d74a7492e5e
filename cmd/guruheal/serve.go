package main

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
	"github.com/sandeepstele/guruheal-agent/pkg/flags"
	"github.com/sandeepstele/guruheal-agent/pkg/guruhealserver"
)

type ServerFlags struct {
	AIFlags            *flags.AIFlags
	CacheFlags         *flags.CacheFlags
	DBFlags            *flags.PostgresFlags
	KnowledgeBaseFlags *flags.KnowledgeBaseFlags
	SearchFlags        *flags.SearchFlags

	ListenAddr  string
	MetricsAddr string
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{
		AIFlags:            flags.NewAIFlags(),
		CacheFlags:         flags.NewCacheFlags(),
		DBFlags:            flags.NewPostgresDatabaseFlags(),
		KnowledgeBaseFlags: flags.NewKnowledgeBaseFlags(),
		SearchFlags:        flags.NewSearchFlags(),
		ListenAddr:         ":8080",
		MetricsAddr:        ":2112",
	}
}

func (f *ServerFlags) BindFlags(flagSet *pflag.FlagSet) {
	f.AIFlags.BindFlags(flagSet)
	f.CacheFlags.BindFlags(flagSet)
	f.DBFlags.BindFlags(flagSet)
	f.KnowledgeBaseFlags.BindFlags(flagSet)
	f.SearchFlags.BindFlags(flagSet)

	flagSet.StringVar(&f.ListenAddr, "listen", f.ListenAddr, "The address to serve the chat API on (default :8080)")
	flagSet.StringVar(&f.MetricsAddr, "listen-metrics", f.MetricsAddr, "The address to serve prometheus metrics on (default :2112)")
}

func NewServeCommand() *cobra.Command {
	f := NewServerFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the guruheal chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc, err := f.DBFlags.GetDBClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get DB client")
			}

			if err := dbc.UpdateSchema(); err != nil {
				return errors.WithMessage(err, "couldn't migrate database schema")
			}

			cacheClient, err := f.CacheFlags.GetCacheClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get cache client")
			}
			sideChannel := chat.NewSideChannelCache(cacheClient)

			llmClient := f.AIFlags.GetLLMClient()
			if searchClient := f.SearchFlags.GetSearchClient(); searchClient != nil {
				llmClient.EnableWebSearch(searchClient, sideChannel)
			} else {
				log.Info("no search service configured, web search tool disabled")
			}
			if kbClient := f.KnowledgeBaseFlags.GetKnowledgeBaseClient(); kbClient != nil {
				llmClient.EnableKnowledgeBase(kbClient, sideChannel)
			} else {
				log.Info("no knowledge base configured, knowledge base tool disabled")
			}

			store := chat.NewStore(dbc)
			orchestrator := chat.NewOrchestrator(store, llmClient, llmClient, sideChannel)

			server := guruhealserver.NewServer(f.ListenAddr, dbc, store, orchestrator)

			if f.MetricsAddr != "" {
				// Serve our metrics endpoint for prometheus to scrape
				go func() {
					http.Handle("/metrics", promhttp.Handler())
					err := http.ListenAndServe(f.MetricsAddr, nil) //nolint
					if err != nil {
						panic(err)
					}
				}()
			}

			server.Serve()
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	return cmd
}

package admin

import (
	"log"

	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/source"
	"github.com/spf13/cobra"
)

func addSeedFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("url", nil, "Document page to ingest; label=URL sets the source id (repeatable)")
	cmd.Flags().StringArray("dir", nil, "Directory of .txt, .md and .pdf files to ingest (repeatable)")
}

// seedSources turns --url and --dir flags into document sources.
func seedSources(cmd *cobra.Command, stack *Stack) []service.DocumentSource {
	urls, _ := cmd.Flags().GetStringArray("url")
	dirs, _ := cmd.Flags().GetStringArray("dir")

	var sources []service.DocumentSource
	if len(urls) > 0 {
		pages := make([]source.Page, 0, len(urls))
		for _, u := range urls {
			pages = append(pages, parsePageArg(u))
		}
		sources = append(sources, stack.PageSource(pages...))
	}
	for _, dir := range dirs {
		sources = append(sources, source.NewDirectorySource(dir, nil))
	}
	return sources
}

// parsePageArg splits "NDA-1=https://..." into label and URL. A bare URL
// keeps an empty label.
func parsePageArg(arg string) source.Page {
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '=':
			return source.Page{Label: arg[:i], URL: arg[i+1:]}
		case ':', '/':
			return source.Page{URL: arg}
		}
	}
	return source.Page{URL: arg}
}

func logReport(what string, report *service.IngestReport) {
	log.Printf("%s: %d documents, %d chunks added, %d skipped, %d failed",
		what, report.Documents, report.Chunks, report.Skipped, len(report.Failures))
	for _, f := range report.Failures {
		log.Printf("%s: %s: %v", what, f.SourceID, f.Err)
	}
}

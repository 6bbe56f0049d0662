package source

import (
	"fmt"
	"strings"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	defaultWebEndpoint = "https://github.com"
	shortShaLength     = 8
)

// Changelog renders commits as a markdown table of timestamp, linked short sha, subject and author.
// The table renderer escapes '|' in cell text.
func Changelog(commits []*model.Commit, webEndpoint, repoFullName string) string {
	if webEndpoint == "" {
		webEndpoint = defaultWebEndpoint
	}
	webEndpoint = strings.TrimSuffix(webEndpoint, "/")

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Timestamp", "SHA", "Message", "Author"})
	for _, c := range commits {
		short := c.Sha
		if len(short) > shortShaLength {
			short = short[:shortShaLength]
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		link := fmt.Sprintf("[`%s`](%s/%s/commit/%s)", short, webEndpoint, repoFullName, c.Sha)

		tw.AppendRow(table.Row{c.Date.UTC().Format("2006-01-02T15:04Z"), link, subject, c.Author})
	}
	return tw.RenderMarkdown()
}

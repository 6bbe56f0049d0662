package source_test

import (
	"strings"
	"testing"
	"time"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/infra/source"
	"github.com/m-mizutani/gt"
)

func TestChangelog(t *testing.T) {
	commits := []*model.Commit{
		{
			Sha:     "1111111111111111111111111111111111111111",
			Author:  "alice",
			Date:    time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
			Message: "fix parser\n\ndetails",
		},
		{
			Sha:     "2222222222222222222222222222222222222222",
			Author:  "bob",
			Date:    time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			Message: "update docs",
		},
	}

	out := source.Changelog(commits, "https://github.example.com/", "acme/widget")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	gt.Number(t, len(lines)).Equal(4)
	gt.String(t, lines[0]).Contains("Timestamp")
	gt.String(t, lines[0]).Contains("Author")
	gt.String(t, out).Contains("[`11111111`](https://github.example.com/acme/widget/commit/1111111111111111111111111111111111111111)")
	gt.String(t, out).Contains("2024-03-01T12:30Z")
	gt.String(t, out).Contains("fix parser")
	gt.Value(t, strings.Contains(out, "details")).Equal(false)
	gt.String(t, out).Contains("bob")
}

func TestChangelogEscapesPipes(t *testing.T) {
	commits := []*model.Commit{
		{
			Sha:     "3333333333333333333333333333333333333333",
			Author:  "carol",
			Date:    time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC),
			Message: "a | b",
		},
	}

	out := source.Changelog(commits, "", "acme/widget")
	gt.String(t, out).Contains(`a \| b`)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	gt.Number(t, len(lines)).Equal(3)
	row := lines[2]
	separators := strings.Count(row, "|") - strings.Count(row, `\|`)
	gt.Number(t, separators).Equal(5)
}

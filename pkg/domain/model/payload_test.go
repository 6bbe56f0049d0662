package model_test

import (
	"errors"
	"testing"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func validCommit() *model.CommitInfo {
	return &model.CommitInfo{
		Sha: "abc123",
		Ref: "master",
		Repo: &model.RepoInfo{
			CloneURL: "https://h/x.git",
			Name:     "x",
			FullName: "o/x",
		},
	}
}

func TestCommitInfo_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		gt.NoError(t, validCommit().Validate())
	})

	testCases := map[string]struct {
		mutate func(c *model.CommitInfo)
		key    string
	}{
		"missing sha":       {func(c *model.CommitInfo) { c.Sha = "" }, "sha"},
		"missing ref":       {func(c *model.CommitInfo) { c.Ref = "" }, "ref"},
		"missing repo":      {func(c *model.CommitInfo) { c.Repo = nil }, "repo"},
		"missing clone_url": {func(c *model.CommitInfo) { c.Repo.CloneURL = "" }, "repo.clone_url"},
		"missing name":      {func(c *model.CommitInfo) { c.Repo.Name = "" }, "repo.name"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			c := validCommit()
			tc.mutate(c)
			err := c.Validate()
			gt.Error(t, err)
			gt.True(t, errors.Is(err, types.ErrSourcePayloadFormat))
			gt.String(t, err.Error()).Contains("'" + tc.key + "'")
		})
	}

	t.Run("nil commit", func(t *testing.T) {
		var c *model.CommitInfo
		gt.True(t, errors.Is(c.Validate(), types.ErrSourcePayloadFormat))
	})

	t.Run("full_name is optional", func(t *testing.T) {
		c := validCommit()
		c.Repo.FullName = ""
		gt.NoError(t, c.Validate())
	})
}

func TestRepoInfo_Owner(t *testing.T) {
	repo := &model.RepoInfo{FullName: "AnalogJ/capsulecd"}
	gt.Value(t, repo.Owner()).Equal("AnalogJ")
}

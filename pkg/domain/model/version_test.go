package model_test

import (
	"testing"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestBumpVersion(t *testing.T) {
	testCases := []struct {
		current string
		bump    types.BumpType
		expect  string
	}{
		{"1.0.2", types.BumpPatch, "1.0.3"},
		{"1.0.2", types.BumpMinor, "1.1.0"},
		{"1.0.2", types.BumpMajor, "2.0.0"},
		{"1.0.2", "", "1.0.3"},
		{"v0.9.9", types.BumpMinor, "0.10.0"},
		{"0.0.0", types.BumpPatch, "0.0.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.current+"/"+string(tc.bump), func(t *testing.T) {
			next, err := model.BumpVersion(tc.current, tc.bump)
			gt.NoError(t, err)
			gt.Value(t, next).Equal(tc.expect)
		})
	}

	t.Run("invalid version", func(t *testing.T) {
		_, err := model.BumpVersion("not-a-version", types.BumpPatch)
		gt.Error(t, err)
	})
}

package model

import "time"

// ReleaseCommit is the commit and tag produced by the package step
type ReleaseCommit struct {
	Sha     string // Commit the tag points to
	TagName string // e.g. v1.2.3
}

// ReleaseArtifact is a file uploaded to the host release
type ReleaseArtifact struct {
	Name string `mapstructure:"name" json:"name"` // Asset name on the host
	Path string `mapstructure:"path" json:"path"` // Local path, relative paths resolve against the workspace
}

// Commit is one entry of a commit range, used for the changelog
type Commit struct {
	Sha     string
	Author  string
	Date    time.Time
	Message string // Subject line only
}

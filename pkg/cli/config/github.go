package config

import "github.com/urfave/cli/v3"

// GitHub holds source host credentials given on the command line
type GitHub struct {
	AccessToken string
	APIEndpoint string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-access-token",
			Usage:       "GitHub token used for API calls and git push",
			Destination: &c.AccessToken,
		},
		&cli.StringFlag{
			Name:        "github-api-endpoint",
			Usage:       "GitHub API base URL for Enterprise servers",
			Destination: &c.APIEndpoint,
		},
	}
}

// Options returns the configuration keys set by flags
func (c *GitHub) Options() map[string]any {
	opts := map[string]any{}
	if c.AccessToken != "" {
		opts["source_github_access_token"] = c.AccessToken
	}
	if c.APIEndpoint != "" {
		opts["source_github_api_endpoint"] = c.APIEndpoint
	}
	return opts
}

package config

import (
	"strings"

	"github.com/analogj/capsulecd/pkg/domain/types"
)

type lookupFunc func(key string) (string, bool)

func (f lookupFunc) get(key string) string {
	v, _ := f(key)
	return v
}

// vendorDefaults maps well-known CI environment variables onto runner keys
func vendorDefaults(lookup lookupFunc) map[string]any {
	out := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}

	switch {
	case lookup.get("CIRCLECI") == "true":
		out["runner"] = string(types.RunnerCircleCI)

		owner, name := lookup.get("CIRCLE_PROJECT_USERNAME"), lookup.get("CIRCLE_PROJECT_REPONAME")
		pr := lookup.get("CI_PULL_REQUEST")
		if pr == "" {
			pr = lookup.get("CIRCLE_PULL_REQUEST")
		}
		set("runner_pull_request", pr)
		set("runner_sha", lookup.get("CIRCLE_SHA1"))
		set("runner_branch", lookup.get("CIRCLE_BRANCH"))
		set("runner_repo_name", name)
		if owner != "" && name != "" {
			out["runner_repo_full_name"] = owner + "/" + name
			out["runner_clone_url"] = "https://github.com/" + owner + "/" + name + ".git"
		}
		if u := lookup.get("CIRCLE_REPOSITORY_URL"); strings.HasPrefix(u, "https://") {
			out["runner_clone_url"] = u
		}

	case lookup.get("GITHUB_ACTIONS") == "true":
		out["runner"] = string(types.RunnerGitHubActions)

		fullName := lookup.get("GITHUB_REPOSITORY")
		set("runner_sha", lookup.get("GITHUB_SHA"))
		set("runner_branch", lookup.get("GITHUB_REF_NAME"))
		set("runner_event_name", lookup.get("GITHUB_EVENT_NAME"))
		set("runner_event_path", lookup.get("GITHUB_EVENT_PATH"))
		set("runner_repo_full_name", fullName)
		if _, name, ok := strings.Cut(fullName, "/"); ok {
			out["runner_repo_name"] = name
		}
		if server := lookup.get("GITHUB_SERVER_URL"); server != "" && fullName != "" {
			out["runner_clone_url"] = strings.TrimSuffix(server, "/") + "/" + fullName + ".git"
			out["source_github_web_endpoint"] = strings.TrimSuffix(server, "/")
		}
		set("source_github_api_endpoint", enterpriseAPI(lookup.get("GITHUB_API_URL")))
	}

	return out
}

// enterpriseAPI keeps the API URL only when it is not the public github.com API
func enterpriseAPI(u string) string {
	if u == "" || strings.TrimSuffix(u, "/") == "https://api.github.com" {
		return ""
	}
	return u
}

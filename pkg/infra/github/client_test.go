package github_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/gt"

	githubinfra "github.com/analogj/capsulecd/pkg/infra/github"
)

// fakeGitHub records requests made against a minimal GitHub REST API
type fakeGitHub struct {
	mu       sync.Mutex
	requests []string
	auth     []string
	statuses []map[string]any
	comments []map[string]any
	releases []map[string]any
	assets   map[string]string
	deleted  []string
}

func (f *fakeGitHub) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
}

// view runs fn while holding the lock so assertions do not race with handlers
func (f *fakeGitHub) view(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	gt.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	t.Helper()
	f := &fakeGitHub{assets: map[string]string{}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/repos/{owner}/{repo}/pulls/{number}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"number": 8,
			"state":  "open",
			"user":   map[string]any{"login": "alice"},
			"base": map[string]any{
				"sha": "base-sha",
				"ref": "master",
				"repo": map[string]any{
					"name":           chi.URLParam(r, "repo"),
					"full_name":      chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo"),
					"clone_url":      "https://github.com/o/x.git",
					"default_branch": "master",
				},
			},
			"head": map[string]any{"sha": "head-sha", "ref": "feature"},
		})
	})
	r.Get("/repos/{owner}/{repo}/collaborators/{user}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "user") == "alice" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/repos/{owner}/{repo}/issues/{number}/comments", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		f.mu.Lock()
		f.comments = append(f.comments, body)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": 1, "body": body["body"]})
	})
	r.Post("/repos/{owner}/{repo}/statuses/{sha}", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		body["sha"] = chi.URLParam(r, "sha")
		f.mu.Lock()
		f.statuses = append(f.statuses, body)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, body)
	})
	r.Post("/repos/{owner}/{repo}/releases", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		f.mu.Lock()
		f.releases = append(f.releases, body)
		f.mu.Unlock()
		body["id"] = 42
		writeJSON(w, http.StatusCreated, body)
	})
	r.Post("/repos/{owner}/{repo}/releases/{id}/assets", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		f.mu.Lock()
		f.assets[r.URL.Query().Get("name")] = string(raw)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": 7, "name": r.URL.Query().Get("name")})
	})
	r.Delete("/repos/{owner}/{repo}/git/refs/*", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, chi.URLParam(r, "*"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/app/installations/{id}/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"token":      "ghs_installation_token",
			"expires_at": "2099-01-01T00:00:00Z",
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return f, server
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := githubinfra.NewClient(context.Background(), "")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrSourceAuthenticationFailed))
}

func TestClient_API(t *testing.T) {
	ctx := context.Background()
	fake, server := newFakeGitHub(t)

	client, err := githubinfra.NewClient(ctx, "test-token", githubinfra.WithAPIEndpoint(server.URL))
	gt.NoError(t, err)

	t.Run("token", func(t *testing.T) {
		token, err := client.Token(ctx)
		gt.NoError(t, err)
		gt.Value(t, token).Equal("test-token")
	})

	t.Run("get pull request", func(t *testing.T) {
		pr, err := client.GetPullRequest(ctx, "o", "x", 8)
		gt.NoError(t, err)
		gt.Value(t, pr.GetState()).Equal("open")
		gt.Value(t, pr.GetBase().GetRepo().GetDefaultBranch()).Equal("master")
		gt.Value(t, pr.GetUser().GetLogin()).Equal("alice")
		fake.view(func() {
			gt.Value(t, fake.auth[len(fake.auth)-1]).Equal("Bearer test-token")
		})
	})

	t.Run("collaborator check", func(t *testing.T) {
		ok, err := client.IsCollaborator(ctx, "o", "x", "alice")
		gt.NoError(t, err)
		gt.True(t, ok)

		ok, err = client.IsCollaborator(ctx, "o", "x", "mallory")
		gt.NoError(t, err)
		gt.Value(t, ok).Equal(false)
	})

	t.Run("comment and status", func(t *testing.T) {
		_, _, err := client.CreateComment(ctx, "o", "x", 8, &github.IssueComment{Body: github.Ptr("hi")})
		gt.NoError(t, err)
		fake.view(func() {
			gt.Number(t, len(fake.comments)).Equal(1)
			gt.Value(t, fake.comments[0]["body"]).Equal("hi")
		})

		err = client.CreateStatus(ctx, "o", "x", "head-sha", &github.RepoStatus{
			State:       github.Ptr("pending"),
			Description: github.Ptr("started"),
			Context:     github.Ptr("CapsuleCD"),
		})
		gt.NoError(t, err)
		fake.view(func() {
			gt.Value(t, fake.statuses[0]["state"]).Equal("pending")
			gt.Value(t, fake.statuses[0]["sha"]).Equal("head-sha")
		})
	})

	t.Run("release and asset", func(t *testing.T) {
		release, err := client.CreateRelease(ctx, "o", "x", &github.RepositoryRelease{
			TagName: github.Ptr("v1.0.3"),
			Name:    github.Ptr("v1.0.3"),
			Body:    github.Ptr("changelog"),
		})
		gt.NoError(t, err)
		gt.Value(t, release.GetID()).Equal(int64(42))

		path := filepath.Join(t.TempDir(), "dist.tgz")
		gt.NoError(t, os.WriteFile(path, []byte("artifact"), 0644))
		file, err := os.Open(path)
		gt.NoError(t, err)
		defer file.Close()

		gt.NoError(t, client.UploadReleaseAsset(ctx, "o", "x", release.GetID(), "dist.tgz", file))
		fake.view(func() {
			gt.Value(t, fake.assets["dist.tgz"]).Equal("artifact")
		})
	})

	t.Run("delete branch", func(t *testing.T) {
		gt.NoError(t, client.DeleteBranch(ctx, "o", "x", "feature"))
		fake.view(func() {
			gt.Value(t, fake.deleted).Equal([]string{"heads/feature"})
		})
	})
}

func TestNewAppClient(t *testing.T) {
	ctx := context.Background()
	_, server := newFakeGitHub(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	gt.NoError(t, err)
	privateKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	client, err := githubinfra.NewAppClient(1, 2, privateKey, githubinfra.WithAPIEndpoint(server.URL))
	gt.NoError(t, err)

	token, err := client.Token(ctx)
	gt.NoError(t, err)
	gt.Value(t, token).Equal("ghs_installation_token")

	t.Run("invalid key", func(t *testing.T) {
		_, err := githubinfra.NewAppClient(1, 2, []byte("not a key"))
		gt.True(t, errors.Is(err, types.ErrSourceAuthenticationFailed))
	})
}

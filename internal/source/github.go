package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGitHubAPI = "https://api.github.com"

var (
	// ErrRepoNotFound is returned when the repository or ref does not exist.
	ErrRepoNotFound = errors.New("repository or ref not found")
	// ErrUnauthorized is returned when GitHub rejects the access token.
	ErrUnauthorized = errors.New("GitHub authentication failed, check your access token")
)

// Fetcher downloads versioned source trees.
type Fetcher interface {
	// Fetch returns a zip archive holding one top-level directory.
	Fetch(ctx context.Context, owner, repo, ref, token string) (io.ReadCloser, error)
	// LatestCommit resolves ref to a commit SHA.
	LatestCommit(ctx context.Context, owner, repo, ref, token string) (string, error)
}

// GitHub fetches repository zipballs from the GitHub REST API.
type GitHub struct {
	Client  *http.Client
	BaseURL string
}

// NewGitHub returns a fetcher for api.github.com.
func NewGitHub() *GitHub {
	return &GitHub{
		Client:  &http.Client{Timeout: 2 * time.Minute},
		BaseURL: defaultGitHubAPI,
	}
}

func (g *GitHub) get(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GitHub: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, ErrRepoNotFound
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("GitHub API error: %d", resp.StatusCode)
	}
}

func (g *GitHub) url(owner, repo, kind, ref string) string {
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = defaultGitHubAPI
	}
	return fmt.Sprintf("%s/repos/%s/%s/%s/%s", base, owner, repo, kind, ref)
}

func (g *GitHub) Fetch(ctx context.Context, owner, repo, ref, token string) (io.ReadCloser, error) {
	resp, err := g.get(ctx, g.url(owner, repo, "zipball", ref), token)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s#%s: %w", owner, repo, ref, err)
	}
	return resp.Body, nil
}

func (g *GitHub) LatestCommit(ctx context.Context, owner, repo, ref, token string) (string, error) {
	resp, err := g.get(ctx, g.url(owner, repo, "commits", ref), token)
	if err != nil {
		return "", fmt.Errorf("resolve %s/%s#%s: %w", owner, repo, ref, err)
	}
	defer resp.Body.Close()

	var body struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode commit response: %w", err)
	}
	if body.SHA == "" {
		return "", errors.New("commit response has no sha")
	}
	return body.SHA, nil
}

// commitFromRoot extracts the commit from a zipball root directory name,
// which GitHub formats as owner-repo-<short sha>.
func commitFromRoot(root string) string {
	if i := strings.LastIndex(root, "-"); i >= 0 {
		return root[i+1:]
	}
	return root
}

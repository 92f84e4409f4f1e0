package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHub backs the GitHub tool family with an authenticated API client
// scoped to a fixed owner and repository list.
type GitHub struct {
	client *github.Client
	owner  string
	repos  []string
}

// GitHubOpts configures the GitHub tool backend.
type GitHubOpts struct {
	Token string
	Owner string
	Repos []string
}

// NewGitHub builds the backend and registers its handlers on the mux.
func NewGitHub(ctx context.Context, mux *Mux, opts GitHubOpts) (*GitHub, error) {
	if opts.Token == "" {
		return nil, errors.New("tools: github token is required")
	}
	if opts.Owner == "" {
		return nil, errors.New("tools: github owner is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	g := &GitHub{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		owner:  opts.Owner,
		repos:  opts.Repos,
	}
	for name, h := range map[string]Handler{
		GitHubPRs:         g.pullRequests,
		GitHubIssues:      g.issues,
		SearchGitHubCode:  g.searchCode,
		CreateGitHubIssue: g.createIssue,
	} {
		if err := mux.Register(name, h); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *GitHub) pullRequests(ctx context.Context, args map[string]any) (string, error) {
	state := stringArg(args, "state", "open")
	max := intArg(args, "max_results", 10)

	var lines []string
	for _, repo := range g.repos {
		prs, _, err := g.client.PullRequests.List(ctx, g.owner, repo, &github.PullRequestListOptions{
			State:       state,
			ListOptions: github.ListOptions{PerPage: max},
		})
		if err != nil {
			return "", fmt.Errorf("tools: list pull requests %s/%s: %w", g.owner, repo, err)
		}
		for _, pr := range prs {
			if len(lines) >= max {
				break
			}
			lines = append(lines, fmt.Sprintf("%s#%d [%s] %s (%s) %s",
				repo, pr.GetNumber(), pr.GetState(), pr.GetTitle(),
				pr.GetUser().GetLogin(), pr.GetHTMLURL()))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No %s pull requests found.", state), nil
	}
	return strings.Join(lines, "\n"), nil
}

func (g *GitHub) issues(ctx context.Context, args map[string]any) (string, error) {
	state := stringArg(args, "state", "open")
	max := intArg(args, "max_results", 10)

	var lines []string
	for _, repo := range g.repos {
		issues, _, err := g.client.Issues.ListByRepo(ctx, g.owner, repo, &github.IssueListByRepoOptions{
			State:       state,
			ListOptions: github.ListOptions{PerPage: max},
		})
		if err != nil {
			return "", fmt.Errorf("tools: list issues %s/%s: %w", g.owner, repo, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			if len(lines) >= max {
				break
			}
			lines = append(lines, fmt.Sprintf("%s#%d [%s] %s %s",
				repo, issue.GetNumber(), issue.GetState(), issue.GetTitle(), issue.GetHTMLURL()))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No %s issues found.", state), nil
	}
	return strings.Join(lines, "\n"), nil
}

func (g *GitHub) searchCode(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query", "")
	max := intArg(args, "max_results", 20)
	if repo := stringArg(args, "repo", ""); repo != "" {
		if !strings.Contains(repo, "/") {
			repo = g.owner + "/" + repo
		}
		query += " repo:" + repo
	} else {
		query += " user:" + g.owner
	}

	result, _, err := g.client.Search.Code(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: max},
	})
	if err != nil {
		return "", fmt.Errorf("tools: search code: %w", err)
	}
	if len(result.CodeResults) == 0 {
		return "No matching code found.", nil
	}
	var lines []string
	for _, hit := range result.CodeResults {
		lines = append(lines, fmt.Sprintf("%s: %s %s",
			hit.GetRepository().GetFullName(), hit.GetPath(), hit.GetHTMLURL()))
	}
	return strings.Join(lines, "\n"), nil
}

func (g *GitHub) createIssue(ctx context.Context, args map[string]any) (string, error) {
	owner, repo, err := g.splitRepo(stringArg(args, "repo", ""))
	if err != nil {
		return "", err
	}
	req := &github.IssueRequest{
		Title: github.String(stringArg(args, "title", "")),
	}
	if body := stringArg(args, "body", ""); body != "" {
		req.Body = github.String(body)
	}
	if labels := stringsArg(args, "labels"); len(labels) > 0 {
		req.Labels = &labels
	}

	issue, _, err := g.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return "", fmt.Errorf("tools: create issue %s/%s: %w", owner, repo, err)
	}
	return fmt.Sprintf("Created issue %s/%s#%d: %s", owner, repo, issue.GetNumber(), issue.GetHTMLURL()), nil
}

func (g *GitHub) splitRepo(full string) (string, string, error) {
	if full == "" {
		return "", "", errors.New("tools: repository is required")
	}
	if parts := strings.SplitN(full, "/", 2); len(parts) == 2 {
		return parts[0], parts[1], nil
	}
	return g.owner, full, nil
}

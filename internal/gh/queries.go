package gh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/h0rv/prwatch/internal/domain"
	"github.com/machinebox/graphql"
)

// Predicate is the search qualifier that selects items related to a user.
type Predicate string

const (
	PredicateAuthor          Predicate = "author"
	PredicateAssignee        Predicate = "assignee"
	PredicateReviewRequested Predicate = "review-requested"
)

// Category returns the item category a predicate produces.
func (p Predicate) Category() domain.Category {
	switch p {
	case PredicateAssignee:
		return domain.CategoryAssigned
	case PredicateReviewRequested:
		return domain.CategoryReviewRequested
	default:
		return domain.CategoryAuthored
	}
}

// SearchQuery describes one pull request search.
type SearchQuery struct {
	Predicate Predicate
	Login     string
	OpenOnly  bool
	Limit     int // Maximum number of items returned; 0 means one page
}

// String renders the GitHub search syntax, e.g. "is:pr is:open author:octocat".
// Logins that are not plain words are quoted so they stay one qualifier.
func (q SearchQuery) String() string {
	login := q.Login
	if login == "" || strings.ContainsAny(login, " \t\"':") {
		login = strconv.Quote(login)
	}

	parts := []string{"is:pr"}
	if q.OpenOnly {
		parts = append(parts, "is:open")
	}
	parts = append(parts, fmt.Sprintf("%s:%s", q.Predicate, login))
	return strings.Join(parts, " ")
}

const pageSize = 100

// Viewer returns the login of the authenticated user.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	req := graphql.NewRequest(`
		query {
			viewer {
				login
			}
		}
	`)

	var resp struct {
		Viewer struct {
			Login string `json:"login"`
		} `json:"viewer"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("failed to get viewer: %w", err)
	}

	return resp.Viewer.Login, nil
}

// searchNode is one search result. PullRequest and Issue share the fields we need
// but either may lack an author (deleted accounts) or a repository (private items).
type searchNode struct {
	Typename  string    `json:"__typename"`
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    *struct {
		Login string `json:"login"`
	} `json:"author"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
}

// SearchItems runs a search and returns the normalized items in API order.
// Fetches pages until the limit is reached or results run out.
func (c *Client) SearchItems(ctx context.Context, q SearchQuery) ([]domain.Item, error) {
	query := `
		query($q: String!, $first: Int!, $after: String) {
			search(query: $q, type: ISSUE, first: $first, after: $after) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					__typename
					... on PullRequest {
						id
						number
						title
						url
						updatedAt
						author {
							login
						}
						repository {
							nameWithOwner
						}
					}
					... on Issue {
						id
						number
						title
						url
						updatedAt
						author {
							login
						}
						repository {
							nameWithOwner
						}
					}
				}
			}
		}
	`

	limit := q.Limit
	if limit <= 0 {
		limit = pageSize
	}

	items := make([]domain.Item, 0, min(limit, pageSize))
	cursor := ""
	for len(items) < limit {
		req := graphql.NewRequest(query)
		req.Var("q", q.String())
		req.Var("first", min(pageSize, limit-len(items)))
		if cursor != "" {
			req.Var("after", cursor)
		} else {
			req.Var("after", nil)
		}

		var resp struct {
			Search struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []searchNode `json:"nodes"`
			} `json:"search"`
		}

		if err := c.makeRequest(ctx, req, &resp); err != nil {
			return nil, fmt.Errorf("failed to search %q: %w", q.String(), err)
		}

		for _, node := range resp.Search.Nodes {
			item, ok := normalizeNode(node, q.Predicate.Category())
			if !ok {
				continue
			}
			items = append(items, item)
		}

		if !resp.Search.PageInfo.HasNextPage || resp.Search.PageInfo.EndCursor == "" {
			break
		}
		cursor = resp.Search.PageInfo.EndCursor
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// normalizeNode converts a search node into an Item.
// Nodes of other types (the search can return anything) are skipped.
func normalizeNode(node searchNode, category domain.Category) (domain.Item, bool) {
	switch node.Typename {
	case "PullRequest", "Issue":
	default:
		return domain.Item{}, false
	}
	if node.ID == "" {
		return domain.Item{}, false
	}

	author := "ghost"
	if node.Author != nil && node.Author.Login != "" {
		author = node.Author.Login
	}

	var repo domain.RepoRef
	if node.Repository != nil {
		repo = domain.ParseRepoRef(node.Repository.NameWithOwner)
	}

	return domain.Item{
		ID:        node.ID,
		Number:    node.Number,
		Title:     node.Title,
		Repo:      repo,
		URL:       node.URL,
		UpdatedAt: node.UpdatedAt.UTC(),
		Author:    author,
		Category:  category,
	}, true
}

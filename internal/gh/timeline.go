package gh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/h0rv/prwatch/internal/domain"
	"github.com/machinebox/graphql"
)

type login struct {
	Login string `json:"login"`
}

func (l *login) get() string {
	if l == nil {
		return ""
	}
	return l.Login
}

// timelineNode covers every timeline item type requested below.
type timelineNode struct {
	Typename string `json:"__typename"`

	// PullRequestReview, IssueComment
	Author      *login     `json:"author"`
	State       string     `json:"state"`
	SubmittedAt *time.Time `json:"submittedAt"`
	CreatedAt   *time.Time `json:"createdAt"`

	// HeadRefForcePushedEvent
	Actor *login `json:"actor"`

	// PullRequestCommit
	Commit *struct {
		CommittedDate *time.Time `json:"committedDate"`
		Author        *struct {
			User *login `json:"user"`
		} `json:"author"`
	} `json:"commit"`
}

// Timeline fetches the most recent activity trail of a pull request, oldest first.
// Only the event kinds that count as state-changing are requested.
func (c *Client) Timeline(ctx context.Context, repo domain.RepoRef, number int) ([]domain.ActivityEvent, error) {
	req := graphql.NewRequest(`
		query($owner: String!, $name: String!, $number: Int!) {
			repository(owner: $owner, name: $name) {
				pullRequest(number: $number) {
					timelineItems(last: 100, itemTypes: [PULL_REQUEST_REVIEW, PULL_REQUEST_COMMIT, ISSUE_COMMENT, HEAD_REF_FORCE_PUSHED_EVENT]) {
						nodes {
							__typename
							... on PullRequestReview {
								author {
									login
								}
								state
								submittedAt
							}
							... on PullRequestCommit {
								commit {
									committedDate
									author {
										user {
											login
										}
									}
								}
							}
							... on IssueComment {
								author {
									login
								}
								createdAt
							}
							... on HeadRefForcePushedEvent {
								actor {
									login
								}
								createdAt
							}
						}
					}
				}
			}
		}
	`)
	req.Var("owner", repo.Owner)
	req.Var("name", repo.Name)
	req.Var("number", number)

	var resp struct {
		Repository *struct {
			PullRequest *struct {
				TimelineItems struct {
					Nodes []timelineNode `json:"nodes"`
				} `json:"timelineItems"`
			} `json:"pullRequest"`
		} `json:"repository"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get timeline for %s#%d: %w", repo, number, err)
	}
	if resp.Repository == nil || resp.Repository.PullRequest == nil {
		return nil, fmt.Errorf("pull request %s#%d: %w", repo, number, domain.ErrNotFound)
	}

	nodes := resp.Repository.PullRequest.TimelineItems.Nodes
	events := make([]domain.ActivityEvent, 0, len(nodes))
	for _, node := range nodes {
		if ev, ok := normalizeTimelineNode(node); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func normalizeTimelineNode(node timelineNode) (domain.ActivityEvent, bool) {
	switch node.Typename {
	case "PullRequestReview":
		// Pending reviews are drafts that nobody else can see yet
		if node.SubmittedAt == nil || strings.EqualFold(node.State, "PENDING") {
			return domain.ActivityEvent{}, false
		}
		return domain.ActivityEvent{
			Kind:        domain.ActionReviewSubmitted,
			Actor:       node.Author.get(),
			ReviewState: strings.ToLower(node.State),
			At:          *node.SubmittedAt,
		}, true
	case "PullRequestCommit":
		ev := domain.ActivityEvent{Kind: domain.ActionCommitPushed}
		if node.Commit != nil {
			if node.Commit.Author != nil {
				ev.Actor = node.Commit.Author.User.get()
			}
			if node.Commit.CommittedDate != nil {
				ev.At = *node.Commit.CommittedDate
			}
		}
		return ev, true
	case "IssueComment":
		return domain.ActivityEvent{
			Kind:  domain.ActionCommentPosted,
			Actor: node.Author.get(),
			At:    derefTime(node.CreatedAt),
		}, true
	case "HeadRefForcePushedEvent":
		return domain.ActivityEvent{
			Kind:  domain.ActionBranchSynchronized,
			Actor: node.Actor.get(),
			At:    derefTime(node.CreatedAt),
		}, true
	default:
		return domain.ActivityEvent{}, false
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

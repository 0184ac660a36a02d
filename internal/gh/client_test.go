package gh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/h0rv/prwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// fakeGitHub is a minimal GraphQL endpoint that answers with canned bodies.
type fakeGitHub struct {
	mu       sync.Mutex
	requests []gqlRequest
	auth     []string
	status   int
	respond  func(req gqlRequest) string
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
		return
	}
	_, _ = w.Write([]byte(f.respond(req)))
}

func newTestClient(t *testing.T, f *fakeGitHub) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := New("tok", WithEndpoint(srv.URL))
	require.NoError(t, err)
	return client
}

func TestNew_EmptyToken(t *testing.T) {
	client, err := New("")
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSearchQuery_String(t *testing.T) {
	tests := []struct {
		name string
		q    SearchQuery
		want string
	}{
		{"author open", SearchQuery{Predicate: PredicateAuthor, Login: "octocat", OpenOnly: true}, "is:pr is:open author:octocat"},
		{"assignee", SearchQuery{Predicate: PredicateAssignee, Login: "octocat"}, "is:pr assignee:octocat"},
		{"review requested", SearchQuery{Predicate: PredicateReviewRequested, Login: "a-b", OpenOnly: true}, "is:pr is:open review-requested:a-b"},
		{"quoted login", SearchQuery{Predicate: PredicateAuthor, Login: "x y"}, `is:pr author:"x y"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestPredicate_Category(t *testing.T) {
	assert.Equal(t, domain.CategoryAuthored, PredicateAuthor.Category())
	assert.Equal(t, domain.CategoryAssigned, PredicateAssignee.Category())
	assert.Equal(t, domain.CategoryReviewRequested, PredicateReviewRequested.Category())
}

func TestSearchItems_NormalizesNodes(t *testing.T) {
	f := &fakeGitHub{respond: func(req gqlRequest) string {
		return `{"data":{"search":{"pageInfo":{"hasNextPage":false,"endCursor":""},"nodes":[
			{"__typename":"PullRequest","id":"PR_1","number":7,"title":"Fix it","url":"https://github.com/o/r/pull/7",
			 "updatedAt":"2026-01-02T03:04:05Z","author":{"login":"alice"},"repository":{"nameWithOwner":"o/r"}},
			{"__typename":"Issue","id":"I_2","number":8,"title":"Bug","url":"https://github.com/o/r/issues/8",
			 "updatedAt":"2026-01-03T00:00:00Z","author":null,"repository":{"nameWithOwner":"o/r"}},
			{"__typename":"Discussion","id":"D_3"},
			{}
		]}}}`
	}}
	client := newTestClient(t, f)

	items, err := client.SearchItems(context.Background(), SearchQuery{Predicate: PredicateAssignee, Login: "bob", OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, domain.Item{
		ID:        "PR_1",
		Number:    7,
		Title:     "Fix it",
		Repo:      domain.RepoRef{Owner: "o", Name: "r"},
		URL:       "https://github.com/o/r/pull/7",
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Author:    "alice",
		Category:  domain.CategoryAssigned,
	}, items[0])
	assert.Equal(t, "ghost", items[1].Author)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "is:pr is:open assignee:bob", f.requests[0].Variables["q"])
	assert.Equal(t, "Bearer tok", f.auth[0])
}

func TestSearchItems_Paginates(t *testing.T) {
	f := &fakeGitHub{respond: func(req gqlRequest) string {
		if req.Variables["after"] == nil {
			return `{"data":{"search":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"nodes":[
				{"__typename":"PullRequest","id":"PR_1","number":1,"updatedAt":"2026-01-01T00:00:00Z","repository":{"nameWithOwner":"o/r"}}]}}}`
		}
		return `{"data":{"search":{"pageInfo":{"hasNextPage":false,"endCursor":"c2"},"nodes":[
			{"__typename":"PullRequest","id":"PR_2","number":2,"updatedAt":"2026-01-01T00:00:00Z","repository":{"nameWithOwner":"o/r"}}]}}}`
	}}
	client := newTestClient(t, f)

	items, err := client.SearchItems(context.Background(), SearchQuery{Predicate: PredicateAuthor, Login: "bob", Limit: 250})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "PR_1", items[0].ID)
	assert.Equal(t, "PR_2", items[1].ID)

	require.Len(t, f.requests, 2)
	assert.Equal(t, "c1", f.requests[1].Variables["after"])
}

func TestSearchItems_Unauthorized(t *testing.T) {
	f := &fakeGitHub{status: http.StatusUnauthorized}
	client := newTestClient(t, f)

	_, err := client.SearchItems(context.Background(), SearchQuery{Predicate: PredicateAuthor, Login: "bob"})
	require.Error(t, err)

	var rqe *domain.RemoteQueryError
	require.True(t, errors.As(err, &rqe))
	assert.Equal(t, http.StatusUnauthorized, rqe.StatusCode)
	assert.True(t, domain.IsUnauthorized(err))
}

func TestSearchItems_ServerError(t *testing.T) {
	f := &fakeGitHub{status: http.StatusBadGateway}
	client := newTestClient(t, f)

	_, err := client.SearchItems(context.Background(), SearchQuery{Predicate: PredicateAuthor, Login: "bob"})
	require.Error(t, err)
	assert.False(t, domain.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "502")
}

func TestViewer(t *testing.T) {
	f := &fakeGitHub{respond: func(req gqlRequest) string {
		return `{"data":{"viewer":{"login":"bob"}}}`
	}}
	client := newTestClient(t, f)

	login, err := client.Viewer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", login)
}

func TestTimeline_NormalizesEvents(t *testing.T) {
	f := &fakeGitHub{respond: func(req gqlRequest) string {
		return `{"data":{"repository":{"pullRequest":{"timelineItems":{"nodes":[
			{"__typename":"PullRequestCommit","commit":{"committedDate":"2026-01-01T00:00:00Z","author":{"user":{"login":"bob"}}}},
			{"__typename":"PullRequestReview","author":{"login":"carol"},"state":"CHANGES_REQUESTED","submittedAt":"2026-01-02T00:00:00Z"},
			{"__typename":"IssueComment","author":{"login":"dave"},"createdAt":"2026-01-03T00:00:00Z"},
			{"__typename":"HeadRefForcePushedEvent","actor":{"login":"bob"},"createdAt":"2026-01-04T00:00:00Z"},
			{"__typename":"PullRequestReview","author":{"login":"erin"},"state":"PENDING","submittedAt":null},
			{"__typename":"LabeledEvent"}
		]}}}}}`
	}}
	client := newTestClient(t, f)

	events, err := client.Timeline(context.Background(), domain.RepoRef{Owner: "o", Name: "r"}, 7)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, domain.ActionCommitPushed, events[0].Kind)
	assert.Equal(t, "bob", events[0].Actor)
	assert.Equal(t, domain.ActionReviewSubmitted, events[1].Kind)
	assert.Equal(t, domain.ReviewChangesRequested, events[1].ReviewState)
	assert.Equal(t, "carol", events[1].Actor)
	assert.Equal(t, domain.ActionCommentPosted, events[2].Kind)
	assert.Equal(t, domain.ActionBranchSynchronized, events[3].Kind)
	assert.Equal(t, "bob", events[3].Actor)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "o", f.requests[0].Variables["owner"])
	assert.Equal(t, "r", f.requests[0].Variables["name"])
	assert.EqualValues(t, 7, f.requests[0].Variables["number"])
	assert.True(t, strings.Contains(f.requests[0].Query, "timelineItems"))
}

func TestTimeline_MissingPullRequest(t *testing.T) {
	f := &fakeGitHub{respond: func(req gqlRequest) string {
		return `{"data":{"repository":{"pullRequest":null}}}`
	}}
	client := newTestClient(t, f)

	_, err := client.Timeline(context.Background(), domain.RepoRef{Owner: "o", Name: "r"}, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTimeline_GraphQLError(t *testing.T) {
	f := &fakeGitHub{respond: func(req gqlRequest) string {
		return `{"data":null,"errors":[{"message":"Could not resolve to a Repository"}]}`
	}}
	client := newTestClient(t, f)

	_, err := client.Timeline(context.Background(), domain.RepoRef{Owner: "o", Name: "r"}, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not resolve")
}

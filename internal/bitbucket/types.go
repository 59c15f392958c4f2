// internal/bitbucket/types.go
package bitbucket

import "time"

// Page is the pagination envelope every Bitbucket collection resource uses.
// Next is an absolute URL to the following page; empty means last page.
type Page[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

// User is the "user" object embedded across resources.
type User struct {
	UUID        string     `json:"uuid"`
	DisplayName string     `json:"display_name"`
	CreatedOn   *time.Time `json:"created_on"`
	Links       UserLinks  `json:"links"`
}

type UserLinks struct {
	Avatar Link `json:"avatar"`
}

type Link struct {
	Href string `json:"href"`
}

// WorkspaceMembership is one item in the workspace members list.
type WorkspaceMembership struct {
	User User `json:"user"`
}

// Repository is one item in the workspace repositories list.
type Repository struct {
	UUID      string     `json:"uuid"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	FullName  string     `json:"full_name"`
	Workspace Workspace  `json:"workspace"`
	CreatedOn *time.Time `json:"created_on"`
}

type Workspace struct {
	Slug string `json:"slug"`
}

// CommitAuthor carries both the raw "Name <email>" string and the linked
// account, either of which may be absent.
type CommitAuthor struct {
	Raw  string `json:"raw"`
	User *User  `json:"user"`
}

// Commit is one item in a commit list (repository history or PR commits).
type Commit struct {
	Hash    string         `json:"hash"`
	Date    time.Time      `json:"date"`
	Message string         `json:"message"`
	Author  CommitAuthor   `json:"author"`
	Parents []CommitParent `json:"parents"`
}

type CommitParent struct {
	Hash string `json:"hash"`
}

// IsMerge reports whether the commit has two or more parents.
func (c Commit) IsMerge() bool { return len(c.Parents) >= 2 }

// PullRequest is one item in a pull request list.
type PullRequest struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	State       string     `json:"state"`
	Author      *User      `json:"author"`
	CreatedOn   time.Time  `json:"created_on"`
	UpdatedOn   *time.Time `json:"updated_on"`
	ClosedOn    *time.Time `json:"closed_on"`
	MergeCommit *Commit    `json:"merge_commit"`
}

// Activity is one entry in a pull request's activity stream. Only approval
// events carry an Approval object; everything else is ignored.
type Activity struct {
	Approval *Approval `json:"approval"`
}

type Approval struct {
	User User      `json:"user"`
	Date time.Time `json:"date"`
}

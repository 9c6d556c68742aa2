// Package data contains the vertex types of the repository graph.
//
// Commit and Branch wrap objects read through a go-git repository handle.
// They are only meaningful while that handle stays open.
package data

import (
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Type names as declared in the schema.
const (
	TypeRepository = "Repository"
	TypeCommit     = "Commit"
	TypeBranch     = "Branch"
	TypeTag        = "Tag"
)

// Vertex is one of *Repository, *Commit, *Branch or *Tag.
type Vertex interface {
	TypeName() string
	vertex()
}

type Repository struct {
	Name string
}

func (*Repository) TypeName() string { return TypeRepository }
func (*Repository) vertex()          {}

type User struct {
	Name  string
	Email string
}

type Commit struct {
	object *object.Commit
}

func NewCommit(c *object.Commit) *Commit {
	return &Commit{object: c}
}

func (*Commit) TypeName() string { return TypeCommit }
func (*Commit) vertex()          {}

func (c *Commit) Hash() string {
	return c.object.Hash.String()
}

// Message returns the commit message, or nil if it is not valid UTF-8.
func (c *Commit) Message() *string {
	return validUTF8(c.object.Message)
}

func (c *Commit) Author() User {
	return User{Name: c.object.Author.Name, Email: c.object.Author.Email}
}

func (c *Commit) Committer() User {
	return User{Name: c.object.Committer.Name, Email: c.object.Committer.Email}
}

// Date is the committer timestamp.
func (c *Commit) Date() time.Time {
	return c.object.Committer.When
}

// Branch is a local branch reference. Its target is not stored: the commit
// a branch points at is looked up again whenever it is needed.
type Branch struct {
	ref *plumbing.Reference
}

func NewBranch(ref *plumbing.Reference) *Branch {
	return &Branch{ref: ref}
}

func (*Branch) TypeName() string { return TypeBranch }
func (*Branch) vertex()          {}

// Name returns the short branch name, or false if the reference is not a
// branch reference.
func (b *Branch) Name() (string, bool) {
	if b.ref == nil || !b.ref.Name().IsBranch() {
		return "", false
	}
	return b.ref.Name().Short(), true
}

// Tag is an annotated or lightweight tag that resolves to a commit. The
// annotation fields are nil for lightweight tags.
type Tag struct {
	Name        string
	Target      plumbing.Hash
	Message     *string
	TaggerName  *string
	TaggerEmail *string
}

// NewLightweightTag creates a tag without annotation.
func NewLightweightTag(name string, target plumbing.Hash) *Tag {
	return &Tag{
		Name:   name,
		Target: target,
	}
}

// NewAnnotatedTag creates a tag from a tag object and the commit it peels to.
func NewAnnotatedTag(name string, tag *object.Tag, target plumbing.Hash) *Tag {
	t := &Tag{
		Name:    name,
		Target:  target,
		Message: validUTF8(tag.Message),
	}
	if tag.Tagger.Name != "" || tag.Tagger.Email != "" {
		t.TaggerName = validUTF8(tag.Tagger.Name)
		t.TaggerEmail = validUTF8(tag.Tagger.Email)
	}
	return t
}

func (*Tag) TypeName() string { return TypeTag }
func (*Tag) vertex()          {}

func validUTF8(s string) *string {
	if !utf8.ValidString(s) {
		return nil
	}
	return &s
}

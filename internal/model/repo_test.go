package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggleStar_RoundTrip(t *testing.T) {
	r := &Repo{}

	r.ToggleStar()
	assert.True(t, r.IsStarred)
	assert.Equal(t, 1, r.Stars)

	r.ToggleStar()
	assert.False(t, r.IsStarred)
	assert.Equal(t, 0, r.Stars)
}

func TestToggleStar_NeverNegative(t *testing.T) {
	// A starred repo whose counter is already 0 (e.g. legacy data).
	r := &Repo{IsStarred: true, Stars: 0}

	for i := 0; i < 7; i++ {
		r.ToggleStar()
		assert.GreaterOrEqual(t, r.Stars, 0, "after toggle %d", i+1)
	}
}

func TestSetStarred_NoChangeKeepsCounter(t *testing.T) {
	r := &Repo{IsStarred: true, Stars: 3}

	r.SetStarred(true)
	assert.Equal(t, 3, r.Stars)

	r.SetStarred(false)
	assert.Equal(t, 2, r.Stars)

	r.SetStarred(false)
	assert.Equal(t, 2, r.Stars)
}

func TestTogglePin_Twice(t *testing.T) {
	r := &Repo{}
	r.TogglePin()
	r.TogglePin()
	assert.False(t, r.IsPinned)
}

func TestVisibleTo(t *testing.T) {
	public := &Repo{UserID: "alice", IsPublic: true}
	private := &Repo{UserID: "alice", IsPublic: false}

	assert.True(t, public.VisibleTo(""))
	assert.True(t, public.VisibleTo("bob"))
	assert.True(t, private.VisibleTo("alice"))
	assert.False(t, private.VisibleTo(""))
	assert.False(t, private.VisibleTo("bob"))
}

func TestOwnedBy_EmptyCallerNeverOwns(t *testing.T) {
	r := &Repo{UserID: ""}
	assert.False(t, r.OwnedBy(""))
}

func TestCommitLookupAliasesSlice(t *testing.T) {
	r := &Repo{Commits: []Commit{{ID: "c1", Number: 1}, {ID: "c2", Number: 2}}}

	c := r.Commit("c2")
	if assert.NotNil(t, c) {
		c.Description = "edited"
	}
	assert.Equal(t, "edited", r.Commits[1].Description)
	assert.Nil(t, r.Commit("missing"))
	assert.Equal(t, 3, r.NextCommitNumber())
}

func TestUserPublicDropsPrivateFields(t *testing.T) {
	gh := int64(9)
	u := &User{ID: "u1", Username: "alice", Email: "a@x.com", PasswordHash: "$2a$...", GitHubID: &gh}

	p := u.Public()
	assert.Empty(t, p.Email)
	assert.Empty(t, p.PasswordHash)
	assert.Nil(t, p.GitHubID)
	assert.Equal(t, "a@x.com", u.Email, "original is untouched")
	assert.Equal(t, "alice", u.Summary().Username)
}

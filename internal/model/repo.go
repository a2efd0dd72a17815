package model

import "time"

// Repo is a user-owned goal. UserID is set at creation and never changes.
//
// User is the owner summary resolved by the service on every read; it
// is not persisted.
type Repo struct {
	ID        string       `json:"id"        bson:"_id"`
	UserID    string       `json:"-"         bson:"user_id"`
	User      *UserSummary `json:"user"      bson:"-"`
	Name      string       `json:"name"      bson:"name"`
	Summary   string       `json:"summary"   bson:"summary"`
	Season    string       `json:"season"    bson:"season"`
	Readme    string       `json:"readme"    bson:"readme"`
	IsPublic  bool         `json:"isPublic"  bson:"is_public"`
	IsPinned  bool         `json:"isPinned"  bson:"is_pinned"`
	IsStarred bool         `json:"isStarred" bson:"is_starred"`
	Stars     int          `json:"stars"     bson:"stars"`
	Commits   []Commit     `json:"commits"   bson:"commits"`
	CreatedAt time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" bson:"updated_at"`
}

// Commit is a progress entry inside a Repo. ProjectSeason is the repo's
// season at the moment the commit was created; later season edits do
// not touch it.
type Commit struct {
	ID            string       `json:"id"            bson:"id"`
	Number        int          `json:"number"        bson:"number"`
	User          *UserSummary `json:"user,omitempty" bson:"-"`
	Summary       string       `json:"summary"       bson:"summary"`
	Description   string       `json:"description"   bson:"description"`
	ProjectSeason string       `json:"projectSeason" bson:"project_season"`
	Comments      []Comment    `json:"comments"      bson:"comments"`
	CreatedAt     time.Time    `json:"createdAt"     bson:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt"     bson:"updated_at"`
}

// Comment is an immutable remark on a Commit. AuthorID is always the
// authenticated caller that created it.
type Comment struct {
	ID         string       `json:"id"                   bson:"id"`
	AuthorID   string       `json:"author"               bson:"author"`
	AuthorUser *UserSummary `json:"authorUser,omitempty" bson:"-"`
	Text       string       `json:"text"                 bson:"text"`
	CreatedAt  time.Time    `json:"createdAt"            bson:"created_at"`
}

// OwnedBy reports whether userID owns the repo.
func (r *Repo) OwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// VisibleTo reports whether userID (empty for anonymous) may read the
// repo: public repos are visible to everyone, private ones to the owner.
func (r *Repo) VisibleTo(userID string) bool {
	return r.IsPublic || r.OwnedBy(userID)
}

// TogglePin flips IsPinned.
func (r *Repo) TogglePin() {
	r.IsPinned = !r.IsPinned
}

// ToggleStar flips IsStarred and moves Stars with it.
func (r *Repo) ToggleStar() {
	r.SetStarred(!r.IsStarred)
}

// SetStarred sets IsStarred. When the flag actually changes, Stars is
// incremented (false → true) or decremented (true → false) and never
// goes below zero.
func (r *Repo) SetStarred(starred bool) {
	if starred == r.IsStarred {
		return
	}
	r.IsStarred = starred
	if starred {
		r.Stars++
	} else if r.Stars > 0 {
		r.Stars--
	}
}

// Commit returns a pointer to the commit with the given id, or nil.
// The pointer aliases the slice element, so mutations stick.
func (r *Repo) Commit(id string) *Commit {
	for i := range r.Commits {
		if r.Commits[i].ID == id {
			return &r.Commits[i]
		}
	}
	return nil
}

// NextCommitNumber is one past the highest commit number so far.
func (r *Repo) NextCommitNumber() int {
	n := 0
	for _, c := range r.Commits {
		if c.Number > n {
			n = c.Number
		}
	}
	return n + 1
}

// Package model defines the domain types shared by the store, service and
// HTTP layers.
//
// Two aggregates exist. User is the root for identity and profile data.
// Repo is owned by one User and carries its Commits, which carry their
// Comments; a Repo is always read and written as a whole.
package model

import "time"

// Socials groups the optional social handles shown on a profile.
type Socials struct {
	Twitter  string `json:"twitter"  bson:"twitter"`
	LinkedIn string `json:"linkedin" bson:"linkedin"`
	GitHub   string `json:"github"   bson:"github"`
}

// User is a registered account.
//
// PasswordHash and GitHubID are never serialized to JSON. Followers,
// Following and PinnedRepos are derived at read time (from the follow
// edges and the owner's pinned repos) and are not persisted with the
// user record.
type User struct {
	ID           string  `json:"id"                 bson:"_id"`
	Username     string  `json:"username"           bson:"username"`
	Email        string  `json:"email,omitempty"    bson:"email"`
	PasswordHash string  `json:"-"                  bson:"password_hash"`
	GitHubID     *int64  `json:"-"                  bson:"github_id,omitempty"`
	Name         string  `json:"name"               bson:"name"`
	Bio          string  `json:"bio"                bson:"bio"`
	Company      string  `json:"company"            bson:"company"`
	Location     string  `json:"location"           bson:"location"`
	Website      string  `json:"website"            bson:"website"`
	Socials      Socials `json:"socials"            bson:"socials"`
	AvatarURL    string  `json:"avatarUrl"          bson:"avatar_url"`

	Followers   []string `json:"followers"   bson:"-"`
	Following   []string `json:"following"   bson:"-"`
	PinnedRepos []string `json:"pinnedRepos" bson:"-"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// UserSummary is the small projection embedded in repos and comments
// and returned by register/login.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
}

// Summary returns the public summary of u (no email).
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}

// Public returns a copy of u safe to show to other users: the email is
// dropped. The hash is already excluded by its json tag.
func (u *User) Public() *User {
	cp := *u
	cp.Email = ""
	cp.PasswordHash = ""
	cp.GitHubID = nil
	return &cp
}

// HasPassword reports whether the account can log in with a password.
// Accounts created through GitHub sign-in have none.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

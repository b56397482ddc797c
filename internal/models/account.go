package models

import (
	"strings"
	"time"
)

// Account is a student profile stored at users/{uid}.
type Account struct {
	UID           string    `json:"uid"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	University    string    `json:"university"`
	SkillsToTeach []string  `json:"skillsToTeach"`
	SkillsToLearn []string  `json:"skillsToLearn"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// ProfileSnapshot is the denormalized copy of an account embedded in relationship documents.
type ProfileSnapshot struct {
	UID           string   `json:"uid"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	University    string   `json:"university"`
	SkillsToTeach []string `json:"skillsToTeach"`
	SkillsToLearn []string `json:"skillsToLearn"`
}

// Snapshot copies the fields other users see.
func (a *Account) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		UID:           a.UID,
		Name:          a.Name,
		Email:         a.Email,
		University:    a.University,
		SkillsToTeach: append([]string{}, a.SkillsToTeach...),
		SkillsToLearn: append([]string{}, a.SkillsToLearn...),
	}
}

// DisplayName falls back to the uid when the account has no name.
func (a *Account) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.UID
}

// ToMap is the document written at registration.
func (a *Account) ToMap() map[string]any {
	return map[string]any{
		"uid":           a.UID,
		"name":          a.Name,
		"email":         a.Email,
		"university":    a.University,
		"skillsToTeach": nonNil(a.SkillsToTeach),
		"skillsToLearn": nonNil(a.SkillsToLearn),
		"createdAt":     a.CreatedAt,
	}
}

// DecodeAccount reads an account document. The uid comes from the document id.
func DecodeAccount(id string, data map[string]any) (*Account, error) {
	d := &decoder{data: data}
	a := &Account{
		UID:           id,
		Name:          d.str("name"),
		Email:         d.str("email"),
		University:    d.str("university"),
		SkillsToTeach: d.strings("skillsToTeach"),
		SkillsToLearn: d.strings("skillsToLearn"),
		CreatedAt:     d.time("createdAt"),
		UpdatedAt:     d.time("updatedAt"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return a, nil
}

func (p ProfileSnapshot) fields() map[string]any {
	return map[string]any{
		"uid":           p.UID,
		"name":          p.Name,
		"email":         p.Email,
		"university":    p.University,
		"skillsToTeach": nonNil(p.SkillsToTeach),
		"skillsToLearn": nonNil(p.SkillsToLearn),
	}
}

// DisplayName falls back to the uid when the snapshot has no name.
func (p ProfileSnapshot) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.UID
}

func decodeSnapshot(id string, d *decoder) ProfileSnapshot {
	uid := d.str("uid")
	if uid == "" {
		uid = id
	}
	return ProfileSnapshot{
		UID:           uid,
		Name:          d.str("name"),
		Email:         d.str("email"),
		University:    d.str("university"),
		SkillsToTeach: d.strings("skillsToTeach"),
		SkillsToLearn: d.strings("skillsToLearn"),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package models

// RegisterRequest defines the request body for local registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignInRequest defines the request body for local sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type DisplayNameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=50"`
}

// UpdateProfileRequest mirrors the profile form: university and at least one skill
// on each side are mandatory.
type UpdateProfileRequest struct {
	Name          string   `json:"name" validate:"omitempty,max=50"`
	University    string   `json:"university" validate:"required,notblank,max=120"`
	SkillsToTeach []string `json:"skillsToTeach" validate:"required,min=1,dive,notblank,max=60"`
	SkillsToLearn []string `json:"skillsToLearn" validate:"required,min=1,dive,notblank,max=60"`
}

// ProfileUpdate is the partial profile written by a merge.
func (r UpdateProfileRequest) ProfileUpdate() map[string]any {
	m := map[string]any{
		"university":    r.University,
		"skillsToTeach": nonNil(r.SkillsToTeach),
		"skillsToLearn": nonNil(r.SkillsToLearn),
	}
	if r.Name != "" {
		m["name"] = r.Name
	}
	return m
}

// SendRequestRequest names the account to connect with
type SendRequestRequest struct {
	TargetUID string `json:"uid" validate:"required"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

type SetTitleRequest struct {
	Title string `json:"title" validate:"max=80"`
}

package model

import "time"

type ProjectStatus string

const (
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

// Project is one generation attempt, successful or not. Rows are append-only:
// created exactly once per attempt, never mutated, deleted only by explicit
// user action (which also releases the referenced storage objects).
type Project struct {
	ID             string
	UserID         string
	InputImageURL  *string // nil when the input never reached storage
	OutputImageURL *string // nil until the attempt succeeded
	Prompt         string
	Status         ProjectStatus
	ErrorNote      string // failure diagnostics; empty on success
	CreatedAt      time.Time
}

func NewCompletedProject(id, userID, inputURL, outputURL, prompt string) *Project {
	return &Project{
		ID:             id,
		UserID:         userID,
		InputImageURL:  &inputURL,
		OutputImageURL: &outputURL,
		Prompt:         prompt,
		Status:         ProjectStatusCompleted,
		CreatedAt:      time.Now(),
	}
}

func NewFailedProject(id, userID string, inputURL *string, prompt, errNote string) *Project {
	return &Project{
		ID:            id,
		UserID:        userID,
		InputImageURL: inputURL,
		Prompt:        prompt,
		Status:        ProjectStatusFailed,
		ErrorNote:     errNote,
		CreatedAt:     time.Now(),
	}
}

package models

import "time"

// Application is a live application created in a workspace.
type Application struct {
	ID              string    `json:"id"`
	WorkspaceID     string    `json:"workspaceId"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	PageCount       int       `json:"pageCount"`
	DatasourceCount int       `json:"datasourceCount"`
	ActionCount     int       `json:"actionCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AnalyticsEvent is the envelope published for every tracked action.
type AnalyticsEvent struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	SubjectType string    `json:"subjectType"`
	SubjectID   string    `json:"subjectId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

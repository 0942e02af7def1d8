// Package appjson defines the exported application definition document
// published by the template catalog. Page, action and datasource bodies are
// kept as raw JSON: only the import engine interprets them.
package appjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a full exported application: pages, datasources, actions and metadata.
type Document struct {
	ClientSchemaVersion        int                        `json:"clientSchemaVersion,omitempty"`
	ServerSchemaVersion        int                        `json:"serverSchemaVersion,omitempty"`
	ExportedApplication        *ExportedApplication       `json:"exportedApplication,omitempty"`
	DatasourceList             []Datasource               `json:"datasourceList,omitempty"`
	PageList                   []Page                     `json:"pageList,omitempty"`
	ActionList                 []Action                   `json:"actionList,omitempty"`
	ActionCollectionList       []ActionCollection         `json:"actionCollectionList,omitempty"`
	PublishedDefaultPageName   string                     `json:"publishedDefaultPageName,omitempty"`
	UnpublishedDefaultPageName string                     `json:"unpublishedDefaultPageName,omitempty"`
	DecryptedFields            map[string]json.RawMessage `json:"decryptedFields,omitempty"`
	EditModeTheme              json.RawMessage            `json:"editModeTheme,omitempty"`
	PublishedTheme             json.RawMessage            `json:"publishedTheme,omitempty"`
	UpdatedAt                  Instant                    `json:"updatedAt"`
}

// ExportedApplication is the application-level metadata of a Document.
type ExportedApplication struct {
	Name               string            `json:"name"`
	Slug               string            `json:"slug,omitempty"`
	Color              string            `json:"color,omitempty"`
	Icon               string            `json:"icon,omitempty"`
	IsPublic           bool              `json:"isPublic,omitempty"`
	AppIsExample       bool              `json:"appIsExample,omitempty"`
	EvaluationVersion  int               `json:"evaluationVersion,omitempty"`
	ApplicationVersion int               `json:"applicationVersion,omitempty"`
	Pages              []ApplicationPage `json:"pages,omitempty"`
	PublishedPages     []ApplicationPage `json:"publishedPages,omitempty"`
	LastDeployedAt     *Instant          `json:"lastDeployedAt,omitempty"`
}

// ApplicationPage references a page by id.
type ApplicationPage struct {
	ID        string `json:"id"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// Datasource is an exported datasource definition.
type Datasource struct {
	Name                    string          `json:"name"`
	PluginID                string          `json:"pluginId,omitempty"`
	GitSyncID               string          `json:"gitSyncId,omitempty"`
	DatasourceConfiguration json.RawMessage `json:"datasourceConfiguration,omitempty"`
	CreatedAt               *Instant        `json:"createdAt,omitempty"`
}

// Page is an exported page with its edit-mode and published variants.
type Page struct {
	GitSyncID       string          `json:"gitSyncId,omitempty"`
	UnpublishedPage json.RawMessage `json:"unpublishedPage,omitempty"`
	PublishedPage   json.RawMessage `json:"publishedPage,omitempty"`
	DeletedAt       *Instant        `json:"deletedAt,omitempty"`
}

// Action is an exported query or API action.
type Action struct {
	ID                string          `json:"id,omitempty"`
	PluginType        string          `json:"pluginType,omitempty"`
	PluginID          string          `json:"pluginId,omitempty"`
	GitSyncID         string          `json:"gitSyncId,omitempty"`
	UnpublishedAction json.RawMessage `json:"unpublishedAction,omitempty"`
	PublishedAction   json.RawMessage `json:"publishedAction,omitempty"`
	UpdatedAt         *Instant        `json:"updatedAt,omitempty"`
}

// ActionCollection groups JS functions belonging to one page.
type ActionCollection struct {
	ID                    string          `json:"id,omitempty"`
	GitSyncID             string          `json:"gitSyncId,omitempty"`
	UnpublishedCollection json.RawMessage `json:"unpublishedCollection,omitempty"`
	PublishedCollection   json.RawMessage `json:"publishedCollection,omitempty"`
}

// Decode parses a definition document. Empty input and a bare null are
// rejected rather than producing an empty Document.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("definition document is empty")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("definition document is null")
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ApplicationName is the exported application name, or fallback when missing.
func (d *Document) ApplicationName(fallback string) string {
	if d.ExportedApplication != nil {
		if name := strings.TrimSpace(d.ExportedApplication.Name); name != "" {
			return name
		}
	}
	return fallback
}

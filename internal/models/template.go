package models

// TemplateSummary is the catalog's description of one application template.
// Values are fetched fresh on every call and never cached.
type TemplateSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	AppURL      string `json:"appUrl,omitempty"`
	// AppDataURL points at the exported definition document. It is already
	// percent-encoded and must be requested verbatim.
	AppDataURL       string         `json:"appDataUrl,omitempty"`
	GifURL           string         `json:"gifUrl,omitempty"`
	SortPriority     string         `json:"sortPriority,omitempty"`
	ScreenshotURLs   []string       `json:"screenshotUrls,omitempty"`
	Widgets          []string       `json:"widgets,omitempty"`
	Functions        []string       `json:"functions,omitempty"`
	UseCases         []string       `json:"useCases,omitempty"`
	Datasources      []string       `json:"datasources,omitempty"`
	Pages            []TemplatePage `json:"pages,omitempty"`
	MinVersion       string         `json:"minVersion,omitempty"`
	MinVersionPadded string         `json:"minVersionPadded,omitempty"`
	DownloadCount    int64          `json:"downloadCount,omitempty"`
	Active           bool           `json:"active,omitempty"`
	AllowPageImport  bool           `json:"allowPageImport,omitempty"`
}

// TemplatePage names one page bundled in a template.
type TemplatePage struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

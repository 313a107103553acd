package connector

import "context"

// Google Workspace MIME types used to partition the file listing.
const (
	mimeSpreadsheet = "application/vnd.google-apps.spreadsheet"
	mimeForm        = "application/vnd.google-apps.form"
	mimeDocument    = "application/vnd.google-apps.document"
)

// connectGoogleDrive lists non-trashed files and partitions them by MIME
// type into sheets, forms and docs for the dashboard cards.
func (c *Connector) connectGoogleDrive(ctx context.Context, creds Credentials) (Result, error) {
	base := c.baseURL(ProviderGoogleDrive)
	filesURL := base + "/files?q=trashed=false&fields=files(id,name,mimeType,createdTime,modifiedTime,size,webViewLink)"
	headers := map[string]string{
		"Authorization": "Bearer " + creds["access_token"],
	}

	var data struct {
		Files []map[string]any `json:"files"`
	}
	if err := c.doJSON(ctx, "GET", filesURL, headers, nil, &data); err != nil {
		return Result{}, err
	}

	sheets := filterByMime(data.Files, mimeSpreadsheet)
	forms := filterByMime(data.Files, mimeForm)
	docs := filterByMime(data.Files, mimeDocument)

	files := data.Files
	if files == nil {
		files = []map[string]any{}
	}
	return Result{
		HasData:  len(files) > 0,
		DataType: "files",
		Payload: map[string]any{
			"files":  files,
			"sheets": sheets,
			"forms":  forms,
			"docs":   docs,
		},
		Metrics: map[string]any{
			"Total Files": len(files),
			"Sheets":      len(sheets),
			"Forms":       len(forms),
			"Docs":        len(docs),
		},
	}, nil
}

func filterByMime(files []map[string]any, mime string) []map[string]any {
	out := []map[string]any{}
	for _, f := range files {
		if m, _ := f["mimeType"].(string); m == mime {
			out = append(out, f)
		}
	}
	return out
}

package http

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sagarc03/stowfront"
)

var categoryIcons = map[stowfront.Category]string{
	stowfront.CategoryUp:      "arrow-90deg-up",
	stowfront.CategoryFolder:  "folder",
	stowfront.CategoryImage:   "file-image",
	stowfront.CategoryText:    "file-text",
	stowfront.CategoryVideo:   "file-play",
	stowfront.CategoryAudio:   "file-music",
	stowfront.CategoryArchive: "file-zip",
	stowfront.CategoryGeneric: "file",
}

func iconFor(c stowfront.Category) string {
	if icon, ok := categoryIcons[c]; ok {
		return icon
	}
	return "file"
}

var listingTemplate = template.Must(template.New("listing").Funcs(template.FuncMap{
	"icon": iconFor,
}).Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="/s/css/bootstrap.min.css">
    <link rel="stylesheet" href="/s/css/bootstrap-icons.css">
  </head>
  <body class="bg-light">
    <div class="container">
      <div class="py-5 text-center">
        <h2>Directory Listing of {{.Title}}</h2>
        <p class="lead">{{.Prefix}}</p>
      </div>
      <div class="row">
        <div class="col-md-12">
          <table class="table">
            <thead class="thead-light">
              <tr>
                <th scope="col">Name</th>
                <th scope="col">Size</th>
                <th scope="col">Uploaded</th>
              </tr>
            </thead>
            <tbody>
{{- range .Entries}}
              <tr>
                <th scope="row"><a href="{{.Link}}"><i class="bi bi-{{icon .Category}}"></i> {{.Name}}</a></th>
                <td>{{.Size}}</td>
                <td class="date-field">{{.Uploaded}}</td>
              </tr>
{{- end}}
            </tbody>
          </table>
        </div>
      </div>
    </div>
  </body>
</html>
`))

// RenderListing renders a directory page. Output depends only on l.
func RenderListing(l stowfront.Listing) ([]byte, error) {
	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, l); err != nil {
		return nil, fmt.Errorf("render listing: %w", err)
	}
	return buf.Bytes(), nil
}

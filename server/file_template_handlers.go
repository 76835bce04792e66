package server

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/jrsteele09/epic-fhir-client/bulk"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"stateLabel": stateLabel,
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Funcs(templateFuncs).Parse(string(content))
}

func stateLabel(state bulk.State) string {
	switch state {
	case bulk.InProgress:
		return "In Progress"
	case bulk.Completed:
		return "Completed"
	case bulk.Failed:
		return "Failed"
	default:
		return "Not Started"
	}
}

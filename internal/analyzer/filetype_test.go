package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alleneee/docingest/internal/model"
)

func TestDetectFileType(t *testing.T) {
	cases := map[string]model.FileType{
		"report.pdf":        model.FileTypePDF,
		"notes.DOCX":        model.FileTypeDOCX,
		"readme.md":         model.FileTypeMD,
		"readme.markdown":   model.FileTypeMD,
		"plain.txt":         model.FileTypeTXT,
		"page.html":         model.FileTypeHTML,
		"data.csv":          model.FileTypeTable,
		"main.go":           model.FileTypeCode,
		"script.py":         model.FileTypeCode,
		"archive.zip":       model.FileTypeOther,
		"no_extension_here": model.FileTypeOther,
	}
	for path, want := range cases {
		assert.Equal(t, want, DetectFileType(path), "path=%s", path)
	}
}

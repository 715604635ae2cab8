package analyzer

import (
	"path/filepath"
	"strings"

	"github.com/alleneee/docingest/internal/model"
)

// codeExtensions covers the source-file suffixes common enough that the
// analyzer should route them to the code-aware chunker instead of
// falling through to plain text.
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
	".rs": true, ".rb": true, ".php": true, ".cs": true, ".kt": true, ".swift": true,
	".sh": true, ".sql": true, ".yaml": true, ".yml": true, ".json": true, ".toml": true,
}

// DetectFileType maps a file's extension to the FileType the analyzer
// keys its chunk-size table and plan selection on. Detection is
// extension-based, matching how the object this core ingests arrives
// already named by upload or path; content sniffing is left to the
// analyzer's own feature extraction once the bytes are in hand.
func DetectFileType(path string) model.FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return model.FileTypePDF
	case ".docx", ".doc":
		return model.FileTypeDOCX
	case ".md", ".markdown":
		return model.FileTypeMD
	case ".txt":
		return model.FileTypeTXT
	case ".html", ".htm":
		return model.FileTypeHTML
	case ".csv", ".tsv":
		return model.FileTypeTable
	}
	if codeExtensions[ext] {
		return model.FileTypeCode
	}
	return model.FileTypeOther
}

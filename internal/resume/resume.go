// Package resume resolves which attachment, if any, accompanies a send.
package resume

import (
	"os"
	"path/filepath"
	"strings"
)

// Selection types.
const (
	TypeAuto        = "auto"
	TypeSoftware    = "software"
	TypeDataScience = "datascience"
	TypeCustom      = "custom"
	TypeNone        = "none"
)

// Selection is the attachment policy for a run.
type Selection struct {
	Type         string `json:"type"`
	DetectedRole string `json:"detected_role,omitempty"`
	CustomPath   string `json:"custom_path,omitempty"`
}

// FileStatus describes one resume file on disk.
type FileStatus struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Info is a resolved attachment.
type Info struct {
	FileName string `json:"file_name,omitempty"`
	Path     string `json:"path,omitempty"`
	Exists   bool   `json:"exists"`
	Type     string `json:"type"`
}

// Checker locates the configured resume files.
type Checker struct {
	dir             string
	softwareFile    string
	dataScienceFile string
	defaultType     string
}

// NewChecker creates a checker for the given resume directory and file
// names. defaultType is used when a selection is empty or unrecognized.
func NewChecker(dir, softwareFile, dataScienceFile, defaultType string) *Checker {
	if defaultType == "" {
		defaultType = TypeSoftware
	}
	return &Checker{
		dir:             dir,
		softwareFile:    softwareFile,
		dataScienceFile: dataScienceFile,
		defaultType:     defaultType,
	}
}

// Status reports existence and size per resume category.
func (c *Checker) Status() map[string]FileStatus {
	return map[string]FileStatus{
		TypeSoftware:    c.stat(c.softwareFile),
		TypeDataScience: c.stat(c.dataScienceFile),
	}
}

func (c *Checker) stat(name string) FileStatus {
	if name == "" {
		return FileStatus{}
	}
	path := filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return FileStatus{}
	}
	return FileStatus{Exists: true, Path: path, Size: info.Size()}
}

// Resolve maps a selection to the concrete attachment. Type none yields
// no attachment; type auto picks by the detected role; unknown types
// fall back to the configured default.
func (c *Checker) Resolve(sel Selection) Info {
	switch sel.Type {
	case TypeNone:
		return Info{Type: TypeNone}
	case TypeCustom:
		if sel.CustomPath == "" {
			return Info{Type: TypeCustom}
		}
		info, err := os.Stat(sel.CustomPath)
		if err != nil {
			return Info{Type: TypeCustom, FileName: filepath.Base(sel.CustomPath)}
		}
		return Info{
			Type:     TypeCustom,
			FileName: filepath.Base(sel.CustomPath),
			Path:     sel.CustomPath,
			Exists:   info.Mode().IsRegular(),
		}
	case TypeAuto:
		if sel.DetectedRole == TypeDataScience {
			return c.category(TypeDataScience)
		}
		return c.category(TypeSoftware)
	case TypeSoftware, TypeDataScience:
		return c.category(sel.Type)
	default:
		return c.category(c.defaultType)
	}
}

func (c *Checker) category(typ string) Info {
	name := c.softwareFile
	if typ == TypeDataScience {
		name = c.dataScienceFile
	}
	st := c.stat(name)
	return Info{FileName: name, Path: st.Path, Exists: st.Exists, Type: typ}
}

// Role keyword banks for auto-detection.
var (
	softwareKeywords = []string{
		"software engineer", "frontend", "backend", "full stack", "swe",
		"developer", "react", "javascript", "api", "node.js", "web development",
	}
	dataScienceKeywords = []string{
		"data scientist", "ml engineer", "machine learning", "ai engineer",
		"research scientist", "tensorflow", "pytorch", "model", "algorithm", "nlp",
	}
	dataAnalystKeywords = []string{
		"data analyst", "business analyst", "analytics", "bi analyst", "sql",
		"tableau", "dashboard", "reporting", "excel", "power bi",
	}
)

// Detected role values.
const (
	RoleSoftware    = TypeSoftware
	RoleDataScience = TypeDataScience
	RoleDataAnalyst = "dataanalyst"
	RoleUnknown     = "unknown"
)

// DetectRole classifies the target role from the job title and draft
// message text.
func DetectRole(jobTitle, draftMessage string) string {
	text := strings.ToLower(jobTitle + " " + draftMessage)

	for _, kw := range softwareKeywords {
		if strings.Contains(text, kw) {
			return RoleSoftware
		}
	}
	for _, kw := range dataScienceKeywords {
		if strings.Contains(text, kw) {
			return RoleDataScience
		}
	}
	for _, kw := range dataAnalystKeywords {
		if strings.Contains(text, kw) {
			return RoleDataAnalyst
		}
	}
	return RoleUnknown
}

// Package curriculum holds the in-memory data model of a course companion session:
// the uploaded document, the extracted course structure, lessons, the knowledge graph,
// exam questions and the chat transcript.
package curriculum

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultCourseTitle is used when a course structure arrives without a title.
const DefaultCourseTitle = "Untitled Course"

// DefaultModuleTitle is used when a module arrives without a title.
const DefaultModuleTitle = "Untitled Module"

// Document is an uploaded syllabus.
type Document struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`

	fingerprint string
}

// NewDocument returns a document with its fingerprint already computed.
func NewDocument(name, mimeType string, data []byte) Document {
	return Document{Name: name, MimeType: mimeType, Data: data}.Fingerprinted()
}

// Fingerprinted returns a copy of d that remembers its fingerprint. Data must
// not change afterwards.
func (d Document) Fingerprinted() Document {
	if d.fingerprint == "" && !d.Empty() {
		d.fingerprint = digest(d.Data)
	}
	return d
}

// Fingerprint returns a stable hex digest of the document content.
func (d Document) Fingerprint() string {
	if d.fingerprint != "" {
		return d.fingerprint
	}
	return digest(d.Data)
}

func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Empty reports whether the document carries no bytes.
func (d Document) Empty() bool {
	return len(d.Data) == 0
}

// Module is one unit of a course.
type Module struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Topics             []string `json:"topics"`
	LearningObjectives []string `json:"learningObjectives"`
}

// CourseStructure is the outline extracted from a syllabus.
type CourseStructure struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules"`
}

// Module returns the module with the given id.
func (c CourseStructure) Module(id string) (Module, bool) {
	for _, m := range c.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// Depth controls lesson verbosity.
type Depth string

const (
	DepthSummary  Depth = "summary"
	DepthStandard Depth = "standard"
	DepthDeepDive Depth = "deep-dive"
)

// ParseDepth accepts the canonical values and their display labels.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "summary":
		return DepthSummary, nil
	case "standard", "":
		return DepthStandard, nil
	case "deep-dive", "deep dive", "deepdive":
		return DepthDeepDive, nil
	default:
		return "", fmt.Errorf("unknown depth %q", s)
	}
}

// Label is the human-readable name used in prompts.
func (d Depth) Label() string {
	switch d {
	case DepthSummary:
		return "Summary"
	case DepthDeepDive:
		return "Deep-Dive"
	default:
		return "Standard"
	}
}

// LessonContent is generated lesson text for one module at one depth.
type LessonContent struct {
	ModuleID string `json:"module_id"`
	Depth    Depth  `json:"depth"`
	Text     string `json:"text"`
}

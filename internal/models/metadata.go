package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata is the type-specific payload of an entry. The concrete type is
// determined by the entry's ItemType: Code → *CodeMetadata, File/Files →
// *FileMetadata, Link → *LinkMetadata. All other types carry nil.
type Metadata interface {
	metadata()
}

// Language identifies a detected programming language.
type Language struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CodeMetadata describes a Code entry.
type CodeMetadata struct {
	Language *Language `json:"language"`
}

// FileOperation is the clipboard operation of a file list.
type FileOperation string

const (
	FileCopy FileOperation = "COPY"
	FileCut  FileOperation = "CUT"
)

// ParseFileOperation recognizes "copy"/"cut" tokens case-insensitively.
func ParseFileOperation(s string) (FileOperation, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FileCopy):
		return FileCopy, true
	case string(FileCut):
		return FileCut, true
	}
	return "", false
}

// FileMetadata describes a File or Files entry.
type FileMetadata struct {
	Operation FileOperation `json:"operation"`
}

// LinkMetadata describes a Link entry as scraped from the target page.
type LinkMetadata struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
}

func (*CodeMetadata) metadata() {}
func (*FileMetadata) metadata() {}
func (*LinkMetadata) metadata() {}

// MarshalMetadata encodes metadata as JSON. Nil metadata encodes to nil.
func MarshalMetadata(m Metadata) ([]byte, error) {
	switch v := m.(type) {
	case nil:
		return nil, nil
	case *CodeMetadata:
		if v == nil {
			return nil, nil
		}
		return json.Marshal(v)
	case *FileMetadata:
		if v == nil {
			return nil, nil
		}
		return json.Marshal(v)
	case *LinkMetadata:
		if v == nil {
			return nil, nil
		}
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported metadata %T", m)
	}
}

// UnmarshalMetadata decodes JSON metadata according to the item type.
// Empty data, JSON null and types without metadata yield nil.
func UnmarshalMetadata(t ItemType, data []byte) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch t {
	case ItemCode:
		var m CodeMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode code metadata: %w", err)
		}
		return &m, nil
	case ItemFile, ItemFiles:
		var m FileMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode file metadata: %w", err)
		}
		if m.Operation == "" {
			m.Operation = FileCopy
		}
		return &m, nil
	case ItemLink:
		var m LinkMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode link metadata: %w", err)
		}
		return &m, nil
	case ItemText, ItemImage, ItemCharacter, ItemColor:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown item type %q", t)
	}
}

// LinkImage returns the thumbnail URL of link metadata, if any.
func LinkImage(m Metadata) string {
	if l, ok := m.(*LinkMetadata); ok && l != nil && l.Image != nil {
		return *l.Image
	}
	return ""
}

// Package models defines the core data structures used throughout clipvault
// including clipboard entries, their item types, tags and metadata.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemType is the semantic type assigned to a clipboard entry
type ItemType string

const (
	ItemText      ItemType = "Text"
	ItemCode      ItemType = "Code"
	ItemImage     ItemType = "Image"
	ItemFile      ItemType = "File"
	ItemFiles     ItemType = "Files"
	ItemLink      ItemType = "Link"
	ItemCharacter ItemType = "Character"
	ItemColor     ItemType = "Color"
)

// ItemTypes lists every item type in display order.
var ItemTypes = []ItemType{
	ItemText,
	ItemCode,
	ItemImage,
	ItemFile,
	ItemFiles,
	ItemLink,
	ItemCharacter,
	ItemColor,
}

// ParseItemType parses an item type case-insensitively.
func ParseItemType(s string) (ItemType, error) {
	for _, t := range ItemTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

// IsText reports whether entries of this type carry literal text as content.
func (t ItemType) IsText() bool {
	switch t {
	case ItemText, ItemCode, ItemLink, ItemCharacter, ItemColor:
		return true
	}
	return false
}

// Tag is a user-assigned color label. The zero value means untagged.
type Tag string

const (
	TagNone   Tag = ""
	TagBlue   Tag = "blue"
	TagTeal   Tag = "teal"
	TagGreen  Tag = "green"
	TagYellow Tag = "yellow"
	TagOrange Tag = "orange"
	TagRed    Tag = "red"
	TagPink   Tag = "pink"
	TagPurple Tag = "purple"
	TagSlate  Tag = "slate"
)

// Tags lists every assignable tag.
var Tags = []Tag{TagBlue, TagTeal, TagGreen, TagYellow, TagOrange, TagRed, TagPink, TagPurple, TagSlate}

// ParseTag parses a tag label. "" and "none" yield TagNone.
func ParseTag(s string) (Tag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return TagNone, nil
	}
	for _, t := range Tags {
		if string(t) == s {
			return t, nil
		}
	}
	return TagNone, fmt.Errorf("unknown tag %q", s)
}

// Field names a mutable column of an entry
type Field string

const (
	FieldType     Field = "type"
	FieldContent  Field = "content"
	FieldPinned   Field = "pinned"
	FieldTag      Field = "tag"
	FieldDatetime Field = "datetime"
	FieldMetadata Field = "metadata"
	FieldTitle    Field = "title"
)

// IsKey reports whether the field participates in the (type, content) uniqueness key.
func (f Field) IsKey() bool {
	return f == FieldType || f == FieldContent
}

// Entry is one row of clipboard history.
type Entry struct {
	ID       int64     `json:"id"`
	Type     ItemType  `json:"type"`
	Content  string    `json:"content"`
	Pinned   bool      `json:"pinned"`
	Tag      Tag       `json:"tag,omitempty"`
	Datetime time.Time `json:"datetime"`
	Metadata Metadata  `json:"-"`
	Title    string    `json:"title,omitempty"`
}

// Key returns the uniqueness key "{type}:{content}".
func (e *Entry) Key() string {
	return EntryKey(e.Type, e.Content)
}

// EntryKey builds the uniqueness key for a type and content pair.
func EntryKey(t ItemType, content string) string {
	return string(t) + ":" + content
}

// Protected reports whether the entry is exempt from eviction.
func (e *Entry) Protected() bool {
	return e.Pinned || e.Tag != TagNone
}

// Clone returns a copy of the entry. Metadata values are immutable and shared.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// DisplayTitle returns the user title or a label derived from the type.
func (e *Entry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	switch e.Type {
	case ItemCode:
		if m, ok := e.Metadata.(*CodeMetadata); ok && m.Language != nil {
			return m.Language.Name
		}
		return "Code"
	case ItemLink:
		if m, ok := e.Metadata.(*LinkMetadata); ok && m.Title != nil {
			return *m.Title
		}
		return "Link"
	case ItemFiles:
		return fmt.Sprintf("%d Files", strings.Count(e.Content, "\n")+1)
	default:
		return string(e.Type)
	}
}

// ClearPolicy selects which entries survive a clear.
type ClearPolicy int

const (
	ClearAll ClearPolicy = iota
	KeepPinnedAndTagged
	KeepAll
)

var clearPolicyNames = map[ClearPolicy]string{
	ClearAll:            "clear-all",
	KeepPinnedAndTagged: "keep-pinned-and-tagged",
	KeepAll:             "keep-all",
}

func (p ClearPolicy) String() string {
	if s, ok := clearPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ClearPolicy(%d)", int(p))
}

// ParseClearPolicy parses a policy name such as "keep-pinned-and-tagged".
func ParseClearPolicy(s string) (ClearPolicy, error) {
	for p, name := range clearPolicyNames {
		if name == s {
			return p, nil
		}
	}
	return ClearAll, fmt.Errorf("unknown clear policy %q", s)
}

// Removes reports whether the policy removes the given entry.
func (p ClearPolicy) Removes(e *Entry) bool {
	switch p {
	case ClearAll:
		return true
	case KeepPinnedAndTagged:
		return !e.Protected()
	default:
		return false
	}
}

// Now returns the current UTC time at the precision entries are persisted with.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

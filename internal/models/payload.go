package models

import (
	"time"

	"github.com/maruel/ksid"
)

// PayloadKind discriminates the typed payload attached to a node.
type PayloadKind string

const (
	// KindFolder marks a node with no payload attached.
	KindFolder PayloadKind = "folder"
	// KindNote is a markdown note.
	KindNote PayloadKind = "note"
	// KindFile is an uploaded binary backed by the blob store.
	KindFile PayloadKind = "file"
	// KindHTML is a raw HTML document.
	KindHTML PayloadKind = "html"
	// KindCode is a source code snippet.
	KindCode PayloadKind = "code"
	// KindFolderSettings carries display preferences for a folder.
	KindFolderSettings PayloadKind = "folder_settings"
	// KindExternalLink is a bookmark to an external URL.
	KindExternalLink PayloadKind = "external_link"
	// KindChat is a stored conversation transcript.
	KindChat PayloadKind = "chat"
	// KindVisualization is a chart or diagram definition.
	KindVisualization PayloadKind = "visualization"
	// KindTabularData is a structured table document.
	KindTabularData PayloadKind = "tabular_data"
	// KindGoal is a goal-tracking document.
	KindGoal PayloadKind = "goal"
	// KindWorkflow is a workflow definition document.
	KindWorkflow PayloadKind = "workflow"
)

// UploadStatus tracks the two-phase upload lifecycle of a file payload.
// Transitions are one-way per attempt: uploading -> ready or uploading -> failed.
type UploadStatus string

const (
	// UploadStatusUploading means the byte transfer has not been confirmed yet.
	UploadStatusUploading UploadStatus = "uploading"
	// UploadStatusReady means the object was verified in the blob store.
	UploadStatusReady UploadStatus = "ready"
	// UploadStatusFailed means the transfer was reported or detected as failed.
	UploadStatusFailed UploadStatus = "failed"
)

// Payload is the tagged variant attached to a node. Exactly one of the
// variant pointers matching Kind is populated; all pointers nil means folder.
type Payload struct {
	Kind           PayloadKind            `json:"kind"`
	Note           *NotePayload           `json:"note,omitempty"`
	File           *FilePayload           `json:"file,omitempty"`
	HTML           *HTMLPayload           `json:"html,omitempty"`
	Code           *CodePayload           `json:"code,omitempty"`
	Link           *LinkPayload           `json:"link,omitempty"`
	FolderSettings *FolderSettingsPayload `json:"folder_settings,omitempty"`
	Doc            *DocPayload            `json:"doc,omitempty"`
}

// Clone returns a deep copy of the Payload.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	c := *p
	if p.Note != nil {
		n := *p.Note
		c.Note = &n
	}
	if p.File != nil {
		f := *p.File
		c.File = &f
	}
	if p.HTML != nil {
		h := *p.HTML
		c.HTML = &h
	}
	if p.Code != nil {
		cd := *p.Code
		c.Code = &cd
	}
	if p.Link != nil {
		l := *p.Link
		c.Link = &l
	}
	if p.FolderSettings != nil {
		fs := *p.FolderSettings
		c.FolderSettings = &fs
	}
	if p.Doc != nil {
		d := *p.Doc
		c.Doc = &d
	}
	return &c
}

// NotePayload holds markdown note content.
type NotePayload struct {
	NodeID  ksid.ID `json:"node_id"`
	Content string  `json:"content"`
}

// HTMLPayload holds raw HTML content.
type HTMLPayload struct {
	NodeID  ksid.ID `json:"node_id"`
	Content string  `json:"content"`
}

// CodePayload holds a source snippet with its language tag.
type CodePayload struct {
	NodeID   ksid.ID `json:"node_id"`
	Content  string  `json:"content"`
	Language string  `json:"language,omitempty"`
}

// LinkPayload holds an external bookmark.
type LinkPayload struct {
	NodeID      ksid.ID `json:"node_id"`
	URL         string  `json:"url"`
	Description string  `json:"description,omitempty"`
}

// FolderSettingsPayload holds display preferences for a folder node.
type FolderSettingsPayload struct {
	NodeID   ksid.ID `json:"node_id"`
	View     string  `json:"view,omitempty"`      // list, grid, board
	SortMode string  `json:"sort_mode,omitempty"` // manual, title, created
}

// DocPayload is the shared shape for JSON-document payload kinds
// (chat, visualization, tabular_data, goal, workflow). Body is a JSON
// document whose schema is owned by the rendering layer, not this store.
type DocPayload struct {
	NodeID ksid.ID `json:"node_id"`
	Body   string  `json:"body"`
}

// FilePayload holds metadata for an uploaded binary. The bytes themselves
// live in the blob store under StorageKey.
type FilePayload struct {
	NodeID       ksid.ID      `json:"node_id"`
	FileName     string       `json:"file_name"`
	MimeType     string       `json:"mime_type"`
	Size         int64        `json:"size"`
	Checksum     string       `json:"checksum,omitempty"`
	StorageKey   string       `json:"storage_key"`
	Status       UploadStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`

	// Best-effort extracted metadata, absent unless extraction succeeded.
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	ThumbnailKey string  `json:"thumbnail_key,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// IsReady reports whether the payload's object is usable content.
func (f *FilePayload) IsReady() bool {
	return f.Status == UploadStatusReady
}

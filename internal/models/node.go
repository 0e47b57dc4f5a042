// Package models defines the core domain types and structured error handling
// for the hierarchical content store.
//
// A Node is a vertex in a per-owner content tree. Each node carries at most
// one typed payload (note, file, html, ...); a node without a payload is a
// plain folder. Sibling order and the materialized ancestry path are owned by
// the content package and must only be mutated through it.
package models

import (
	"strings"
	"time"

	"github.com/maruel/ksid"
)

// MaxTitleLength is the maximum accepted node title length in characters.
const MaxTitleLength = 255

// Node represents a vertex in the content tree.
type Node struct {
	ID       ksid.ID `json:"id"`
	OwnerID  ksid.ID `json:"owner_id"`
	Title    string  `json:"title"`
	Slug     string  `json:"slug"`
	ParentID ksid.ID `json:"parent_id,omitempty"` // Zero means root.

	// Position is the display-order within the sibling set. After any
	// successful move the touched sibling set is renumbered to 0..n-1.
	Position int `json:"position"`

	// Path is the materialized ancestry path: the slash-delimited encoded IDs
	// of all ancestors, root first. Empty for root nodes.
	Path string `json:"path,omitempty"`

	// Kind is the payload discriminant. KindFolder when no payload is attached.
	Kind PayloadKind `json:"kind"`

	CategoryID  ksid.ID `json:"category_id,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Color       string  `json:"color,omitempty"`
	IsPublished bool    `json:"is_published"`

	// DeletedAt is the soft-delete tombstone. Zero for live nodes.
	DeletedAt time.Time `json:"deleted_at,omitempty"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

// GetID returns the Node's ID.
func (n *Node) GetID() ksid.ID {
	return n.ID
}

// Clone returns a copy of the Node.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// IsDeleted reports whether the node is tombstoned.
func (n *Node) IsDeleted() bool {
	return !n.DeletedAt.IsZero()
}

// IsFolder reports whether the node carries no payload.
func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// Ancestors returns the decoded ancestor IDs from the materialized path,
// root first. An empty path yields nil.
func (n *Node) Ancestors() ([]ksid.ID, error) {
	if n.Path == "" {
		return nil, nil
	}
	parts := strings.Split(n.Path, "/")
	ids := make([]ksid.ID, 0, len(parts))
	for _, p := range parts {
		id, err := ksid.Parse(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ChildPath returns the materialized path a direct child of this node carries.
func (n *Node) ChildPath() string {
	if n.Path == "" {
		return n.ID.String()
	}
	return n.Path + "/" + n.ID.String()
}

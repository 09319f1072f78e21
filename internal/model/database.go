// Defines the durable database state and identifier helpers.

package model

import (
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/maruel/ksid"
	"golang.org/x/crypto/blake2b"
)

// DatabaseData is the complete durable state of one database.
type DatabaseData struct {
	ID     string     `json:"id" jsonschema:"description=Database identifier"`
	Fields []*Field   `json:"fields" jsonschema:"description=Fields in creation order"`
	Views  []*View    `json:"views" jsonschema:"description=Views of the database"`
	Rows   []*Row     `json:"rows" jsonschema:"description=Row bodies"`
	Metas  []*RowMeta `json:"metas,omitempty" jsonschema:"description=Row metadata"`
}

// NewID returns a new sortable identifier for rows, fields, views and settings.
func NewID() string {
	return ksid.NewID().String()
}

// NewRowID returns a new row identifier.
func NewRowID() RowID {
	return RowID(NewID())
}

// rowDocumentNamespace scopes row document UUIDs.
var rowDocumentNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("viewdb.row.document"))

// RowDocumentID returns the stable UUID of the inline document attached to a row.
func RowDocumentID(id RowID) string {
	return uuid.NewSHA1(rowDocumentNamespace, []byte(id)).String()
}

// ContentHash returns a stable digest of v's JSON encoding. Two settings with
// the same content hash are considered the same version.
func ContentHash(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

package fieldtype

import (
	"cmp"
	"slices"
	"strings"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// CellFiles is the media cell key holding the attached files.
const CellFiles = "files"

// MediaTypeOption configures a media field.
type MediaTypeOption struct {
	HideFileNames bool `json:"hide_file_names,omitempty" jsonschema:"description=Show thumbnails only"`
}

// MediaChangeset adds and removes files of a media cell.
type MediaChangeset struct {
	Insert []model.MediaFile `json:"insert,omitempty"`
	Delete []string          `json:"delete,omitempty"`
}

// MediaFiles reads the files of a media cell.
func MediaFiles(cell model.Cell) []model.MediaFile {
	var files []model.MediaFile
	cell.Decode(CellFiles, &files)
	return files
}

type mediaHandler struct{}

func (mediaHandler) Type() model.FieldType { return model.FieldMedia }

func (mediaHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(MediaTypeOption{})
}

func (mediaHandler) CellString(cell model.Cell, _ model.TypeOptionData) string {
	files := MediaFiles(cell)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}

func (mediaHandler) ApplyChangeset(cs any, prev model.Cell, _ model.TypeOptionData) (model.Cell, error) {
	var change MediaChangeset
	switch v := cs.(type) {
	case MediaChangeset:
		change = v
	case *MediaChangeset:
		change = *v
	default:
		return nil, errors.InvalidData("expected a media changeset")
	}
	files := MediaFiles(prev)
	for _, f := range change.Insert {
		if f.ID == "" {
			f.ID = model.NewID()
		}
		if !slices.ContainsFunc(files, func(x model.MediaFile) bool { return x.ID == f.ID }) {
			files = append(files, f)
		}
	}
	files = slices.DeleteFunc(files, func(x model.MediaFile) bool { return slices.Contains(change.Delete, x.ID) })
	if files == nil {
		files = []model.MediaFile{}
	}
	c := model.NewCell(model.FieldMedia)
	c[CellFiles] = files
	return c, nil
}

func (mediaHandler) IsEmpty(cell model.Cell) bool {
	return len(MediaFiles(cell)) == 0
}

func (mediaHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	return cmp.Compare(len(MediaFiles(a)), len(MediaFiles(b)))
}

func (mediaHandler) Match(f *model.Filter, cell model.Cell, _ model.TypeOptionData) bool {
	n := len(MediaFiles(cell))
	switch f.Condition {
	case model.FilterIsEmpty:
		return n == 0
	case model.FilterIsNotEmpty:
		return n > 0
	}
	return false
}

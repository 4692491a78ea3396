package forms

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownDocumentType marks a document type outside the catalog.
	ErrUnknownDocumentType = errors.New("unknown document type")
	// ErrUnknownField marks a field name outside the document's field set.
	ErrUnknownField = errors.New("unknown field")
)

// Checked is an extraction payload after schema checking against one document type.
type Checked struct {
	DocumentType string
	Fields       map[string]string
	Missing      []string
	// Dropped lists extracted keys rejected because the document type does not define them.
	Dropped []string
}

// Check validates an extraction payload for docType.
//
// Extracted values with unknown keys are dropped and reported; blank values are ignored.
// Missing-field names must all be defined by the document type; duplicates keep their first
// position, and a field that was also extracted is removed from the missing list.
func (c *Catalog) Check(docType string, extracted map[string]string, missing []string) (Checked, error) {
	doc, ok := c.Lookup(docType)
	if !ok {
		return Checked{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, docType)
	}

	out := Checked{
		DocumentType: doc.ID,
		Fields:       make(map[string]string, len(extracted)),
	}
	for key, val := range extracted {
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		if _, ok := doc.Field(key); !ok {
			out.Dropped = append(out.Dropped, key)
			continue
		}
		out.Fields[key] = val
	}
	sort.Strings(out.Dropped)

	seen := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := doc.Field(name); !ok {
			return Checked{}, fmt.Errorf("%w: %q not defined for %s", ErrUnknownField, name, doc.ID)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, filled := out.Fields[name]; filled {
			continue
		}
		out.Missing = append(out.Missing, name)
	}
	return out, nil
}

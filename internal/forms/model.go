package forms

// FieldSpec is the static description of one field of a document type.
// The prompts that apply to a field live in the question bank, keyed by Name.
type FieldSpec struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Help     string `json:"help,omitempty"`
	Required bool   `json:"required"`
}

// DocumentType is one supported legal document and its closed set of fields.
type DocumentType struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSpec `json:"fields"`
}

// Field returns the spec for name.
func (d DocumentType) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields returns required field names in declaration order.
func (d DocumentType) RequiredFields() []string {
	var out []string
	for _, f := range d.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

package forms

import (
	"sort"
	"strings"
)

// Catalog is an immutable lookup of supported document types.
type Catalog struct {
	types map[string]DocumentType
}

// NewCatalog builds a catalog from the given document types. Later duplicates win.
func NewCatalog(docs ...DocumentType) *Catalog {
	c := &Catalog{types: make(map[string]DocumentType, len(docs))}
	for _, d := range docs {
		fields := make([]FieldSpec, len(d.Fields))
		copy(fields, d.Fields)
		d.Fields = fields
		c.types[d.ID] = d
	}
	return c
}

// Default returns the catalog of legal documents the intake flow supports.
func Default() *Catalog {
	return NewCatalog(defaultDocuments()...)
}

// Lookup returns the document type for id.
func (c *Catalog) Lookup(id string) (DocumentType, bool) {
	d, ok := c.types[strings.TrimSpace(id)]
	return d, ok
}

// List returns all document types ordered by ID.
func (c *Catalog) List() []DocumentType {
	out := make([]DocumentType, 0, len(c.types))
	for _, d := range c.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FieldNames returns the union of field names across every document type, sorted.
func (c *Catalog) FieldNames() []string {
	seen := map[string]struct{}{}
	for _, d := range c.types {
		for _, f := range d.Fields {
			seen[f.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Hint returns the human-readable description passed to answer interpretation.
func (c *Catalog) Hint(docType, field string) string {
	if d, ok := c.Lookup(docType); ok {
		if f, ok := d.Field(field); ok && strings.TrimSpace(f.Help) != "" {
			return f.Help
		}
	}
	return "Please provide your " + HumanizeField(field)
}

// HumanizeField renders a field name for display ("new_name" -> "new name").
func HumanizeField(field string) string {
	return strings.ReplaceAll(strings.TrimSpace(field), "_", " ")
}

func defaultDocuments() []DocumentType {
	return []DocumentType{
		{
			ID:          "name_change",
			Title:       "Name Change Affidavit",
			Description: "Apply for a legal name change",
			Fields: []FieldSpec{
				{Name: "applicant_full_name", Label: "Full Name", Help: "Your current full legal name", Required: true},
				{Name: "applicant_age", Label: "Age", Help: "Your age in years", Required: true},
				{Name: "applicant_father_name", Label: "Father's Name", Help: "Your father's full name", Required: true},
				{Name: "current_address", Label: "Current Address", Help: "Your complete residential address with pincode", Required: true},
				{Name: "previous_name", Label: "Previous Name", Help: "Your old/previous name", Required: true},
				{Name: "new_name", Label: "New Name", Help: "Your desired new name", Required: true},
				{Name: "reason", Label: "Reason for Change", Help: "Why you want to change your name", Required: true},
				{Name: "date_of_declaration", Label: "Date of Declaration", Help: "Date of this declaration", Required: true},
				{Name: "place", Label: "Place", Help: "Place where this declaration is made", Required: true},
				{Name: "id_proof_type", Label: "ID Proof Type", Help: "Type of ID proof: Aadhar, Passport, Voter ID or Driving Licence", Required: true},
				{Name: "id_proof_number", Label: "ID Proof Number", Help: "Your ID proof number", Required: true},
			},
		},
		{
			ID:          "property_dispute_simple",
			Title:       "Property Dispute Plaint",
			Description: "File a simple property or land dispute",
			Fields: []FieldSpec{
				{Name: "plaintiff_name", Label: "Plaintiff Name", Help: "Your full legal name", Required: true},
				{Name: "plaintiff_address", Label: "Plaintiff Address", Help: "Your complete address", Required: true},
				{Name: "defendant_name", Label: "Defendant Name", Help: "Full name of the opposite party", Required: true},
				{Name: "defendant_address", Label: "Defendant Address", Help: "Address of the opposite party", Required: true},
				{Name: "property_description", Label: "Property Description", Help: "Location, survey number and boundaries of the property", Required: true},
				{Name: "nature_of_claim", Label: "Nature of Claim", Help: "Type of claim, such as ownership, possession or partition", Required: true},
				{Name: "value_of_claim", Label: "Value of Claim", Help: "Approximate value of the claim in rupees", Required: true},
				{Name: "facts_of_case", Label: "Facts of Case", Help: "What happened, in brief", Required: true},
				{Name: "relief_sought", Label: "Relief Sought", Help: "What you want the court to order", Required: true},
				{Name: "date_of_incident", Label: "Date of Incident", Help: "When the dispute started", Required: false},
				{Name: "evidence_list", Label: "Evidence List", Help: "Documents supporting your claim", Required: false},
				{Name: "verification_declaration", Label: "Verification", Help: "Confirmation that the facts stated are true", Required: true},
			},
		},
		{
			ID:          "traffic_fine_appeal",
			Title:       "Traffic Challan Appeal",
			Description: "Appeal against a traffic challan",
			Fields: []FieldSpec{
				{Name: "appellant_name", Label: "Appellant Name", Help: "Your full legal name", Required: true},
				{Name: "appellant_address", Label: "Appellant Address", Help: "Your complete address with PIN code", Required: true},
				{Name: "challan_number", Label: "Challan Number", Help: "Your challan number", Required: true},
				{Name: "vehicle_number", Label: "Vehicle Number", Help: "Your vehicle registration number", Required: true},
				{Name: "date_of_challan", Label: "Date of Challan", Help: "Date the challan was issued", Required: true},
				{Name: "offence_details", Label: "Offence Details", Help: "Offence mentioned in the challan", Required: true},
				{Name: "explanation", Label: "Your Explanation", Help: "Why the challan should be withdrawn", Required: true},
				{Name: "police_station", Label: "Police Station", Help: "Police station name", Required: false},
				{Name: "attachments", Label: "Attachments", Help: "Supporting documents", Required: false},
			},
		},
		{
			ID:          "mutual_divorce_petition",
			Title:       "Mutual Consent Divorce Petition",
			Description: "Joint petition for divorce by mutual consent",
			Fields: []FieldSpec{
				{Name: "husband_full_name", Label: "Husband's Full Name", Help: "Husband's full legal name", Required: true},
				{Name: "wife_full_name", Label: "Wife's Full Name", Help: "Wife's full legal name", Required: true},
				{Name: "marriage_date", Label: "Marriage Date", Help: "Date of marriage", Required: true},
				{Name: "marriage_place", Label: "Place of Marriage", Help: "Where the marriage took place", Required: true},
				{Name: "residential_address_husband", Label: "Husband's Address", Help: "Husband's current residential address", Required: true},
				{Name: "residential_address_wife", Label: "Wife's Address", Help: "Wife's current residential address", Required: true},
				{Name: "reason_for_divorce", Label: "Reason for Divorce", Help: "Brief reason for seeking divorce", Required: true},
				{Name: "mutual_agreement", Label: "Mutual Agreement", Help: "Confirmation that both parties agree", Required: true},
				{Name: "children", Label: "Children Details", Help: "Names and ages of children, if any", Required: false},
				{Name: "maintenance_terms", Label: "Maintenance Terms", Help: "Agreed maintenance or alimony terms", Required: false},
				{Name: "date_of_affidavit", Label: "Date of Affidavit", Help: "Date of the affidavit", Required: true},
				{Name: "attachments", Label: "Attachments", Help: "Marriage certificate and IDs", Required: true},
			},
		},
		{
			ID:          "affidavit_general",
			Title:       "General Affidavit",
			Description: "Sworn statement for general purposes",
			Fields: []FieldSpec{
				{Name: "deponent_name", Label: "Deponent Name", Help: "Your full legal name", Required: true},
				{Name: "deponent_age", Label: "Age", Help: "Your age in years", Required: true},
				{Name: "deponent_address", Label: "Address", Help: "Your complete address", Required: true},
				{Name: "statement_text", Label: "Statement", Help: "The statement you are declaring, in first person", Required: true},
				{Name: "place_of_sworn", Label: "Place of Sworn", Help: "Where this is sworn", Required: true},
				{Name: "date_of_sworn", Label: "Date of Sworn", Help: "Date this is sworn", Required: true},
				{Name: "notary_name", Label: "Notary Name", Help: "Name of notary public", Required: false},
				{Name: "attachments", Label: "Attachments", Help: "Supporting documents", Required: false},
			},
		},
		{
			ID:          "name_change_gazette",
			Title:       "Name Change Gazette Application",
			Description: "Apply for name change through gazette notification",
			Fields: []FieldSpec{
				{Name: "applicant_full_name", Label: "Current Full Name", Help: "Your current full legal name", Required: true},
				{Name: "new_name", Label: "New Name", Help: "Your desired new name", Required: true},
				{Name: "previous_name", Label: "Previous Name", Help: "Any previous names", Required: true},
				{Name: "reason", Label: "Reason", Help: "Reason for name change", Required: true},
				{Name: "publication_address", Label: "Publication Address", Help: "Address for gazette office", Required: true},
				{Name: "proof_of_publication_fee", Label: "Publication Fee Proof", Help: "Fee payment proof", Required: false},
				{Name: "date_of_application", Label: "Application Date", Help: "Date of application", Required: true},
			},
		},
	}
}

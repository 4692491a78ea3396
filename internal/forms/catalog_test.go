package forms

import (
	"errors"
	"reflect"
	"testing"
)

func TestDefaultCatalogCoversOriginalDocuments(t *testing.T) {
	cat := Default()
	want := []string{
		"affidavit_general",
		"mutual_divorce_petition",
		"name_change",
		"name_change_gazette",
		"property_dispute_simple",
		"traffic_fine_appeal",
	}
	var got []string
	for _, d := range cat.List() {
		got = append(got, d.ID)
		if len(d.RequiredFields()) == 0 {
			t.Fatalf("%s has no required fields", d.ID)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	cat := Default()

	tests := []struct {
		name        string
		docType     string
		extracted   map[string]string
		missing     []string
		wantFields  map[string]string
		wantMissing []string
		wantDropped []string
		wantErr     error
	}{
		{
			name:        "clean payload",
			docType:     "name_change",
			extracted:   map[string]string{"applicant_full_name": "Ravi"},
			missing:     []string{"new_name", "reason"},
			wantFields:  map[string]string{"applicant_full_name": "Ravi"},
			wantMissing: []string{"new_name", "reason"},
		},
		{
			name:        "unknown extracted key dropped",
			docType:     "name_change",
			extracted:   map[string]string{"applicant_full_name": "Ravi", "favourite_colour": "blue"},
			missing:     []string{"reason"},
			wantFields:  map[string]string{"applicant_full_name": "Ravi"},
			wantMissing: []string{"reason"},
			wantDropped: []string{"favourite_colour"},
		},
		{
			name:        "extracted value wins over missing entry",
			docType:     "name_change",
			extracted:   map[string]string{"new_name": "Ravi Kumar"},
			missing:     []string{"new_name", "reason", "reason"},
			wantFields:  map[string]string{"new_name": "Ravi Kumar"},
			wantMissing: []string{"reason"},
		},
		{
			name:        "blank values ignored",
			docType:     "traffic_fine_appeal",
			extracted:   map[string]string{"challan_number": "  "},
			missing:     []string{" challan_number ", ""},
			wantFields:  map[string]string{},
			wantMissing: []string{"challan_number"},
		},
		{
			name:    "unknown document type",
			docType: "passport_renewal",
			wantErr: ErrUnknownDocumentType,
		},
		{
			name:    "unknown missing field",
			docType: "name_change",
			missing: []string{"vehicle_number"},
			wantErr: ErrUnknownField,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := cat.Check(tt.docType, tt.extracted, tt.missing)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if !reflect.DeepEqual(got.Fields, tt.wantFields) {
				t.Fatalf("fields = %v, want %v", got.Fields, tt.wantFields)
			}
			if !reflect.DeepEqual(got.Missing, tt.wantMissing) {
				t.Fatalf("missing = %v, want %v", got.Missing, tt.wantMissing)
			}
			if !reflect.DeepEqual(got.Dropped, tt.wantDropped) {
				t.Fatalf("dropped = %v, want %v", got.Dropped, tt.wantDropped)
			}
		})
	}
}

func TestHint(t *testing.T) {
	cat := Default()
	if got := cat.Hint("name_change", "new_name"); got != "Your desired new name" {
		t.Fatalf("unexpected hint %q", got)
	}
	if got := cat.Hint("name_change", "pet_name"); got != "Please provide your pet name" {
		t.Fatalf("unexpected fallback hint %q", got)
	}
}

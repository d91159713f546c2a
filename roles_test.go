package sheetsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		columns []string
		mapping RoleMapping
		want    string
		wantOK  bool
	}{
		{
			name:    "exact candidate order wins over column order",
			columns: []string{"visa", "visa_type", "visa_status"},
			mapping: VisaRole,
			want:    "visa_status",
			wantOK:  true,
		},
		{
			name:    "case-insensitive match",
			columns: []string{"student_id", "Visa_Status"},
			mapping: VisaRole,
			want:    "Visa_Status",
			wantOK:  true,
		},
		{
			name:    "exact beats case-insensitive",
			columns: []string{"VISA_STATUS", "visa_type"},
			mapping: VisaRole,
			want:    "visa_type",
			wantOK:  true,
		},
		{
			name:    "token match",
			columns: []string{"Student ID", "Visa Type"},
			mapping: VisaRole,
			want:    "Visa Type",
			wantOK:  true,
		},
		{
			name:    "expiry tokens",
			columns: []string{"offer_id", "date_offer_expires"},
			mapping: ExpiryRole,
			want:    "date_offer_expires",
			wantOK:  true,
		},
		{
			name:    "no match",
			columns: []string{"offer_id", "status"},
			mapping: DeferredRole,
			wantOK:  false,
		},
		{
			name:    "empty schema",
			mapping: IntakeRole,
			wantOK:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ResolveRole(tt.columns, tt.mapping)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

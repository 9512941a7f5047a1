package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *time.Time
		wantErr bool
	}{
		{"day", `"2024-03-01"`, ptrTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), false},
		{"rfc3339", `"2024-03-01T10:00:00+02:00"`, ptrTime(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)), false},
		{"null", `null`, nil, false},
		{"empty", `""`, nil, false},
		{"garbage", `"01/03/2024"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := d.Ptr()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got))
		})
	}
}

func TestRawPOUploadRequest_ToInput(t *testing.T) {
	body := `{
		"uploaded_by": "alice",
		"rows": [
			{"po_number": "4500001", "po_line_no": 1, "site_code": "NE-001", "unit_price": "10.5",
			 "requested_qty": "3", "publish_date": "2024-01-15", "payment_terms": "AC1 80 | PAC 20"},
			{"po_number": "4500002", "unit_price": null}
		]
	}`

	var req RawPOUploadRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	in := req.ToInput()
	assert.Equal(t, "alice", in.UploadedBy)
	require.Len(t, in.Lines, 2)

	first := in.Lines[0]
	assert.Equal(t, "4500001", first.PONumber)
	require.NotNil(t, first.LineNo)
	assert.Equal(t, 1, *first.LineNo)
	assert.True(t, first.UnitPrice.Valid)
	assert.Equal(t, "10.5", first.UnitPrice.Decimal.String())
	require.NotNil(t, first.PublishDate)
	assert.Equal(t, "AC1 80 | PAC 20", first.PaymentTermLabel)

	second := in.Lines[1]
	assert.Nil(t, second.LineNo)
	assert.False(t, second.UnitPrice.Valid)
	assert.Nil(t, second.PublishDate)
}

func TestRawAcceptanceUploadRequest_ToInput(t *testing.T) {
	body := `{"rows": [{"po_number": "4500001", "po_line_no": 1, "shipment_no": 2,
		"accepted_qty": 4, "processed_at": "2024-02-01"}]}`

	var req RawAcceptanceUploadRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	in := req.ToInput()
	require.Len(t, in.Lines, 1)
	line := in.Lines[0]
	require.NotNil(t, line.ShipmentNo)
	assert.Equal(t, 2, *line.ShipmentNo)
	assert.Equal(t, "4", line.AcceptedQty.Decimal.String())
	require.NotNil(t, line.ProcessedAt)
	assert.Equal(t, 2024, line.ProcessedAt.Year())
}

func ptrTime(t time.Time) *time.Time { return &t }

package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"Transportation of materials to site", CategoryTransportation},
		{"Freight charges", CategoryTransportation},
		{"TSSR site survey", CategorySurvey},
		{"Site Engineer - monthly", CategorySiteEngineer},
		{"RAN installation service", CategoryService},
		{"Zone 3 support", CategoryService},
		{"Antenna 4T4R", CategoryTBD},
		{"", CategoryTBD},
		{"   ", CategoryTBD},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.description))
		})
	}
}

package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListing_ListedOn(t *testing.T) {
	delisted := d("2020-06-30")
	tests := []struct {
		name    string
		listing Listing
		date    string
		want    bool
	}{
		{"before listing", Listing{Ticker: "A", ListDate: d("2019-01-02")}, "2018-12-28", false},
		{"listing day", Listing{Ticker: "A", ListDate: d("2019-01-02")}, "2019-01-02", true},
		{"active", Listing{Ticker: "A", ListDate: d("2019-01-02")}, "2024-01-02", true},
		{"before delisting", Listing{Ticker: "B", ListDate: d("2010-01-04"), DelistDate: &delisted}, "2020-06-29", true},
		{"delisting day", Listing{Ticker: "B", ListDate: d("2010-01-04"), DelistDate: &delisted}, "2020-06-30", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.listing.ListedOn(d(tt.date)))
		})
	}
}

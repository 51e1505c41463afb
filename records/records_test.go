// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2026  The seehuhn.de/go/invoice authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package records

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/invoice"
)

func TestDecode(t *testing.T) {
	in := `[
  {
    "date": "2024-01-15",
    "invoiceNumber": "536733",
    "supplierName": "ABC Services",
    "description": "Consulting services",
    "amount": "Rs 5,000.00",
    "quantity": 2,
    "vat": "Rs 900.00",
    "total": "Rs 5900.00"
  },
  {
    "invoiceNumber": 236323,
    "supplierName": "XYZ Corp",
    "amount": 1000,
    "vat": "$200.00",
    "total": "€ 1.200,5"
  }
]`
	got, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []invoice.Record{
		{
			InvoiceNumber: "536733",
			Date:          "2024-01-15",
			SupplierName:  "ABC Services",
			Description:   "Consulting services",
			Amount:        5000,
			Quantity:      2,
			VAT:           900,
			Total:         5900,
		},
		{
			InvoiceNumber: "236323",
			SupplierName:  "XYZ Corp",
			Amount:        1000,
			Quantity:      1,
			VAT:           200,
			Total:         1.2005,
		},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("unexpected records (-want +got):\n%s", d)
	}
}

func TestDecodeSingle(t *testing.T) {
	got, err := Decode(strings.NewReader(`{"supplierName": "Solo", "quantity": "0", "total": null}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []invoice.Record{{SupplierName: "Solo", Quantity: 1}}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("unexpected records (-want +got):\n%s", d)
	}
}

func TestDecodeNormalise(t *testing.T) {
	got, err := Decode(strings.NewReader(`[{"supplierName": "Socie\u0301te\u0301"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].SupplierName != "Soci\u00e9t\u00e9" {
		t.Errorf("supplier name not normalised: %+q", got[0].SupplierName)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"42",
		`"text"`,
		`[{"supplierName": "unterminated`,
		`[{"supplierName": {"nested": 1}}]`,
	} {
		_, err := Decode(strings.NewReader(in))
		if err == nil {
			t.Errorf("%q: expected an error", in)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"12", 12},
		{"Rs 5000.00", 5000},
		{"Rs5,000.50", 5000.5},
		{"$1200.00", 1200},
		{"₹ 1,23,456", 123456},
		{"£-3.5", -3.5},
		{"€.25", 0.25},
		{"1e3", 1000},
		{"12.5 USD", 12.5},
		{"USD 12.5", 0},
		{"abc", 0},
		{"1.2.3", 1.2},
	}
	for _, c := range cases {
		got := ParseAmount(c.in)
		if got != c.want {
			t.Errorf("ParseAmount(%q) = %g, want %g", c.in, got, c.want)
		}
	}

	if x := ParseAmount("Infinity"); !math.IsInf(x, 1) {
		t.Errorf("ParseAmount(Infinity) = %g", x)
	}
}

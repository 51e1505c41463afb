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

package invoice

import (
	"testing"
	"time"
)

func TestSuggestFilename(t *testing.T) {
	may := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		supplier string
		want     string
	}{
		{"ABC Corp / Ltd.", "ABC_Corp_Ltd_May_2025.pdf"},
		{"  Acme\tTrading  Co ", "Acme_Trading_Co_May_2025.pdf"},
		{"Café-Zürich", "Caf-Zrich_May_2025.pdf"},
		{"", "Unknown_May_2025.pdf"},
		{"///", "Unknown_May_2025.pdf"},
		{"snake_case name", "snake_case_name_May_2025.pdf"},
	}
	for _, c := range cases {
		got := SuggestFilename(c.supplier, may)
		if got != c.want {
			t.Errorf("SuggestFilename(%q) = %q, want %q", c.supplier, got, c.want)
		}
	}
}

func TestPreviousMonth(t *testing.T) {
	loc := time.FixedZone("MUT", 4*60*60)
	cases := []struct {
		now     time.Time
		month   string
		lastDay string
	}{
		{time.Date(2025, time.June, 15, 10, 0, 0, 0, loc), "May 25", "31/05/2025"},
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, loc), "Dec 24", "31/12/2024"},
		{time.Date(2024, time.March, 31, 23, 59, 0, 0, loc), "Feb 24", "29/02/2024"},
		{time.Date(2025, time.March, 1, 0, 0, 0, 0, loc), "Feb 25", "28/02/2025"},
	}
	for _, c := range cases {
		if got := PreviousMonth(c.now).Format("Jan 06"); got != c.month {
			t.Errorf("PreviousMonth(%s) = %s, want %s", c.now, got, c.month)
		}
		if got := LastDayOfPreviousMonth(c.now).Format("02/01/2006"); got != c.lastDay {
			t.Errorf("LastDayOfPreviousMonth(%s) = %s, want %s", c.now, got, c.lastDay)
		}
		if PreviousMonth(c.now).Location() != loc {
			t.Error("location not preserved")
		}
	}
}

func TestGrandTotal(t *testing.T) {
	records := []Record{{Total: 1234.5}, {Total: 0.25}, {Total: -100}}
	if got := GrandTotal(records); got != 1134.75 {
		t.Errorf("GrandTotal = %g", got)
	}
	if got := GrandTotal(nil); got != 0 {
		t.Errorf("GrandTotal(nil) = %g", got)
	}
	if Client(nil) != "" || Client(records[:1]) != "" {
		t.Error("unexpected client")
	}
}

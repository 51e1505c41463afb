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

// Package records reads invoice records from their JSON representation.
//
// The input is the output of the invoice extraction step: a JSON array of
// objects (or a single object) with the keys invoiceNumber, date,
// supplierName, description, amount, quantity, vat and total.  Monetary
// values may be given either as JSON numbers or as strings which include a
// currency symbol, for example "Rs 5,000.00" or "$1200.00".
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"seehuhn.de/go/invoice"
)

// Decode reads a list of invoice records from r.
//
// Missing text fields are left empty and are normalised to NFC otherwise.
// Numeric fields which are missing or cannot be parsed are set to 0,
// except for the quantity where missing, unparsable and zero values all
// give 1.
func Decode(r io.Reader) ([]invoice.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var raw []rawRecord
	switch {
	case len(data) > 0 && data[0] == '[':
		err = json.Unmarshal(data, &raw)
	case len(data) > 0 && data[0] == '{':
		raw = make([]rawRecord, 1)
		err = json.Unmarshal(data, &raw[0])
	default:
		err = errNotRecords
	}
	if err != nil {
		return nil, fmt.Errorf("invalid invoice records: %w", err)
	}

	res := make([]invoice.Record, len(raw))
	for i, rec := range raw {
		quantity := float64(rec.Quantity)
		if quantity == 0 {
			quantity = 1
		}
		res[i] = invoice.Record{
			InvoiceNumber: string(rec.InvoiceNumber),
			Date:          string(rec.Date),
			SupplierName:  string(rec.SupplierName),
			Description:   string(rec.Description),
			Amount:        float64(rec.Amount),
			Quantity:      quantity,
			VAT:           float64(rec.VAT),
			Total:         float64(rec.Total),
		}
	}
	return res, nil
}

var errNotRecords = errors.New("expected a JSON array or object")

type rawRecord struct {
	InvoiceNumber text   `json:"invoiceNumber"`
	Date          text   `json:"date"`
	SupplierName  text   `json:"supplierName"`
	Description   text   `json:"description"`
	Amount        amount `json:"amount"`
	Quantity      amount `json:"quantity"`
	VAT           amount `json:"vat"`
	Total         amount `json:"total"`
}

// text is a text field.  JSON numbers are kept in their literal form.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err := dec.Decode(&v)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*t = text(norm.NFC.String(v))
	case json.Number:
		*t = text(v.String())
	case bool:
		*t = text(strconv.FormatBool(v))
	case nil:
		*t = ""
	default:
		return fmt.Errorf("unexpected value %s for text field", data)
	}
	return nil
}

// amount is a numeric field, given either as a JSON number or as a string.
// Values which cannot be parsed are set to 0.
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	var v any
	err := json.Unmarshal(data, &v)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*a = amount(v)
	case string:
		*a = amount(ParseAmount(v))
	default:
		*a = 0
	}
	return nil
}

// ParseAmount converts a monetary amount given as a string into a number.
//
// Currency markers ("Rs", "$", "₹", "€", "£"), thousands separators and
// white space are ignored.  The longest prefix of the remaining string
// which forms a decimal number is used.  If no such prefix exists, 0 is
// returned.
func ParseAmount(s string) float64 {
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'R', 's', '$', '₹', '€', '£', ',':
			return -1
		}
		if isSpace(r) {
			return -1
		}
		return r
	}, s)

	prefix := numberPrefix.FindString(s)
	if prefix == "" {
		if strings.HasPrefix(s, "Infinity") || strings.HasPrefix(s, "+Infinity") {
			return math.Inf(1)
		} else if strings.HasPrefix(s, "-Infinity") {
			return math.Inf(-1)
		}
		return 0
	}
	// Out of range values give ±Inf.
	x, _ := strconv.ParseFloat(prefix, 64)
	return x
}

var numberPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', 0xa0, 0x1680, 0x2028, 0x2029,
		0x202f, 0x205f, 0x3000, 0xfeff:
		return true
	}
	return r >= 0x2000 && r <= 0x200a
}

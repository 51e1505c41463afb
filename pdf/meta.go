// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2023  Jochen Voss <voss@seehuhn.de>
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

package pdf

import (
	"errors"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// MetaInfo represents the meta information of a PDF file.
type MetaInfo struct {
	// Version is the PDF version used in this file.
	Version Version

	// The ID of the file.  This is either a slice of two byte slices (the
	// original ID of the file, and the ID of the current version), or nil if
	// the file does not specify an ID.
	ID [][]byte

	// Catalog is the document catalog for this file.
	Catalog *Catalog

	// Info is the document information dictionary for this file.
	// This is nil if the file does not contain a document information
	// dictionary.
	Info *Info
}

// Version represents a version of PDF standard.
type Version int

// PDF versions supported by this library.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

// ParseVersion parses a PDF version string.
func ParseVersion(verString string) (Version, error) {
	switch verString {
	case "1.0":
		return V1_0, nil
	case "1.1":
		return V1_1, nil
	case "1.2":
		return V1_2, nil
	case "1.3":
		return V1_3, nil
	case "1.4":
		return V1_4, nil
	case "1.5":
		return V1_5, nil
	case "1.6":
		return V1_6, nil
	case "1.7":
		return V1_7, nil
	case "2.0":
		return V2_0, nil
	}
	return 0, errVersion
}

// ToString returns the string representation of ver, e.g. "1.7".
// If ver does not correspond to a supported PDF version, an error is
// returned.
func (ver Version) ToString() (string, error) {
	if ver >= V1_0 && ver <= V1_7 {
		return "1." + string([]byte{byte(ver - V1_0 + '0')}), nil
	}
	if ver == V2_0 {
		return "2.0", nil
	}
	return "", errVersion
}

func (ver Version) String() string {
	versionString, err := ver.ToString()
	if err != nil {
		versionString = "pdf.Version(" + strconv.Itoa(int(ver)) + ")"
	}
	return versionString
}

// Catalog represents a PDF Document Catalog.  The only required field in this
// structure is Pages, which specifies the root of the page tree.
//
// The Document Catalog is documented in section 7.7.2 of ISO 32000-2:2020.
type Catalog struct {
	// Version, if set, overrides the version from the file header.
	Version Version

	Pages         Reference
	PageLayout    Name
	PageMode      Name
	Metadata      Reference
	Lang          language.Tag
	OutputIntents Object

	// Other holds all catalog entries not covered by the fields above.
	Other Dict
}

// AsDict converts the catalog to a PDF dictionary.
func (c *Catalog) AsDict() Dict {
	dict := Dict{}
	for key, val := range c.Other {
		dict[key] = val
	}
	dict["Type"] = Name("Catalog")
	dict["Pages"] = c.Pages
	if c.Version != 0 {
		dict["Version"] = Name(c.Version.String())
	}
	if c.PageLayout != "" {
		dict["PageLayout"] = c.PageLayout
	}
	if c.PageMode != "" {
		dict["PageMode"] = c.PageMode
	}
	if c.Metadata != 0 {
		dict["Metadata"] = c.Metadata
	}
	if c.Lang != language.Und {
		dict["Lang"] = TextString(c.Lang.String())
	}
	if c.OutputIntents != nil {
		dict["OutputIntents"] = c.OutputIntents
	}
	return dict
}

// DecodeCatalog converts a catalog dictionary to a [Catalog] structure.
func DecodeCatalog(r Getter, dict Dict) (*Catalog, error) {
	if dict == nil {
		return nil, &MalformedFileError{Err: errors.New("missing document catalog")}
	}
	pages, ok := dict["Pages"].(Reference)
	if !ok {
		return nil, &MalformedFileError{Err: errors.New("missing /Pages in catalog")}
	}
	c := &Catalog{
		Pages:         pages,
		OutputIntents: dict["OutputIntents"],
		Other:         Dict{},
	}
	if v, err := GetName(r, dict["Version"]); err == nil && v != "" {
		c.Version, _ = ParseVersion(string(v))
	}
	c.PageLayout, _ = dict["PageLayout"].(Name)
	c.PageMode, _ = dict["PageMode"].(Name)
	c.Metadata, _ = dict["Metadata"].(Reference)
	if lang, err := GetString(r, dict["Lang"]); err == nil && lang != nil {
		tag, err := language.Parse(lang.AsTextString())
		if err == nil {
			c.Lang = tag
		}
	}
	for key, val := range dict {
		switch key {
		case "Type", "Version", "Pages", "PageLayout", "PageMode", "Metadata", "OutputIntents":
			continue
		case "Lang":
			if c.Lang != language.Und {
				continue
			}
		}
		c.Other[key] = val
	}
	return c, nil
}

// Info represents a PDF Document Information Dictionary.
// All fields in this structure are optional.
//
// The Document Information Dictionary is documented in section
// 14.3.3 of ISO 32000-2:2020.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string

	// Creator gives the name of the application that created the original
	// document, if the document was converted to PDF from another format.
	Creator string

	// Producer gives the name of the application that converted the document,
	// if the document was converted to PDF from another format.
	Producer string

	CreationDate time.Time
	ModDate      time.Time
}

// AsDict converts the Info structure to a PDF dictionary.
func (info *Info) AsDict() Dict {
	dict := Dict{}
	for _, e := range []struct {
		key Name
		val string
	}{
		{"Title", info.Title},
		{"Author", info.Author},
		{"Subject", info.Subject},
		{"Keywords", info.Keywords},
		{"Creator", info.Creator},
		{"Producer", info.Producer},
	} {
		if e.val != "" {
			dict[e.key] = TextString(e.val)
		}
	}
	if !info.CreationDate.IsZero() {
		dict["CreationDate"] = Date(info.CreationDate)
	}
	if !info.ModDate.IsZero() {
		dict["ModDate"] = Date(info.ModDate)
	}
	return dict
}

// DecodeInfo converts a document information dictionary to an [Info]
// structure.  Malformed entries are ignored.
func DecodeInfo(r Getter, dict Dict) *Info {
	info := &Info{}
	text := func(key Name) string {
		s, _ := GetString(r, dict[key])
		return s.AsTextString()
	}
	info.Title = text("Title")
	info.Author = text("Author")
	info.Subject = text("Subject")
	info.Keywords = text("Keywords")
	info.Creator = text("Creator")
	info.Producer = text("Producer")
	if s, err := GetString(r, dict["CreationDate"]); err == nil && s != nil {
		info.CreationDate, _ = s.AsDate()
	}
	if s, err := GetString(r, dict["ModDate"]); err == nil && s != nil {
		info.ModDate, _ = s.AsDate()
	}
	return info
}

// CheckVersion checks whether the PDF file being written has version
// minVersion or later.  If the version is new enough, nil is returned.
// Otherwise a [VersionError] for the given operation is returned.
func CheckVersion(pdf Putter, operation string, minVersion Version) error {
	if pdf.GetMeta().Version >= minVersion {
		return nil
	}
	return &VersionError{Earliest: minVersion, Operation: operation}
}

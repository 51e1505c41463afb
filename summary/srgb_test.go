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

package summary

import (
	"bytes"
	"testing"

	"seehuhn.de/go/icc"
)

func TestSRGBProfile(t *testing.T) {
	data := SRGBProfile()
	p, err := icc.Decode(bytes.Clone(data))
	if err != nil {
		t.Fatal(err)
	}
	if p.Class != icc.DisplayDeviceProfile {
		t.Errorf("wrong class %s", p.Class)
	}
	if p.ColorSpace != icc.RGBSpace || p.ColorSpace.NumComponents() != 3 {
		t.Errorf("wrong colour space %s", p.ColorSpace)
	}
	if p.PCS != icc.PCSXYZSpace {
		t.Errorf("wrong PCS %s", p.PCSName())
	}
	for _, tag := range []icc.TagType{
		icc.ProfileDescription, icc.Copyright, tagWhitePoint,
		tagRedXYZ, tagGreenXYZ, tagBlueXYZ, tagRedTRC, tagGreenTRC, tagBlueTRC,
	} {
		if _, ok := p.TagData[tag]; !ok {
			t.Errorf("missing tag %s", tag)
		}
	}
	cprt, err := p.Copyright()
	if err != nil || len(cprt) != 1 {
		t.Errorf("unexpected copyright %v, %v", cprt, err)
	}

	// the transfer curve is monotonic from 0 to 1
	curve := p.TagData[tagRedTRC]
	prev := -1
	for i := 12; i+1 < len(curve); i += 2 {
		v := int(curve[i])<<8 | int(curve[i+1])
		if v < prev {
			t.Fatalf("curve decreases at entry %d", (i-12)/2)
		}
		prev = v
	}
	if prev != 65535 {
		t.Errorf("curve ends at %d", prev)
	}

	if !bytes.Equal(SRGBProfile(), data) {
		t.Error("profile not deterministic")
	}
}

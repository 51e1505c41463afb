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
	"encoding/binary"
	"math"
	"sync"
	"time"

	"seehuhn.de/go/icc"
)

// Tag signatures of a matrix/TRC display profile.
const (
	tagWhitePoint icc.TagType = 0x77747074 // "wtpt"
	tagRedXYZ     icc.TagType = 0x7258595A // "rXYZ"
	tagGreenXYZ   icc.TagType = 0x6758595A // "gXYZ"
	tagBlueXYZ    icc.TagType = 0x6258595A // "bXYZ"
	tagRedTRC     icc.TagType = 0x72545243 // "rTRC"
	tagGreenTRC   icc.TagType = 0x67545243 // "gTRC"
	tagBlueTRC    icc.TagType = 0x62545243 // "bTRC"
)

// SRGBProfile returns an ICC version 2 display profile for the sRGB colour
// space (IEC 61966-2-1), with primaries adapted to the D50 illuminant.
func SRGBProfile() []byte {
	srgbOnce.Do(func() {
		curve := srgbCurve()
		p := &icc.Profile{
			Version:         icc.Version2_1_0,
			Class:           icc.DisplayDeviceProfile,
			ColorSpace:      icc.RGBSpace,
			PCS:             icc.PCSXYZSpace,
			CreationDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			RenderingIntent: icc.Perceptual,
			TagData: map[icc.TagType][]byte{
				icc.ProfileDescription: textDescription("sRGB IEC61966-2.1"),
				icc.Copyright:          textType("No copyright, use freely"),
				tagWhitePoint:          xyzType(0.9642, 1.0, 0.8249),
				tagRedXYZ:              xyzType(0.4361, 0.2225, 0.0139),
				tagGreenXYZ:            xyzType(0.3851, 0.7169, 0.0971),
				tagBlueXYZ:             xyzType(0.1431, 0.0606, 0.7141),
				tagRedTRC:              curve,
				tagGreenTRC:            curve,
				tagBlueTRC:             curve,
			},
		}
		srgbData = p.Encode()
	})
	return srgbData
}

var (
	srgbOnce sync.Once
	srgbData []byte
)

func textType(s string) []byte {
	res := make([]byte, 8, 8+len(s)+1)
	copy(res, "text")
	res = append(res, s...)
	return append(res, 0)
}

// textDescription encodes an ASCII-only textDescriptionType tag.
func textDescription(s string) []byte {
	res := make([]byte, 12, 12+len(s)+1+4+4+2+1+67)
	copy(res, "desc")
	binary.BigEndian.PutUint32(res[8:], uint32(len(s)+1))
	res = append(res, s...)
	res = append(res, 0)
	// empty Unicode and ScriptCode descriptions
	return append(res, make([]byte, 4+4+2+1+67)...)
}

func xyzType(x, y, z float64) []byte {
	res := make([]byte, 20)
	copy(res, "XYZ ")
	for i, v := range []float64{x, y, z} {
		binary.BigEndian.PutUint32(res[8+4*i:], uint32(int32(math.Round(v*65536))))
	}
	return res
}

// srgbCurve samples the sRGB transfer function as a curveType tag.
func srgbCurve() []byte {
	const n = 1024
	res := make([]byte, 12+2*n)
	copy(res, "curv")
	binary.BigEndian.PutUint32(res[8:], n)
	for i := range n {
		x := float64(i) / (n - 1)
		var y float64
		if x <= 0.04045 {
			y = x / 12.92
		} else {
			y = math.Pow((x+0.055)/1.055, 2.4)
		}
		binary.BigEndian.PutUint16(res[12+2*i:], uint16(math.Round(y*65535)))
	}
	return res
}

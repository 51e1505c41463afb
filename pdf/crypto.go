// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2021  Jochen Voss <voss@seehuhn.de>
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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rc4"
	"errors"
	"fmt"
	"io"
)

// encryptInfo holds the state needed to encrypt or decrypt the strings and
// streams of a PDF file.
type encryptInfo struct {
	sec *stdSecHandler

	strF *cryptFilter // strings
	stmF *cryptFilter // streams

	// UserPermissions lists the operations allowed with user access.
	UserPermissions Perm
}

// parseEncryptDict reads the /Encrypt dictionary of a file.
// Only the standard security handler is supported.
func parseEncryptDict(r Getter, encObj Object, ID [][]byte, readPwd func([]byte, int) string) (*encryptInfo, error) {
	enc, err := GetDict(r, encObj)
	if err != nil {
		return nil, err
	}
	if len(ID) != 2 {
		return nil, &MalformedFileError{Err: errors.New("found /Encrypt but no /ID")}
	}

	filter, err := GetName(r, enc["Filter"])
	if err != nil {
		return nil, err
	}
	if filter != "Standard" {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("unsupported security handler %q", filter),
		}
	}

	V, err := GetInt(r, enc["V"])
	if err != nil {
		return nil, err
	}

	res := &encryptInfo{}
	var keyBytes int
	switch V {
	case 1, 2:
		cf := &cryptFilter{Cipher: cipherRC4, Length: 40}
		if l, ok := enc["Length"].(Integer); ok && V == 2 {
			if l < 40 || l > 128 || l%8 != 0 {
				return nil, &MalformedFileError{
					Err: fmt.Errorf("invalid /Length %d in /Encrypt", l),
				}
			}
			cf.Length = int(l)
		}
		res.strF = cf
		res.stmF = cf
		keyBytes = cf.Length / 8
	case 4, 5:
		CF, _ := enc["CF"].(Dict)
		if name, ok := enc["StmF"].(Name); ok {
			res.stmF, err = getCryptFilter(name, CF)
			if err != nil {
				return nil, &MalformedFileError{Err: err}
			}
		}
		if name, ok := enc["StrF"].(Name); ok {
			res.strF, err = getCryptFilter(name, CF)
			if err != nil {
				return nil, &MalformedFileError{Err: err}
			}
		}
		keyBytes = 16
		if V == 5 {
			keyBytes = 32
		}
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("unsupported encryption version V=%d", V),
		}
	}

	sec, err := openStdSecHandler(enc, int(V), keyBytes, ID[0], readPwd)
	if err != nil {
		return nil, err
	}
	res.sec = sec
	res.UserPermissions = stdSecPToPerm(sec.R, sec.P)

	// authenticate now, so that password errors are reported early
	_, err = sec.GetKey(false)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// newEncryptInfo sets up encryption for a newly written file.
// AES-128 (revision 4) is used for PDF versions before 2.0,
// AES-256 (revision 6) for PDF 2.0.
func newEncryptInfo(v Version, id []byte, userPwd, ownerPwd string, perm Perm) (*encryptInfo, error) {
	var cf *cryptFilter
	var V int
	switch {
	case v >= V2_0:
		cf = &cryptFilter{Cipher: cipherAES, Length: 256}
		V = 5
	case v >= V1_6:
		cf = &cryptFilter{Cipher: cipherAES, Length: 128}
		V = 4
	default:
		return nil, &VersionError{Operation: "AES encryption", Earliest: V1_6}
	}

	sec, err := createStdSecHandler(id, userPwd, ownerPwd, perm, V)
	if err != nil {
		return nil, err
	}
	return &encryptInfo{
		sec:             sec,
		strF:            cf,
		stmF:            cf,
		UserPermissions: perm,
	}, nil
}

// AsDict returns the /Encrypt dictionary for the file.
func (enc *encryptInfo) AsDict() Dict {
	sec := enc.sec
	dict := Dict{
		"Filter": Name("Standard"),
		"R":      Integer(sec.R),
		"O":      String(sec.O),
		"U":      String(sec.U),
		"P":      Integer(int32(sec.P)),
	}
	switch sec.R {
	case 6:
		dict["V"] = Integer(5)
		dict["Length"] = Integer(256)
		dict["CF"] = Dict{
			"StdCF": Dict{"Length": Integer(32), "CFM": Name("AESV3"), "AuthEvent": Name("DocOpen")},
		}
		dict["OE"] = String(sec.OE)
		dict["UE"] = String(sec.UE)
		dict["Perms"] = String(sec.Perms)
	default:
		dict["V"] = Integer(4)
		dict["Length"] = Integer(128)
		dict["CF"] = Dict{
			"StdCF": Dict{"Length": Integer(16), "CFM": Name("AESV2"), "AuthEvent": Name("DocOpen")},
		}
	}
	dict["StmF"] = Name("StdCF")
	dict["StrF"] = Name("StdCF")
	if sec.unencryptedMetaData {
		dict["EncryptMetadata"] = Bool(false)
	}
	return dict
}

// EncryptBytes encrypts a string belonging to the object ref.
// The input is not modified.
func (enc *encryptInfo) EncryptBytes(ref Reference, buf []byte) ([]byte, error) {
	return enc.encrypt(enc.strF, ref, buf)
}

// DecryptBytes decrypts a string belonging to the object ref.
func (enc *encryptInfo) DecryptBytes(ref Reference, buf []byte) ([]byte, error) {
	return enc.decrypt(enc.strF, ref, buf)
}

// EncryptStream encrypts the data of stream ref.
func (enc *encryptInfo) EncryptStream(ref Reference, buf []byte) ([]byte, error) {
	return enc.encrypt(enc.stmF, ref, buf)
}

// DecryptStream decrypts the data of stream ref.
func (enc *encryptInfo) DecryptStream(ref Reference, buf []byte) ([]byte, error) {
	return enc.decrypt(enc.stmF, ref, buf)
}

func (enc *encryptInfo) encrypt(cf *cryptFilter, ref Reference, buf []byte) ([]byte, error) {
	if cf == nil {
		return buf, nil
	}
	key, err := enc.sec.KeyForRef(cf, ref)
	if err != nil {
		return nil, err
	}

	switch cf.Cipher {
	case cipherAES:
		n := len(buf)
		nPad := 16 - n%16
		out := make([]byte, 16+n+nPad) // iv | c(data|padding)
		iv := out[:16]
		_, err = io.ReadFull(rand.Reader, iv)
		if err != nil {
			return nil, err
		}
		copy(out[16:], buf)
		for i := 16 + n; i < len(out); i++ {
			out[i] = byte(nPad)
		}
		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		cipher.NewCBCEncrypter(c, iv).CryptBlocks(out[16:], out[16:])
		return out, nil
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(buf))
		c.XORKeyStream(out, buf)
		return out, nil
	}
}

func (enc *encryptInfo) decrypt(cf *cryptFilter, ref Reference, buf []byte) ([]byte, error) {
	if cf == nil || len(buf) == 0 {
		return buf, nil
	}
	key, err := enc.sec.KeyForRef(cf, ref)
	if err != nil {
		return nil, err
	}

	switch cf.Cipher {
	case cipherAES:
		if len(buf) < 32 || len(buf)%16 != 0 {
			return nil, errCorrupted
		}
		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(buf)-16)
		cipher.NewCBCDecrypter(c, buf[:16]).CryptBlocks(out, buf[16:])
		nPad := int(out[len(out)-1])
		if nPad < 1 || nPad > 16 {
			return nil, errCorrupted
		}
		return out[:len(out)-nPad], nil
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(buf))
		c.XORKeyStream(out, buf)
		return out, nil
	}
}

type cryptFilter struct {
	Cipher cipherType

	// Length is the key length in bits.
	Length int
}

func getCryptFilter(name Name, CF Dict) (*cryptFilter, error) {
	if name == "Identity" {
		return nil, nil
	}
	cfDict, ok := CF[name].(Dict)
	if !ok {
		return nil, fmt.Errorf("crypt filter %q not found", name)
	}

	switch cfDict["CFM"] {
	case Name("V2"):
		length := 128
		if l, ok := cfDict["Length"].(Integer); ok && l >= 5 && l <= 16 {
			length = int(l) * 8
		}
		return &cryptFilter{Cipher: cipherRC4, Length: length}, nil
	case Name("AESV2"):
		return &cryptFilter{Cipher: cipherAES, Length: 128}, nil
	case Name("AESV3"):
		return &cryptFilter{Cipher: cipherAES, Length: 256}, nil
	case Name("None"), nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported crypt filter method %s", Format(cfDict["CFM"]))
}

// cipherType denotes the type of encryption used in (parts of) a PDF file.
type cipherType int

const (
	cipherRC4 cipherType = iota + 1
	cipherAES
)

// Perm describes which operations are permitted when accessing the document
// with User access (but not Owner access).  The user can always view the
// document.
type Perm int

const (
	// PermCopy allows to extract text and graphics.
	PermCopy Perm = 1 << iota

	// PermPrintDegraded allows printing of a low-level representation of the
	// appearance, possibly of degraded quality.
	PermPrintDegraded

	// PermPrint allows printing a faithful representation of the document.
	// This implies PermPrintDegraded.
	PermPrint

	// PermForms allows to fill in form fields.
	PermForms

	// PermAnnotate allows to add or modify text annotations. This implies
	// PermForms.
	PermAnnotate

	// PermAssemble allows to insert, rotate, or delete pages.
	PermAssemble

	// PermModify allows to modify the document.  This implies PermAssemble.
	PermModify

	permNext

	// PermAll gives the user all permissions.
	PermAll = permNext - 1
)

func stdSecPToPerm(R int, P uint32) Perm {
	bit := func(i int) bool { return P&(1<<(i-1)) != 0 }

	perm := PermAll
	switch {
	case !bit(3) && (R == 2 || !bit(12)):
		perm &^= PermPrint | PermPrintDegraded
	case bit(3) && R >= 3 && !bit(12):
		perm &^= PermPrint
	}
	if !bit(4) {
		perm &^= PermModify
		if !bit(11) {
			perm &^= PermAssemble
		}
	}
	if !bit(5) {
		perm &^= PermCopy
	}
	if !bit(6) {
		perm &^= PermAnnotate
		if !bit(9) {
			perm &^= PermForms
		}
	}
	return perm
}

func stdSecPermToP(perm Perm) uint32 {
	forbidden := uint32(3)
	if perm&PermCopy == 0 {
		forbidden |= 1 << (5 - 1)
	}
	if perm&PermPrint == 0 {
		forbidden |= 1 << (12 - 1)
		if perm&PermPrintDegraded == 0 {
			forbidden |= 1 << (3 - 1)
		}
	}
	if perm&PermAnnotate == 0 {
		forbidden |= 1 << (6 - 1)
		if perm&PermForms == 0 {
			forbidden |= 1 << (9 - 1)
		}
	}
	if perm&PermAssemble == 0 {
		forbidden |= 1 << (11 - 1)
	}
	if perm&PermModify == 0 {
		forbidden |= 1 << (4 - 1)
	}
	return ^forbidden
}

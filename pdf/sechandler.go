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
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"

	"github.com/xdg-go/stringprep"
)

// stdSecHandler implements the PDF standard security handler, which
// authenticates the user via a pair of passwords.  The "user password"
// gives access to the contents of the document, the "owner password"
// additionally lifts the permission restrictions.
//
// The standard security handler is described in section 7.6.4 of
// ISO 32000-2:2020.
type stdSecHandler struct {
	// R is the revision of the standard security handler.
	R int

	// ID is the first element of the /ID array in the trailer.
	ID []byte

	O, U      []byte
	OE, UE    []byte
	Perms     []byte
	P         uint32
	keyBytes  int
	readPwd   func([]byte, int) string
	key       []byte
	ownerAuth bool

	// unencryptedMetaData is the negation of /EncryptMetadata, so that
	// the zero value matches the PDF default.
	unencryptedMetaData bool
}

func openStdSecHandler(enc Dict, V, keyBytes int, ID []byte, readPwd func([]byte, int) string) (*stdSecHandler, error) {
	R, ok := enc["R"].(Integer)
	if !ok || R < 2 || R == 5 || R > 6 {
		return nil, &MalformedFileError{Err: errors.New("invalid /Encrypt /R")}
	}
	ouLength := 32
	if R == 6 {
		ouLength = 48
	}

	O, ok := enc["O"].(String)
	if !ok || len(O) < ouLength {
		return nil, &MalformedFileError{Err: errors.New("invalid /Encrypt /O")}
	}
	U, ok := enc["U"].(String)
	if !ok || len(U) < ouLength {
		return nil, &MalformedFileError{Err: errors.New("invalid /Encrypt /U")}
	}
	P, ok := enc["P"].(Integer)
	if !ok {
		return nil, &MalformedFileError{Err: errors.New("invalid /Encrypt /P")}
	}

	encryptMetadata := true
	if b, ok := enc["EncryptMetadata"].(Bool); ok && V >= 4 {
		encryptMetadata = bool(b)
	}

	sec := &stdSecHandler{
		R:        int(R),
		ID:       ID,
		O:        []byte(O[:ouLength]),
		U:        []byte(U[:ouLength]),
		P:        uint32(P),
		keyBytes: keyBytes,
		readPwd:  readPwd,

		unencryptedMetaData: !encryptMetadata,
	}

	if R == 6 {
		OE, ok1 := enc["OE"].(String)
		UE, ok2 := enc["UE"].(String)
		Perms, ok3 := enc["Perms"].(String)
		if !ok1 || !ok2 || !ok3 || len(OE) != 32 || len(UE) != 32 || len(Perms) != 16 {
			return nil, &MalformedFileError{Err: errors.New("invalid /Encrypt dictionary")}
		}
		sec.OE = []byte(OE)
		sec.UE = []byte(UE)
		sec.Perms = []byte(Perms)
	}

	return sec, nil
}

// createStdSecHandler allocates a new, pre-authenticated security handler
// for writing a file.
func createStdSecHandler(id []byte, userPwd, ownerPwd string, perm Perm, V int) (*stdSecHandler, error) {
	if ownerPwd == "" {
		ownerPwd = userPwd
	}

	sec := &stdSecHandler{
		ID:        id,
		P:         stdSecPermToP(perm),
		ownerAuth: true,
	}

	switch V {
	case 4:
		sec.R = 4
		sec.keyBytes = 16
		paddedUserPwd, err := padPasswd(userPwd)
		if err != nil {
			return nil, err
		}
		paddedOwnerPwd, err := padPasswd(ownerPwd)
		if err != nil {
			return nil, err
		}
		sec.O = sec.computeO(paddedUserPwd, paddedOwnerPwd)
		sec.key = sec.computeFileEncryptionKey(paddedUserPwd)
		sec.U = sec.computeU(sec.key)
	case 5:
		sec.R = 6
		sec.keyBytes = 32
		utf8UserPwd, err := utf8Passwd(userPwd)
		if err != nil {
			return nil, err
		}
		utf8OwnerPwd, err := utf8Passwd(ownerPwd)
		if err != nil {
			return nil, err
		}
		sec.key = make([]byte, 32)
		_, err = rand.Read(sec.key)
		if err != nil {
			return nil, err
		}
		sec.U, sec.UE, err = sec.computeUAndUE(utf8UserPwd)
		if err != nil {
			return nil, err
		}
		sec.O, sec.OE, err = sec.computeOAndOE(utf8OwnerPwd)
		if err != nil {
			return nil, err
		}
		sec.Perms = sec.computePerms(sec.key)
	default:
		return nil, errors.New("unsupported encryption version")
	}

	return sec, nil
}

// KeyForRef returns the key used to encrypt strings and streams of
// object ref.
func (sec *stdSecHandler) KeyForRef(cf *cryptFilter, ref Reference) ([]byte, error) {
	key, err := sec.GetKey(false)
	if err != nil {
		return nil, err
	}
	if sec.R >= 5 {
		return key, nil
	}

	h := md5.New()
	h.Write(key)
	num := ref.Number()
	gen := ref.Generation()
	h.Write([]byte{
		byte(num), byte(num >> 8), byte(num >> 16),
		byte(gen), byte(gen >> 8)})
	if cf.Cipher == cipherAES {
		h.Write([]byte("sAlT"))
	}
	l := min(sec.keyBytes+5, 16)
	return h.Sum(nil)[:l], nil
}

// GetKey returns the file encryption key.  Passwords are requested via the
// readPwd callback until authentication succeeds or the callback returns
// the empty string.
func (sec *stdSecHandler) GetKey(needOwner bool) ([]byte, error) {
	if sec.key != nil && (sec.ownerAuth || !needOwner) {
		return sec.key, nil
	}

	passwd := ""
	try := 0
	for {
		if sec.tryPassword(passwd, needOwner) {
			return sec.key, nil
		}

		if sec.readPwd == nil {
			return nil, &AuthenticationError{ID: sec.ID}
		}
		passwd = sec.readPwd(sec.ID, try)
		try++
		if passwd == "" {
			return nil, &AuthenticationError{ID: sec.ID}
		}
	}
}

func (sec *stdSecHandler) tryPassword(passwd string, needOwner bool) bool {
	if sec.R < 6 {
		padded, err := padPasswd(passwd)
		if err != nil {
			return false
		}
		if sec.authenticateOwner(padded) == nil {
			return true
		}
		return !needOwner && sec.authenticateUser(padded) == nil
	}

	prepared, err := utf8Passwd(passwd)
	if err != nil {
		return false
	}
	if sec.authenticateOwner6(prepared) == nil {
		return true
	}
	return !needOwner && sec.authenticateUser6(prepared) == nil
}

// computeFileEncryptionKey implements Algorithm 2 (revisions 2 to 4).
func (sec *stdSecHandler) computeFileEncryptionKey(paddedUserPwd []byte) []byte {
	h := md5.New()
	h.Write(paddedUserPwd)
	h.Write(sec.O)
	h.Write([]byte{
		byte(sec.P), byte(sec.P >> 8), byte(sec.P >> 16), byte(sec.P >> 24)})
	h.Write(sec.ID)
	if sec.unencryptedMetaData && sec.R >= 4 {
		h.Write([]byte{255, 255, 255, 255})
	}
	key := h.Sum(nil)

	if sec.R >= 3 {
		for range 50 {
			h.Reset()
			h.Write(key[:sec.keyBytes])
			key = h.Sum(key[:0])
		}
	}

	return key[:sec.keyBytes]
}

// ownerKey derives the RC4 key used for the /O entry.
func (sec *stdSecHandler) ownerKey(paddedOwnerPwd []byte) []byte {
	h := md5.New()
	h.Write(paddedOwnerPwd)
	sum := h.Sum(nil)
	if sec.R >= 3 {
		for range 50 {
			h.Reset()
			h.Write(sum[:sec.keyBytes])
			sum = h.Sum(sum[:0])
		}
	}
	return sum[:sec.keyBytes]
}

// computeO implements Algorithm 3.
func (sec *stdSecHandler) computeO(paddedUserPwd, paddedOwnerPwd []byte) []byte {
	rc4key := sec.ownerKey(paddedOwnerPwd)

	O := make([]byte, 32)
	c, _ := rc4.NewCipher(rc4key)
	c.XORKeyStream(O, paddedUserPwd)
	if sec.R >= 3 {
		rc4Rounds(O, rc4key, 1, 19)
	}
	return O
}

// rc4Rounds encrypts buf in place, once for every i from first to last,
// using the key XORed with i.
func rc4Rounds(buf, key []byte, first, last int) {
	tmp := make([]byte, len(key))
	step := 1
	if last < first {
		step = -1
	}
	for i := first; ; i += step {
		for j := range tmp {
			tmp[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(tmp)
		c.XORKeyStream(buf, buf)
		if i == last {
			break
		}
	}
}

// computeU implements Algorithms 4 and 5.
func (sec *stdSecHandler) computeU(fileEncryptionKey []byte) []byte {
	U := make([]byte, 32)
	if sec.R == 2 {
		c, _ := rc4.NewCipher(fileEncryptionKey)
		c.XORKeyStream(U, passwdPad)
		return U
	}

	h := md5.New()
	h.Write(passwdPad)
	h.Write(sec.ID)
	U = h.Sum(U[:0])
	c, _ := rc4.NewCipher(fileEncryptionKey)
	c.XORKeyStream(U, U)
	rc4Rounds(U, fileEncryptionKey, 1, 19)

	// the remaining 16 bytes are arbitrary padding
	return append(U[:16], make([]byte, 16)...)
}

// authenticateUser implements Algorithm 6.
func (sec *stdSecHandler) authenticateUser(paddedUserPwd []byte) error {
	key := sec.computeFileEncryptionKey(paddedUserPwd)
	U := sec.computeU(key)
	n := 32
	if sec.R >= 3 {
		n = 16
	}
	if !bytes.Equal(U[:n], sec.U[:n]) {
		return &AuthenticationError{ID: sec.ID}
	}
	sec.key = key
	return nil
}

// authenticateOwner implements Algorithm 7.
func (sec *stdSecHandler) authenticateOwner(paddedOwnerPwd []byte) error {
	key := sec.ownerKey(paddedOwnerPwd)

	buf := make([]byte, 32)
	copy(buf, sec.O)
	if sec.R == 2 {
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(buf, buf)
	} else {
		rc4Rounds(buf, key, 19, 0)
	}

	err := sec.authenticateUser(buf)
	if err != nil {
		return err
	}
	sec.ownerAuth = true
	return nil
}

// slowHash implements Algorithm 2.B, used by revision 6.
func slowHash(passwd, salt, U []byte) []byte {
	h := sha256.New()
	h.Write(passwd)
	h.Write(salt)
	h.Write(U)
	K := h.Sum(nil)

	K1 := make([]byte, 64*(len(passwd)+64+len(U)))
	for i := 0; i < 64 || K1[len(K1)-1] > byte(i-32); i++ {
		K1 = K1[:0]
		for range 64 {
			K1 = append(K1, passwd...)
			K1 = append(K1, K...)
			K1 = append(K1, U...)
		}

		c, _ := aes.NewCipher(K[:16])
		cipher.NewCBCEncrypter(c, K[16:32]).CryptBlocks(K1, K1)

		// (a*256)%3 == a%3, so the big-endian number modulo 3
		// is the sum of the bytes modulo 3.
		var rem int
		for _, b := range K1[:16] {
			rem += int(b)
		}

		var h hash.Hash
		switch rem % 3 {
		case 0:
			h = sha256.New()
		case 1:
			h = sha512.New384()
		case 2:
			h = sha512.New()
		}
		h.Write(K1)
		K = h.Sum(K[:0])
	}

	return K[:32]
}

// computeUAndUE implements Algorithm 8.
func (sec *stdSecHandler) computeUAndUE(utf8UserPwd []byte) ([]byte, []byte, error) {
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, nil, err
	}

	U := append(slowHash(utf8UserPwd, salt[:8], nil), salt...)

	key := slowHash(utf8UserPwd, salt[8:], nil)
	c, _ := aes.NewCipher(key)
	UE := make([]byte, 32)
	cipher.NewCBCEncrypter(c, zero16).CryptBlocks(UE, sec.key)

	return U, UE, nil
}

// computeOAndOE implements Algorithm 9.
func (sec *stdSecHandler) computeOAndOE(utf8OwnerPwd []byte) ([]byte, []byte, error) {
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, nil, err
	}

	O := append(slowHash(utf8OwnerPwd, salt[:8], sec.U), salt...)

	key := slowHash(utf8OwnerPwd, salt[8:], sec.U)
	c, _ := aes.NewCipher(key)
	OE := make([]byte, 32)
	cipher.NewCBCEncrypter(c, zero16).CryptBlocks(OE, sec.key)

	return O, OE, nil
}

// computePerms implements Algorithm 10.
func (sec *stdSecHandler) computePerms(fileEncryptionKey []byte) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, sec.P)
	copy(buf[4:8], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	buf[8] = sec.metadataCode()
	copy(buf[9:12], "adb")
	_, _ = rand.Read(buf[12:16])

	c, _ := aes.NewCipher(fileEncryptionKey)
	c.Encrypt(buf, buf)
	return buf
}

func (sec *stdSecHandler) metadataCode() byte {
	if sec.unencryptedMetaData {
		return 'F'
	}
	return 'T'
}

// authenticateUser6 implements Algorithm 11.
func (sec *stdSecHandler) authenticateUser6(utf8Passwd []byte) error {
	hash := slowHash(utf8Passwd, sec.U[32:40], nil)
	if !bytes.Equal(hash, sec.U[:32]) {
		return &AuthenticationError{ID: sec.ID}
	}
	key := slowHash(utf8Passwd, sec.U[40:48], nil)
	return sec.unwrapKey(key, sec.UE, false)
}

// authenticateOwner6 implements Algorithm 12.
func (sec *stdSecHandler) authenticateOwner6(utf8Passwd []byte) error {
	hash := slowHash(utf8Passwd, sec.O[32:40], sec.U)
	if !bytes.Equal(hash, sec.O[:32]) {
		return &AuthenticationError{ID: sec.ID}
	}
	key := slowHash(utf8Passwd, sec.O[40:48], sec.U)
	return sec.unwrapKey(key, sec.OE, true)
}

func (sec *stdSecHandler) unwrapKey(key, wrapped []byte, owner bool) error {
	c, _ := aes.NewCipher(key)
	fileEncryptionKey := make([]byte, 32)
	cipher.NewCBCDecrypter(c, zero16).CryptBlocks(fileEncryptionKey, wrapped)

	err := sec.checkPerms(fileEncryptionKey)
	if err != nil {
		return err
	}
	sec.key = fileEncryptionKey
	if owner {
		sec.ownerAuth = true
	}
	return nil
}

// checkPerms implements Algorithm 13.
func (sec *stdSecHandler) checkPerms(fileEncryptionKey []byte) error {
	buf := make([]byte, 16)
	c, _ := aes.NewCipher(fileEncryptionKey)
	c.Decrypt(buf, sec.Perms)
	if string(buf[9:12]) != "adb" ||
		binary.LittleEndian.Uint32(buf[:4]) != sec.P ||
		buf[8] != sec.metadataCode() {
		return &AuthenticationError{ID: sec.ID}
	}
	return nil
}

func utf8Passwd(passwd string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(passwd)
	if err != nil {
		return nil, errInvalidPassword
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

// padPasswd returns the password padded to 32 bytes.
func padPasswd(passwd string) ([]byte, error) {
	buf, ok := pdfDocEncode(passwd)
	if !ok {
		return nil, errInvalidPassword
	}

	padded := make([]byte, 32)
	n := copy(padded, buf)
	copy(padded[n:], passwdPad)
	return padded, nil
}

var passwdPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

var zero16 = make([]byte, 16)

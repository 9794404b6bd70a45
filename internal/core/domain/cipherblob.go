package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CipherBlobs travel to durable media in a compact binary frame:
//
//	magic "SENV" | frame version (1) | key version (uint32 BE) |
//	alg length (1) | alg | nonce length (1) | nonce | ciphertext
var blobMagic = []byte("SENV")

const blobFrameVersion = 1

func (b CipherBlob) MarshalBinary() ([]byte, error) {
	if len(b.Algorithm) > 255 {
		return nil, errors.New("algorithm id too long")
	}
	if len(b.Nonce) > 255 {
		return nil, errors.New("nonce too long")
	}

	out := make([]byte, 0, len(blobMagic)+1+4+1+len(b.Algorithm)+1+len(b.Nonce)+len(b.Ciphertext))
	out = append(out, blobMagic...)
	out = append(out, blobFrameVersion)
	out = binary.BigEndian.AppendUint32(out, uint32(b.KeyVersion))
	out = append(out, byte(len(b.Algorithm)))
	out = append(out, b.Algorithm...)
	out = append(out, byte(len(b.Nonce)))
	out = append(out, b.Nonce...)
	out = append(out, b.Ciphertext...)
	return out, nil
}

func (b *CipherBlob) UnmarshalBinary(data []byte) error {
	fail := func(err error) error {
		return WrapError(ErrDecryptionFailed, "decode blob frame", err)
	}

	if len(data) < len(blobMagic)+1+4+1 {
		return fail(errors.New("frame too short"))
	}
	if string(data[:len(blobMagic)]) != string(blobMagic) {
		return fail(errors.New("bad magic"))
	}
	data = data[len(blobMagic):]

	if data[0] != blobFrameVersion {
		return fail(fmt.Errorf("unsupported frame version %d", data[0]))
	}
	data = data[1:]

	keyVersion := binary.BigEndian.Uint32(data[:4])
	data = data[4:]

	algLen := int(data[0])
	data = data[1:]
	if len(data) < algLen+1 {
		return fail(errors.New("truncated algorithm id"))
	}
	alg := string(data[:algLen])
	data = data[algLen:]

	nonceLen := int(data[0])
	data = data[1:]
	if len(data) < nonceLen {
		return fail(errors.New("truncated nonce"))
	}

	b.Algorithm = alg
	b.KeyVersion = int(keyVersion)
	b.Nonce = append([]byte(nil), data[:nonceLen]...)
	b.Ciphertext = append([]byte(nil), data[nonceLen:]...)
	return nil
}

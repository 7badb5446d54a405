package icrypto

import (
	"encoding/binary"
)

const aadKeyFile = "KEYFILE"

// AADKeyFile binds the header of a passphrase-sealed key file to its
// ciphertext. Changing any header field makes the file fail to open.
func AADKeyFile(format string, ver int, kdfTime, kdfMemoryKiB uint32, kdfParallelism uint8, salt []byte) []byte {
	return buildAAD(aadKeyFile, format, ver, kdfTime, kdfMemoryKiB, kdfParallelism, salt)
}

func buildAAD(parts ...any) []byte {
	var res []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			res = appendLenPrefix(res, []byte(v))
		case []byte:
			res = appendLenPrefix(res, v)
		case uint64:
			res = binary.BigEndian.AppendUint64(res, v)
		case uint32:
			res = binary.BigEndian.AppendUint32(res, v)
		case uint8:
			res = append(res, v)
		case int:
			res = binary.BigEndian.AppendUint32(res, uint32(v))
		}
	}
	return res
}

func appendLenPrefix(b, data []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

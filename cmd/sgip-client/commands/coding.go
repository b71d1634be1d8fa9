package commands

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/skycoin/sgip/pkg/sgip"
)

var codings = map[string]uint8{
	"ascii":  sgip.CodingASCII,
	"binary": sgip.CodingBinary,
	"ucs2":   sgip.CodingUCS2,
	"gbk":    sgip.CodingGBK,
}

func textEncoding(coding uint8) encoding.Encoding {
	switch coding {
	case sgip.CodingUCS2:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case sgip.CodingGBK:
		return simplifiedchinese.GBK
	default:
		return nil
	}
}

// encodeContent converts text into message content of the named coding.
// Binary content is given as hex.
func encodeContent(name, text string) (uint8, []byte, error) {
	coding, ok := codings[name]
	if !ok {
		return 0, nil, errors.Errorf("unknown message coding %q", name)
	}
	if coding == sgip.CodingBinary {
		raw, err := hex.DecodeString(text)
		return coding, raw, errors.Wrap(err, "binary content must be hex")
	}
	if enc := textEncoding(coding); enc != nil {
		raw, err := enc.NewEncoder().Bytes([]byte(text))
		return coding, raw, err
	}
	return coding, []byte(text), nil
}

// decodeContent renders message content as text. Binary content is shown
// as hex.
func decodeContent(coding uint8, content []byte) (string, error) {
	if coding == sgip.CodingBinary {
		return hex.EncodeToString(content), nil
	}
	if enc := textEncoding(coding); enc != nil {
		raw, err := enc.NewDecoder().Bytes(content)
		return string(raw), err
	}
	return string(content), nil
}

// stripUDH drops the user data header leading content.
func stripUDH(content []byte) []byte {
	if len(content) == 0 || int(content[0])+1 > len(content) {
		return content
	}
	return content[int(content[0])+1:]
}

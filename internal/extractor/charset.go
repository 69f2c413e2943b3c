package extractor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/unicode/norm"
)

var defaultRepertoire encoding.Encoding = charmap.Windows1252

// encodingByTerm maps SpecificCharacterSet defined terms to decoders.
// See http://dicom.nema.org/medical/dicom/current/output/chtml/part02/sect_D.6.2.html
var encodingByTerm = map[string]encoding.Encoding{
	"ISO_IR 100":      charmap.ISO8859_1,
	"ISO_IR 101":      charmap.ISO8859_2,
	"ISO_IR 109":      charmap.ISO8859_3,
	"ISO_IR 110":      charmap.ISO8859_4,
	"ISO_IR 144":      charmap.ISO8859_5,
	"ISO_IR 127":      charmap.ISO8859_6,
	"ISO_IR 126":      charmap.ISO8859_7,
	"ISO_IR 138":      charmap.ISO8859_8,
	"ISO_IR 148":      charmap.ISO8859_9,
	"ISO_IR 13":       japanese.ShiftJIS,
	"ISO_IR 166":      charmap.Windows874,
	"ISO_IR 192":      encoding.Nop,
	"GB18030":         simplifiedchinese.GB18030,
	"GBK":             simplifiedchinese.GBK,
	"ISO 2022 IR 6":   encoding.Nop,
	"ISO 2022 IR 100": charmap.ISO8859_1,
	"ISO 2022 IR 101": charmap.ISO8859_2,
	"ISO 2022 IR 109": charmap.ISO8859_3,
	"ISO 2022 IR 110": charmap.ISO8859_4,
	"ISO 2022 IR 144": charmap.ISO8859_5,
	"ISO 2022 IR 127": charmap.ISO8859_6,
	"ISO 2022 IR 126": charmap.ISO8859_7,
	"ISO 2022 IR 138": charmap.ISO8859_8,
	"ISO 2022 IR 148": charmap.ISO8859_9,
	"ISO 2022 IR 13":  japanese.ShiftJIS,
	"ISO 2022 IR 166": charmap.Windows874,
	"ISO 2022 IR 87":  japanese.ISO2022JP,
	"ISO 2022 IR 159": japanese.ISO2022JP,
	"ISO 2022 IR 149": korean.EUCKR,
}

func lookupEncoding(term string) encoding.Encoding {
	if enc, ok := encodingByTerm[strings.TrimSpace(term)]; ok {
		return enc
	}
	return defaultRepertoire
}

// decodeText turns a text value into NFC-normalized UTF-8.
// The decoder already converts the character sets it knows; only byte
// sequences it passed through untouched are re-decoded here.
func decodeText(s, term string) string {
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		if decoded, err := lookupEncoding(term).NewDecoder().String(s); err == nil {
			s = decoded
		}
	}
	return norm.NFC.String(s)
}

package services

import (
	"bytes"
	"fmt"
	"strings"
)

// vcfFormatMarker opens every well-formed variant-call file.
const vcfFormatMarker = "##fileformat=VCF"

// mediaTypeVCF is the declared type that triggers the VCF sniff and the
// optional normalization step.
const mediaTypeVCF = "text/vcf"

// allowedMediaTypes is the upload allow-list.
var allowedMediaTypes = map[string]struct{}{
	mediaTypeVCF:               {},
	"text/plain":               {},
	"text/csv":                 {},
	"application/json":         {},
	"application/pdf":          {},
	"application/octet-stream": {},
}

func mediaTypeAllowed(mediaType string) bool {
	_, ok := allowedMediaTypes[mediaType]
	return ok
}

// sniffVCF checks that content declared as a variant-call file actually
// starts with the VCF format marker.
func sniffVCF(content []byte) bool {
	return bytes.HasPrefix(content, []byte(vcfFormatMarker))
}

// normalizeVCF reduces a variant-call file to its data lines in a canonical
// form (header comments stripped, fields tab-normalized), producing a stable
// representation whose hash can be anchored independently of formatting
// noise. Returns an error for files with no data lines.
func normalizeVCF(content []byte) (string, error) {
	var b strings.Builder
	lines := 0

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteByte('\n')
		lines++
	}

	if lines == 0 {
		return "", fmt.Errorf("no variant records")
	}
	return b.String(), nil
}

package fetcher

import (
	"bytes"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const defaultEncoding = "utf-8"

// detectEncoding prefers the charset declared in Content-Type. Without one,
// valid UTF-8 stays utf-8 and anything else is handed to chardet.
func detectEncoding(contentType string, body []byte) string {
	if cs := declaredCharset(contentType); cs != "" {
		return cs
	}
	if len(body) == 0 || utf8.Valid(body) {
		return defaultEncoding
	}

	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Charset == "" {
		return defaultEncoding
	}
	return strings.ToLower(result.Charset)
}

func declaredCharset(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.Trim(strings.TrimSpace(params["charset"]), `"'`))
}

// decodeText converts body from encoding to a UTF-8 string. Unknown labels and
// broken input fall back to the raw bytes.
func decodeText(body []byte, encoding string) string {
	switch encoding {
	case "", "utf-8", "utf8":
		return string(body)
	}

	r, err := charset.NewReaderLabel(encoding, bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(out)
}

// decodeContent undoes Content-Encoding. A lone gzip has already been
// inflated by resty; stacked codings are undone last-applied first. The raw
// body is returned when any step fails.
func decodeContent(contentEncoding string, body []byte) []byte {
	contentEncoding = strings.ToLower(strings.TrimSpace(contentEncoding))
	if contentEncoding == "" || contentEncoding == "identity" || contentEncoding == "gzip" || len(body) == 0 {
		return body
	}

	codings := strings.Split(contentEncoding, ",")
	out := body
	for i := len(codings) - 1; i >= 0; i-- {
		decoded, err := decompress(strings.TrimSpace(codings[i]), out)
		if err != nil {
			return body
		}
		out = decoded
	}
	return out
}

func decompress(coding string, data []byte) ([]byte, error) {
	switch coding {
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)

	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))

	case "zstd":
		decoder, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return io.ReadAll(decoder)

	case "deflate":
		// deflate arrives zlib-wrapped or raw depending on the server
		if reader, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer reader.Close()
			if out, err := io.ReadAll(reader); err == nil {
				return out, nil
			}
		}
		reader := flate.NewReader(bytes.NewReader(data))
		defer reader.Close()
		return io.ReadAll(reader)

	default:
		return data, nil
	}
}

package fetcher

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const plain = "<html><body>compressed body</body></html>"

func brotliBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("brotli write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("brotli close: %v", err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeContent(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	zstdData := enc.EncodeAll([]byte(plain), nil)
	_ = enc.Close()

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	_, _ = zw.Write([]byte(plain))
	_ = zw.Close()

	var fbuf bytes.Buffer
	fw, err := flate.NewWriter(&fbuf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	_, _ = fw.Write([]byte(plain))
	_ = fw.Close()

	cases := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"brotli", "br", brotliBytes(t, plain)},
		{"zstd", "zstd", zstdData},
		{"zlib deflate", "deflate", zbuf.Bytes()},
		{"raw deflate", "deflate", fbuf.Bytes()},
		{"stacked", "br, gzip", gzipBytes(t, brotliBytes(t, plain))},
		{"identity", "identity", []byte(plain)},
		{"unknown coding", "compress-x", []byte(plain)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeContent(tc.encoding, tc.body)
			if string(got) != plain {
				t.Fatalf("decodeContent(%q) = %q", tc.encoding, got)
			}
		})
	}
}

func TestDecodeContentKeepsBodyOnFailure(t *testing.T) {
	body := []byte("not brotli at all")
	if got := decodeContent("br", body); !bytes.Equal(got, body) {
		t.Fatalf("expected raw body back, got %q", got)
	}
}

func TestDetectEncoding(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        []byte
		want        string
	}{
		{"declared", "text/html; charset=Windows-1252", []byte("x"), "windows-1252"},
		{"quoted", `text/html; charset="UTF-8"`, []byte("x"), "utf-8"},
		{"undeclared utf-8", "text/html", []byte("naïve"), "utf-8"},
		{"empty body", "", nil, "utf-8"},
		{"broken content type", "text/html; charset", []byte("x"), "utf-8"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectEncoding(tc.contentType, tc.body); got != tc.want {
				t.Fatalf("detectEncoding(%q) = %q, want %q", tc.contentType, got, tc.want)
			}
		})
	}
}

func TestDetectEncodingSniffsInvalidUTF8(t *testing.T) {
	latin := strings.Repeat("Le café était déjà fermé à l'heure où nous sommes arrivés. ", 8)
	body := []byte(toLatin1(latin))

	got := detectEncoding("text/plain", body)
	if got == "" || got == "utf-8" {
		t.Fatalf("expected a sniffed single-byte charset, got %q", got)
	}
}

func TestDecodeText(t *testing.T) {
	if got := decodeText([]byte{'c', 'a', 'f', 0xe9}, "windows-1252"); got != "café" {
		t.Fatalf("windows-1252 decode = %q", got)
	}
	if got := decodeText([]byte("plain"), "no-such-charset"); got != "plain" {
		t.Fatalf("unknown label should fall back to raw bytes, got %q", got)
	}
	if got := decodeText([]byte("déjà"), "utf-8"); got != "déjà" {
		t.Fatalf("utf-8 passthrough = %q", got)
	}
}

// toLatin1 maps each rune below 256 onto a single byte.
func toLatin1(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 256 {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

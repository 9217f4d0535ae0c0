package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/h2non/filetype"
)

// MaxImageSize 图片大小上限 (5MB)。
const MaxImageSize = 5 * 1024 * 1024

// AllowedTypes lists the accepted image MIME types.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// 错误文案直接展示给用户。
var (
	ErrUnsupportedType = errors.New("请上传 JPG、PNG、GIF 或 WebP 格式的图片")
	ErrTooLarge        = errors.New("图片大小不能超过 5MB")
	ErrProcessFailed   = errors.New("图片处理失败，请重试")
)

// Image is a validated image ready to attach to a message.
type Image struct {
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
	DataURI  string `json:"dataUri"`
}

// Validate checks the declared MIME type and size before reading any content.
func Validate(declaredType string, size int64) error {
	if !allowed(declaredType) {
		return ErrUnsupportedType
	}
	if size > MaxImageSize {
		return ErrTooLarge
	}
	return nil
}

// Process validates, sniffs and encodes an uploaded image. An empty declared
// type is replaced by the sniffed one.
func Process(r io.Reader, declaredType string, size int64) (*Image, error) {
	declaredType = normalizeType(declaredType)
	if declaredType != "" {
		if err := Validate(declaredType, size); err != nil {
			return nil, err
		}
	} else if size > MaxImageSize {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}
	return fromBytes(data, declaredType)
}

// ValidateDataURI checks an inline base64 data URI attached to a message.
func ValidateDataURI(uri string) (*Image, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrProcessFailed
	}

	declared := normalizeType(strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"))
	if !allowed(declared) {
		return nil, ErrUnsupportedType
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > MaxImageSize+2 {
		return nil, ErrTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}
	return fromBytes(data, declared)
}

func fromBytes(data []byte, declaredType string) (*Image, error) {
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrProcessFailed
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, ErrUnsupportedType
	}
	sniffed := kind.MIME.Value
	if !allowed(sniffed) {
		return nil, ErrUnsupportedType
	}
	if declaredType != "" && declaredType != sniffed {
		return nil, ErrUnsupportedType
	}

	var buf bytes.Buffer
	buf.Grow(len("data:;base64,") + len(sniffed) + base64.StdEncoding.EncodedLen(len(data)))
	buf.WriteString("data:")
	buf.WriteString(sniffed)
	buf.WriteString(";base64,")
	buf.WriteString(base64.StdEncoding.EncodeToString(data))

	return &Image{MIMEType: sniffed, Size: int64(len(data)), DataURI: buf.String()}, nil
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "image/jpg" {
		return "image/jpeg"
	}
	return t
}

func allowed(t string) bool {
	return slices.Contains(AllowedTypes, normalizeType(t))
}

// Package canonical 实现文章版本哈希所依赖的规范化 JSON 编码。
//
// 规则：对象键按字节序递归排序，无多余空白，字符串按 UTF-8 原样输出
// （仅转义引号、反斜杠与控制字符），数组保持原有顺序，整数值统一输出为
// 十进制整数。任何偏差都会破坏跨实现的哈希一致性。
package canonical

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"unicode/utf8"
)

// VersionPrefix 标识版本与附件摘要所用的哈希算法。
const VersionPrefix = "sha512t256-"

// ErrUnencodable 表示输入无法被规范化编码。
var ErrUnencodable = errors.New("canonical: value cannot be encoded")

var integerPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)

// Encode 将任意可 JSON 序列化的值编码为规范化字节序列。
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HexDigest 返回 SHA-512 前 256 位的小写十六进制表示。
func HexDigest(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:32])
}

// Digest 返回带算法前缀的摘要，用于版本号与附件摘要。
func Digest(data []byte) string {
	return VersionPrefix + HexDigest(data)
}

// Hash 规范化编码 v 并返回其摘要。
func Hash(v any) (string, error) {
	encoded, err := Encode(v)
	if err != nil {
		return "", err
	}
	return Digest(encoded), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if value {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return writeNumber(buf, value)
	case string:
		writeString(buf, value)
	case []any:
		buf.WriteByte('[')
		for i, item := range value {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, key)
			buf.WriteByte(':')
			if err := writeValue(buf, value[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnencodable, v)
	}
	return nil
}

func writeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if integerPattern.MatchString(s) {
		if s == "-0" {
			s = "0"
		}
		buf.WriteString(s)
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("%w: number %s out of range", ErrUnencodable, s)
	}

	if f == math.Trunc(f) {
		if r, ok := new(big.Rat).SetString(s); ok && r.IsInt() {
			buf.WriteString(r.Num().String())
			return nil
		}
	}

	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				buf.WriteString(`\"`)
			case '\\':
				buf.WriteString(`\\`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			case '\t':
				buf.WriteString(`\t`)
			default:
				if c < 0x20 {
					buf.WriteString(`\u00`)
					buf.WriteByte(hexDigits[c>>4])
					buf.WriteByte(hexDigits[c&0xf])
				} else {
					buf.WriteByte(c)
				}
			}
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteString("�")
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

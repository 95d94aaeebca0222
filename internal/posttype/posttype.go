// Package posttype 解析形如 https://tent.io/types/status/v0#reply 的类型 URI。
package posttype

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidType 表示类型字符串为空或格式错误。
var ErrInvalidType = errors.New("invalid post type")

var versionSegment = regexp.MustCompile(`^(.+)/v([0-9A-Za-z._-]+)$`)

// Type 是拆分后的类型 URI。
type Type struct {
	URI      string
	Base     string
	Version  string
	Fragment string
}

// Parse 拆分类型 URI，Base 去掉了版本段与片段。
// 没有版本段的类型以自身（去掉片段）作为 Base。
func Parse(uri string) (Type, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" || trimmed != uri {
		return Type{}, ErrInvalidType
	}

	t := Type{URI: uri}
	path := uri
	if idx := strings.Index(uri, "#"); idx >= 0 {
		path = uri[:idx]
		t.Fragment = uri[idx+1:]
	}
	if path == "" {
		return Type{}, ErrInvalidType
	}

	if m := versionSegment.FindStringSubmatch(path); m != nil {
		t.Base = m[1]
		t.Version = m[2]
	} else {
		t.Base = path
	}
	return t, nil
}

// Base 返回类型 URI 的基础类型，解析失败时返回空字符串。
func Base(uri string) string {
	t, err := Parse(uri)
	if err != nil {
		return ""
	}
	return t.Base
}

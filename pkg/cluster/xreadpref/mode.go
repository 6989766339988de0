package xreadpref

import (
	"fmt"
	"strings"
)

// Mode 读偏好模式。零值为 Primary。
type Mode uint8

const (
	Primary Mode = iota
	PrimaryPreferred
	Secondary
	SecondaryPreferred
	Nearest
)

var modeNames = [...]string{
	Primary:            "primary",
	PrimaryPreferred:   "primaryPreferred",
	Secondary:          "secondary",
	SecondaryPreferred: "secondaryPreferred",
	Nearest:            "nearest",
}

// ParseMode 解析模式名，大小写不敏感，忽略下划线与连字符，
// 因此 "secondaryPreferred"、"SECONDARY_PREFERRED" 均可。
func ParseMode(s string) (Mode, error) {
	key := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for m, name := range modeNames {
		if strings.ToLower(name) == key {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidReadPref, s)
}

// Valid 报告是否为已知模式。
func (m Mode) Valid() bool {
	return int(m) < len(modeNames)
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
	return modeNames[m]
}

// MarshalText 实现 encoding.TextMarshaler。
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidReadPref, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，配置文件中可直接写模式名。
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

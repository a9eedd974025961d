package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileSource 读取单个文件并用 Decode 解析为 map
type FileSource struct {
	Path     string
	Optional bool
	Format   string
	Decode   func([]byte, any) error
}

func jsonFile(path string, optional bool) *FileSource {
	return &FileSource{Path: path, Optional: optional, Format: "json", Decode: json.Unmarshal}
}

func yamlFile(path string, optional bool) *FileSource {
	return &FileSource{Path: path, Optional: optional, Format: "yaml", Decode: yaml.Unmarshal}
}

func (s *FileSource) Name() string {
	return fmt.Sprintf("%s file %s", s.Format, s.Path)
}

func (s *FileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) && s.Optional {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	if err := s.Decode(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Format, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// EnvSource 把 PREFIX_A_B=v 形式的变量映射为 a:b。
// Read 为空时读取进程环境变量。
type EnvSource struct {
	Prefix string
	Label  string
	Read   func() (map[string]string, error)
}

func dotEnvFile(path, prefix string, optional bool) *EnvSource {
	return &EnvSource{
		Prefix: prefix,
		Label:  "dotenv " + path,
		Read: func() (map[string]string, error) {
			values, err := godotenv.Read(path)
			if errors.Is(err, fs.ErrNotExist) && optional {
				return nil, nil
			}
			return values, err
		},
	}
}

func (s *EnvSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "env " + s.Prefix
}

func (s *EnvSource) Load() (map[string]any, error) {
	read := s.Read
	if read == nil {
		read = processEnv
	}
	values, err := read()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for key, value := range values {
		key, ok := strings.CutPrefix(key, s.Prefix)
		if !ok || key == "" {
			continue
		}
		setNestedValue(out, strings.ReplaceAll(strings.ToLower(key), "_", ":"), value)
	}
	return out, nil
}

func processEnv() (map[string]string, error) {
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			values[k] = v
		}
	}
	return values, nil
}

// MapSource 内存中的配置，加载时复制一份
type MapSource map[string]any

func (MapSource) Name() string { return "memory" }

func (s MapSource) Load() (map[string]any, error) {
	out := make(map[string]any, len(s))
	mergeMaps(out, s)
	return out, nil
}

// setNestedValue 按 a:b:c 写入 value。字符串依次尝试整数、浮点、布尔，
// 路径上已有非 map 的值时放弃写入。
func setNestedValue(data map[string]any, path string, value any) {
	parts := strings.Split(path, ":")
	node := data
	for _, part := range parts[:len(parts)-1] {
		child, exists := node[part]
		if !exists {
			child = make(map[string]any)
			node[part] = child
		}
		m, ok := child.(map[string]any)
		if !ok {
			return
		}
		node = m
	}
	node[parts[len(parts)-1]] = parseScalar(value)
}

func parseScalar(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

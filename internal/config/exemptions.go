package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	tomlExemptionsHeader = regexp.MustCompile(`^\[\s*exemptions\s*\]\s*(#.*)?$`)
	tomlExemptionsInline = regexp.MustCompile(`^exemptions\s*=`)
)

// SaveExemptions 只替换已有配置文件中的豁免部分，其余内容按原文保留，
// 包括注释、键顺序和未展开的 ${VAR} 引用。
func SaveExemptions(path string, ex map[string]int) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败：%w", err)
	}
	format := FormatOf(path)
	var out []byte
	switch format {
	case "yaml":
		out, err = replaceYAMLExemptions(src, ex)
	default:
		out, err = replaceTOMLExemptions(src, ex)
	}
	if err != nil {
		return err
	}
	// 写入前确认结果仍能被加载
	expanded, err := expandEnv(string(out))
	if err != nil {
		return err
	}
	if _, err := Parse(format, []byte(expanded)); err != nil {
		return fmt.Errorf("更新豁免后配置无法解析：%w", err)
	}
	if bytes.Equal(out, src) {
		return nil
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败：%w", err)
	}
	return nil
}

func replaceTOMLExemptions(src []byte, ex map[string]int) ([]byte, error) {
	var b strings.Builder
	inRoot := true
	skipping := false
	for _, ln := range strings.SplitAfter(string(src), "\n") {
		t := strings.TrimSpace(ln)
		if strings.HasPrefix(t, "[") {
			inRoot = false
			skipping = tomlExemptionsHeader.MatchString(t)
		} else if inRoot && tomlExemptionsInline.MatchString(t) {
			continue
		}
		if skipping {
			continue
		}
		b.WriteString(ln)
	}
	body := strings.TrimRight(b.String(), "\n")
	if len(ex) == 0 {
		if body == "" {
			return nil, nil
		}
		return []byte(body + "\n"), nil
	}
	table, err := toml.Marshal(struct {
		Exemptions map[string]int `toml:"exemptions"`
	}{ex})
	if err != nil {
		return nil, fmt.Errorf("序列化豁免失败：%w", err)
	}
	if body != "" {
		body += "\n\n"
	}
	return append([]byte(body), table...), nil
}

func replaceYAMLExemptions(src []byte, ex map[string]int) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("解析配置文件失败：%w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("配置文件顶层必须是映射")
	}

	var val yaml.Node
	if err := val.Encode(ex); err != nil {
		return nil, fmt.Errorf("序列化豁免失败：%w", err)
	}
	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "exemptions" {
			continue
		}
		found = true
		if len(ex) == 0 {
			root.Content = append(root.Content[:i], root.Content[i+2:]...)
		} else {
			root.Content[i+1] = &val
		}
		break
	}
	if !found && len(ex) > 0 {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "exemptions"}, &val)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

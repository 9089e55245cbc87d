package policy

// GenerateBaseline 为当前超限的文件写入恰好等于其行数的豁免。
// 未超限的文件不新增豁免；默认值、规则和已有豁免原样保留。
func GenerateBaseline(existing Config, entries []Entry) Config {
	ex := existing.Exemptions()
	for _, e := range entries {
		if e.Skipped() {
			continue
		}
		p := NormalizePath(e.Path)
		if p == "" {
			continue
		}
		limit, _ := Resolve(existing, p)
		if e.Lines <= limit {
			continue
		}
		// 同一路径重复出现时取最大值，保证每条输入都合规
		if cur, ok := ex[p]; !ok || cur < e.Lines {
			ex[p] = e.Lines
		}
	}
	return existing.withExemptions(ex)
}

func RunBaseline(cfg Config, entries []Entry) Config {
	return GenerateBaseline(cfg, entries)
}

package textutil

import (
	"bytes"

	"github.com/mattn/go-runewidth"
)

const (
	TabWidth = 4
	// SniffSize 是二进制检测读取的前缀长度
	SniffSize = 8 << 10
)

func DetectBinary(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if len(sample) > SniffSize {
		sample = sample[:SniffSize]
	}
	ctl := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b == 9 || b == 10 || b == 13 {
			continue
		}
		if b < 32 || b == 127 {
			ctl++
		}
	}
	ratio := float64(ctl) / float64(len(sample))
	return ratio > 0.30
}

// CountLines 统计 '\n' 的个数；最后一行没有换行符时再加一。空文件为 0 行。
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

func DisplayWidth(s string) int {
	col := 0
	for _, r := range s {
		if r == '\t' {
			col += TabWidth - (col % TabWidth)
			continue
		}
		w := runewidth.RuneWidth(r)
		if w <= 0 {
			w = 1
		}
		col += w
	}
	return col
}

// PadRight 按显示宽度在右侧补空格，宽字符按两列计。
func PadRight(s string, width int) string {
	w := DisplayWidth(s)
	if w >= width {
		return s
	}
	return s + string(bytes.Repeat([]byte{' '}, width-w))
}

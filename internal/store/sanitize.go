package store

import "strings"

var escaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize 先按字符数截断，再把尖括号转义为纯文本；转义可能使结果变长。
func Sanitize(s string, max int) string {
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return escaper.Replace(s)
}

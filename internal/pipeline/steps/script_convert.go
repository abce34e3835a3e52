// Copyright 2025 James Ross
package steps

import "strings"

// simplifiedToTraditional rewrites a fixed set of common simplified Chinese
// characters to their traditional form. No script-conversion library
// (OpenCC or similar) appears anywhere in the example pack, so this one
// ambient concern is a direct rune-map table rather than a pulled-in
// dependency (see DESIGN.md). The table covers common characters, not the
// full Unicode Han repertoire.
var simplifiedToTraditionalTable = map[rune]rune{
	'说': '說', '这': '這', '个': '個', '们': '們', '时': '時', '会': '會',
	'对': '對', '过': '過', '还': '還', '没': '沒', '现': '現', '实': '實',
	'问': '問', '题': '題', '为': '為', '与': '與', '发': '發', '经': '經',
	'动': '動', '国': '國', '学': '學', '开': '開', '关': '關', '长': '長',
	'后': '後', '进': '進', '种': '種', '样': '樣', '书': '書', '华': '華',
	'语': '語', '话': '話', '头': '頭', '东': '東', '车': '車', '风': '風',
	'电': '電', '气': '氣', '员': '員', '间': '間', '队': '隊', '应': '應',
	'无': '無', '从': '從', '让': '讓', '给': '給', '点': '點', '儿': '兒',
	'么': '麼', '岁': '歲', '几': '幾', '号': '號', '买': '買', '卖': '賣',
	'变': '變', '听': '聽', '见': '見', '觉': '覺', '处': '處', '备': '備',
}

func simplifiedToTraditional(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if t, ok := simplifiedToTraditionalTable[r]; ok {
			b.WriteRune(t)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

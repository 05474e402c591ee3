package domain

import "fmt"

// AspectRatio は、アスペクト比のラベルと対応するピクセルサイズを表す値オブジェクトです
type AspectRatio struct {
	Label  string
	Width  int
	Height int
}

// aspectRatios は、--ar で指定可能なアスペクト比の一覧です（表示順）
var aspectRatios = []AspectRatio{
	{"1:1", 1024, 1024},
	{"2:3", 896, 1152},
	{"3:2", 1152, 896},
	{"3:4", 832, 1216},
	{"4:3", 1216, 832},
	{"16:9", 1536, 864},
	{"9:16", 864, 1536},
}

// LookupAspectRatio は、ラベルに対応するアスペクト比を返します
func LookupAspectRatio(label string) (AspectRatio, bool) {
	for _, ar := range aspectRatios {
		if ar.Label == label {
			return ar, true
		}
	}
	return AspectRatio{}, false
}

// AllAspectRatios は、すべてのアスペクト比のコピーを返します
func AllAspectRatios() []AspectRatio {
	result := make([]AspectRatio, len(aspectRatios))
	copy(result, aspectRatios)
	return result
}

// String は "1:1: 1024 x 1024" 形式の文字列を返します
func (a AspectRatio) String() string {
	return fmt.Sprintf("%s: %d x %d", a.Label, a.Width, a.Height)
}

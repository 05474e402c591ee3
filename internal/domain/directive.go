package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// directiveMarker は、プロンプト中のディレクティブの開始記号です
const directiveMarker = "--"

// ディレクティブのエラーメッセージ形式（ユーザーにそのまま表示されます）
const (
	invalidAspectRatioFormat    = "Invalid aspect ratio: %s"
	invalidGuidanceScaleFormat  = "Invalid guidance scale: %s"
	invalidInferenceStepsFormat = "Invalid number of inference steps: %s"
	unknownParameterFormat      = "Unknown parameter: %s"
	negativePromptDisableMarker = "."
)

// Directive は、プロンプトに埋め込まれた (キー, 値) の組です
type Directive struct {
	Key   string
	Value string
}

// DirectiveToken は、元のテキスト中の位置 [Start, End) を持つディレクティブです
type DirectiveToken struct {
	Directive
	Start int
	End   int
}

// ParseOutcome は、ディレクティブ解析の結果です
// Errors が空でない場合、その要求を生成エンジンに渡してはいけません
type ParseOutcome struct {
	CleanPrompt string
	Params      GenerationParameters
	Errors      []string
}

// HasErrors は、解析エラーがあるかどうかを返します
func (o ParseOutcome) HasErrors() bool {
	return len(o.Errors) > 0
}

// directiveApplier は、1つのディレクティブの値を検証してパラメータに適用します
type directiveApplier func(params *GenerationParameters, value string) error

// directiveHandler は、ディレクティブのキーと適用関数の組です
type directiveHandler struct {
	key   string
	apply directiveApplier
}

// directiveHandlers は、サポートしているディレクティブを説明の順に並べたディスパッチテーブルです
var directiveHandlers = []directiveHandler{
	{key: "ar", apply: applyAspectRatio},
	{key: "cfg", apply: applyGuidanceScale},
	{key: "step", apply: applyInferenceSteps},
	{key: "no", apply: applyNegativePrompt},
}

// lookupDirective は、キーに対応する適用関数を返します
func lookupDirective(key string) (directiveApplier, bool) {
	for _, handler := range directiveHandlers {
		if handler.key == key {
			return handler.apply, true
		}
	}
	return nil, false
}

// DirectiveKeys は、サポートしているディレクティブのキー一覧を返します
func DirectiveKeys() []string {
	keys := make([]string, len(directiveHandlers))
	for i, handler := range directiveHandlers {
		keys[i] = handler.key
	}
	return keys
}

// ParsePrompt は、生のプロンプトからディレクティブを取り除き、生成パラメータとエラーを返します
// 副作用はなく、同じ入力には常に同じ結果を返します
func ParsePrompt(raw string) ParseOutcome {
	tokens := TokenizeDirectives(raw)

	outcome := ParseOutcome{
		CleanPrompt: stripTokens(raw, tokens),
		Params:      DefaultGenerationParameters(),
	}

	for _, token := range tokens {
		apply, ok := lookupDirective(token.Key)
		if !ok {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf(unknownParameterFormat, token.Key))
			continue
		}
		if err := apply(&outcome.Params, token.Value); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		}
	}

	return outcome
}

// TokenizeDirectives は、テキストを左から走査して "--キー 値" をすべて抽出します
// 値が英数字・コロン・ピリオド以外の文字に接している場合はディレクティブとみなしません
func TokenizeDirectives(raw string) []DirectiveToken {
	var tokens []DirectiveToken

	for i := 0; i < len(raw); {
		token, ok := scanDirective(raw, i)
		if !ok {
			i++
			continue
		}
		tokens = append(tokens, token)
		i = token.End
	}

	return tokens
}

// scanDirective は、start の位置から始まるディレクティブを1つ読み取ります
func scanDirective(s string, start int) (DirectiveToken, bool) {
	if !strings.HasPrefix(s[start:], directiveMarker) {
		return DirectiveToken{}, false
	}

	pos := start + len(directiveMarker)
	keyStart := pos
	for pos < len(s) && isKeyByte(s[pos]) {
		pos++
	}
	keyEnd := pos
	if keyEnd == keyStart {
		return DirectiveToken{}, false
	}

	// キーと値の区切りは空白1文字
	if pos >= len(s) || !isSpaceByte(s[pos]) {
		return DirectiveToken{}, false
	}
	pos++

	valueStart := pos
	for pos < len(s) && isValueByte(s[pos]) {
		pos++
	}
	if pos == valueStart {
		return DirectiveToken{}, false
	}
	if pos < len(s) && !isSpaceByte(s[pos]) {
		return DirectiveToken{}, false
	}

	return DirectiveToken{
		Directive: Directive{Key: s[keyStart:keyEnd], Value: s[valueStart:pos]},
		Start:     start,
		End:       pos,
	}, true
}

// stripTokens は、トークンの範囲を取り除いて前後の空白をトリムします
func stripTokens(raw string, tokens []DirectiveToken) string {
	if len(tokens) == 0 {
		return strings.TrimSpace(raw)
	}

	var builder strings.Builder
	last := 0
	for _, token := range tokens {
		builder.WriteString(raw[last:token.Start])
		last = token.End
	}
	builder.WriteString(raw[last:])

	return strings.TrimSpace(builder.String())
}

func isKeyByte(c byte) bool {
	return isAlnumByte(c) || c == '_'
}

func isValueByte(c byte) bool {
	return isAlnumByte(c) || c == ':' || c == '.'
}

func isAlnumByte(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func applyAspectRatio(params *GenerationParameters, value string) error {
	ar, ok := LookupAspectRatio(value)
	if !ok {
		return fmt.Errorf(invalidAspectRatioFormat, value)
	}
	params.Width, params.Height = ar.Width, ar.Height
	return nil
}

func applyGuidanceScale(params *GenerationParameters, value string) error {
	scale, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return fmt.Errorf(invalidGuidanceScaleFormat, value)
	}
	params.GuidanceScale = scale
	return nil
}

func applyInferenceSteps(params *GenerationParameters, value string) error {
	steps, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf(invalidInferenceStepsFormat, value)
	}
	params.InferenceSteps = steps
	return nil
}

func applyNegativePrompt(params *GenerationParameters, value string) error {
	if value == negativePromptDisableMarker {
		params.NegativePrompt = ""
		return nil
	}
	params.NegativePrompt = value
	return nil
}

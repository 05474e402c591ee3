package domain

import (
	"fmt"
	"strings"
)

// HelpText は、/help コマンドで表示する固定のヘルプ文を返します
func HelpText() string {
	var builder strings.Builder

	builder.WriteString("How to use the bot:\n")
	builder.WriteString("/imagine {prompt} --no {negative prompt} --cfg {guidance scale} --step {num inference steps} --ar {aspect ratio}\n\n")

	builder.WriteString("**Available parameters:**\n")
	builder.WriteString(fmt.Sprintf(" - `--no`: Set negative prompt. Example: `--no .` to disable negative prompt. Default: %s.\n", DefaultNegativePrompt))
	builder.WriteString(fmt.Sprintf(" - `--cfg`: Set guidance scale. Default: %g\n", DefaultGuidanceScale))
	builder.WriteString(fmt.Sprintf(" - `--step`: Set number of inference steps. Default: %d\n", DefaultInferenceSteps))
	builder.WriteString(fmt.Sprintf(" - `--ar`: Set aspect ratio. Example: `--ar 1:1`. Default: %d x %d\n\n", DefaultWidth, DefaultHeight))

	builder.WriteString("**Supported Aspect Ratios:**\n")
	for _, ar := range AllAspectRatios() {
		builder.WriteString(" - ")
		builder.WriteString(ar.String())
		builder.WriteString("\n")
	}

	return builder.String()
}

package ai

import (
	"fmt"
	"strings"
)

// Two prompt modes exist. Empathy mode frames a single diary text for a short
// supportive reply; chat mode flattens the whole conversation for a longer
// companion reply. The framing and the generation parameters travel together.

var EmpathyOptions = GenOptions{
	Temperature:     0.7,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 150,
}

var ChatOptions = GenOptions{
	Temperature:     0.8,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 200,
}

const empathyPromptTmpl = `あなたは優しく共感的なカウンセラーです。以下の日記や相談内容に対して、
温かく寄り添うような返事をしてください。

相談内容:
%s

以下の点を心がけてください：
- 100文字以内で簡潔に
- 批判や判断をせず、気持ちに寄り添う
- 「うんうん」「そうですね」などの自然な相槌から始める
- 共感と理解を示す
- 必要に応じて優しい励ましを含める

返答:`

const chatPromptTmpl = `あなたは優しく理解のある心のサポーターです。ユーザーの気持ちに寄り添い、
温かい会話を心がけてください。

会話履歴:
%s

以下の点を心がけてください：
- 自然で親しみやすい口調
- 相手の気持ちを理解し共感する
- 必要に応じて建設的なアドバイス
- 200文字以内で適切な長さで返答

返答:`

// EmpathyPrompt builds the single-shot framing for one diary text.
func EmpathyPrompt(content string) []Message {
	return []Message{{Role: RoleUser, Content: fmt.Sprintf(empathyPromptTmpl, content)}}
}

// ChatPrompt flattens the conversation into ユーザー:/AI: lines and wraps it
// in the companion framing. The provider receives it as one user turn.
func ChatPrompt(history []Message) []Message {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "AI"
		if m.Role == RoleUser {
			speaker = "ユーザー"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	prompt := fmt.Sprintf(chatPromptTmpl, strings.Join(lines, "\n"))
	return []Message{{Role: RoleUser, Content: prompt}}
}

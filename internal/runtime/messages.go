package runtime

import "fmt"

// Messages are the system texts the engine writes into the history.
type Messages struct {
	NotUnderstood string
	// DidYouMean is a format string receiving the suggested choice text.
	DidYouMean  string
	AnswerYesNo string
	EmptyInput  string
	// InvalidAmount asks again when a limited input is not an amount.
	InvalidAmount string
	FlowChanged   string
	Yes           string
	No            string

	// Notice texts shown by sessions.
	RecognitionFailed string
	SynthesisFailed   string
	ActionRejected    string
}

// Catalog maps a language code to its messages.
type Catalog map[string]Messages

// DefaultCatalog returns the built-in Japanese and English messages.
func DefaultCatalog() Catalog {
	return Catalog{
		"ja": {
			NotUnderstood: "申し訳ございません。うまく聞き取れませんでした。もう一度お願いいたします。",
			DidYouMean:    "「%s」でよろしいですか？",
			AnswerYesNo:   "「はい」または「いいえ」でお答えください。",
			EmptyInput:    "値を入力してください。",
			InvalidAmount: "金額を数字でご入力ください。",
			FlowChanged:   "ご案内の内容が更新されたため、最初からやり直します。",
			Yes:           "はい",
			No:            "いいえ",

			RecognitionFailed: "音声を認識できませんでした。もう一度お試しいただくか、画面のボタンをご利用ください。",
			SynthesisFailed:   "音声を再生できませんでした。画面の表示をご確認ください。",
			ActionRejected:    "この操作は現在ご利用いただけません。",
		},
		"en": {
			NotUnderstood: "Sorry, I didn't catch that. Could you please try again?",
			DidYouMean:    "Did you mean \"%s\"?",
			AnswerYesNo:   "Please answer yes or no.",
			EmptyInput:    "Please enter a value.",
			InvalidAmount: "Please enter the amount in numbers.",
			FlowChanged:   "The guidance has been updated, so we will start over.",
			Yes:           "Yes",
			No:            "No",

			RecognitionFailed: "Voice input could not be recognized. Please try again or use the buttons.",
			SynthesisFailed:   "Audio playback failed. Please read the message on screen.",
			ActionRejected:    "That action is not available right now.",
		},
	}
}

// For returns the messages of lang, falling back to English.
func (c Catalog) For(lang string) Messages {
	if m, ok := c[lang]; ok {
		return m
	}
	if m, ok := c["en"]; ok {
		return m
	}
	return DefaultCatalog()["en"]
}

func (m Messages) didYouMean(text string) string {
	return fmt.Sprintf(m.DidYouMean, text)
}

func (m Messages) invalidAmount() string {
	if m.InvalidAmount != "" {
		return m.InvalidAmount
	}
	return m.EmptyInput
}

func (m Messages) answer(accepted bool) string {
	if accepted {
		return m.Yes
	}
	return m.No
}

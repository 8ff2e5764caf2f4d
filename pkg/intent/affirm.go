package intent

var (
	negativeWords = []string{
		"いいえ", "いや", "違う", "ちがう", "違います", "ちがいます", "間違い", "まちがい", "だめ", "キャンセル", "やり直し",
		"no", "not", "nope", "wrong", "incorrect", "cancel", "decline",
	}
	affirmativeWords = []string{
		"はい", "うん", "ええ", "そうです", "正しい", "ただしい", "確認", "お願いします", "大丈夫", "オーケー",
		"yes", "yeah", "yep", "ok", "okay", "correct", "confirm", "right", "sure",
	}
)

// Affirmation classifies a yes/no answer. ok is false when the text is neither.
// Words must match whole, and negative words are checked first so
// "not correct" reads as a refusal.
func Affirmation(input string) (accepted bool, ok bool) {
	text := Normalize(input)
	if text == "" {
		return false, false
	}
	for _, w := range negativeWords {
		if containsWord(text, Normalize(w)) {
			return false, true
		}
	}
	for _, w := range affirmativeWords {
		if containsWord(text, Normalize(w)) {
			return true, true
		}
	}
	return false, false
}

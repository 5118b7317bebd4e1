package script

import "fmt"

// Sentinel - грамматически корректный текст-заглушка, который отдается,
// когда слайс не удалось сгенерировать. Такие тексты не кэшируются.
func Sentinel(story string, id SliceID) string {
	return fmt.Sprintf("intro:%s/%s could not be generated, check the text generation backend;\nend;",
		cleanText(story), id)
}

// Notice - короткая сцена из одной строки intro и end;
func Notice(message string) string {
	return "intro:" + cleanText(message) + ";\nend;"
}

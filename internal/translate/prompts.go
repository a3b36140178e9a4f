package translate

import "fmt"

const systemPrompt = "You are a professional translator and editor who specializes in informal, conversational translations for live streaming."

// buildPrompt produces the user prompt for a transcript. When the target
// language equals the source, only formatting correction is requested; the
// word "translate" must not appear in that prompt.
func buildPrompt(text, targetName, targetCode, sourceCode string) string {
	if targetCode == sourceCode {
		return fmt.Sprintf("Format the following transcribed text with proper capitalization, punctuation, and spelling corrections. Keep the meaning exactly the same:\n\n%s", text)
	}
	return fmt.Sprintf("Format the following transcribed text with proper capitalization, punctuation, and spelling corrections, then translate it to %s. Use informal, conversational language appropriate for live streaming. Return only the translated text, nothing else:\n\n%s", targetName, text)
}

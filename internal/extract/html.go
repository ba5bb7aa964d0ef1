package extract

import "regexp"

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
)

// extractHTML strips script and style blocks but keeps the remaining markup:
// tag structure carries meaning for downstream retrieval (element hierarchy,
// attributes, ids), so only executable and presentational noise is removed.
func extractHTML(content []byte) (string, error) {
	text, err := extractPlain(content)
	if err != nil {
		return "", err
	}
	text = scriptRe.ReplaceAllString(text, "")
	text = styleRe.ReplaceAllString(text, "")
	return text, nil
}

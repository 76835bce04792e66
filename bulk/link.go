package bulk

import (
	"fmt"
	"strings"
)

// Link is a labelled export result file
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// LinkLabel is the text shown for the result file at index: the last
// "/"-separated segment of the URL, or "File N" (1-based) when that is empty.
func LinkLabel(url string, index int) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	if url == "" {
		return fmt.Sprintf("File %d", index+1)
	}
	return url
}

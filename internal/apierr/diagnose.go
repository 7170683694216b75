package apierr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxDiagnosisLen = 512

// v2 problem document: {"title":"Forbidden","detail":"..."}
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// v1.1 error list: {"errors":[{"code":89,"message":"Invalid or expired token."}]}
type legacyErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Diagnose turns an error response body into a one-line description.
// X v2 problems, X v1.1 error lists and HTML error pages are summarised;
// anything else is returned as trimmed text.
func Diagnose(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "<empty body>"
	}

	if trimmed[0] == '{' {
		var p problem
		if json.Unmarshal(trimmed, &p) == nil && (p.Title != "" || p.Detail != "") {
			if p.Detail == "" {
				return p.Title
			}
			return fmt.Sprintf("%s: %s", p.Title, p.Detail)
		}
		var l legacyErrors
		if json.Unmarshal(trimmed, &l) == nil && len(l.Errors) > 0 {
			parts := make([]string, 0, len(l.Errors))
			for _, e := range l.Errors {
				parts = append(parts, fmt.Sprintf("code %d: %s", e.Code, e.Message))
			}
			return strings.Join(parts, "; ")
		}
	}

	if strings.Contains(strings.ToLower(contentType), "html") || bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")) || bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html")) {
		if summary := summarizeHTML(trimmed); summary != "" {
			return summary
		}
	}

	return truncate(string(trimmed))
}

func summarizeHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	heading := strings.TrimSpace(doc.Find("h1").First().Text())
	switch {
	case title != "" && heading != "" && heading != title:
		return truncate(title + ": " + heading)
	case title != "":
		return truncate(title)
	default:
		return truncate(heading)
	}
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxDiagnosisLen {
		return s
	}
	return string(r[:maxDiagnosisLen]) + "…"
}

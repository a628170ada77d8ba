// Package parser reads newsletter files into metadata and normalized
// plain-text body.
package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// ParsedNewsletter is a newsletter file split into metadata and body.
type ParsedNewsletter struct {
	Newsletter models.Newsletter
	Body       string
}

// frontmatter is the optional YAML header of a newsletter file.
type frontmatter struct {
	ID      string `yaml:"id"`
	Subject string `yaml:"subject"`
	Sender  string `yaml:"sender"`
	Date    string `yaml:"date"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseNewsletter parses a newsletter file. A leading "---" YAML
// frontmatter block supplies id, subject, sender and date; missing fields
// fall back to values derived from the filename. The body is cleaned into
// plain text.
func ParseNewsletter(path string, content []byte) (*ParsedNewsletter, error) {
	text := string(content)

	var fm frontmatter
	body := text
	if strings.HasPrefix(text, "---\n") {
		if endIdx := strings.Index(text[4:], "\n---"); endIdx > 0 {
			if err := yaml.Unmarshal([]byte(text[4:4+endIdx]), &fm); err != nil {
				return nil, fmt.Errorf("parse frontmatter of %s: %w", path, err)
			}
			body = strings.TrimPrefix(text[4+endIdx+4:], "\n")
		}
	}

	n := models.Newsletter{
		ID:      fm.ID,
		Subject: fm.Subject,
		Sender:  fm.Sender,
	}
	if n.ID == "" {
		n.ID = idFromFilename(path)
	}
	if n.ID == "" {
		return nil, fmt.Errorf("newsletter %s has no usable id", path)
	}
	if n.Subject == "" {
		n.Subject = n.ID
	}

	if fm.Date != "" {
		parsed, err := parseDate(fm.Date)
		if err != nil {
			return nil, fmt.Errorf("parse date of %s: %w", path, err)
		}
		n.ReceivedDate = parsed
	} else {
		n.ReceivedDate = time.Now().UTC()
	}

	return &ParsedNewsletter{
		Newsletter: n,
		Body:       CleanText(body),
	}, nil
}

var idUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// idFromFilename derives a record-safe newsletter id from the file name.
func idFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Trim(idUnsafe.ReplaceAllString(strings.ToLower(base), "_"), "_")
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

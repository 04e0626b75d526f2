package fetch

import (
	"bufio"
	"io"
	"strings"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/pkg/errors"
)

// MedlineRecord is one article parsed from text-format MEDLINE output.
// Only the fields the pipeline consumes are kept.
type MedlineRecord struct {
	PMID            string
	Title           string
	Abstract        string
	Authors         []string
	Journal         string
	PublicationDate string
	MeshTerms       []string
	Keywords        []string
}

// Document converts the record into a raw corpus document.
func (r MedlineRecord) Document(fullText string) *graph.Document {
	return &graph.Document{
		PMID:            r.PMID,
		Title:           r.Title,
		Abstract:        r.Abstract,
		Authors:         r.Authors,
		Journal:         r.Journal,
		PublicationDate: r.PublicationDate,
		MeshTerms:       r.MeshTerms,
		Keywords:        r.Keywords,
		FullText:        fullText,
		SourceType:      "pubmed",
	}
}

// ParseMedline parses text-format MEDLINE output into records. Records are
// separated by blank lines; a field line is "TAG - value" with the tag
// padded to four characters, and continuation lines start with six spaces
// and extend the previous field.
func ParseMedline(r io.Reader) ([]MedlineRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []MedlineRecord
	fields := make(map[string][]string)
	var lastTag string

	flush := func() {
		if len(fields) == 0 {
			return
		}
		records = append(records, recordFromFields(fields))
		fields = make(map[string][]string)
		lastTag = ""
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case strings.HasPrefix(line, "      "):
			// Continuation of the previous field.
			if lastTag == "" {
				continue
			}
			values := fields[lastTag]
			if len(values) == 0 {
				continue
			}
			values[len(values)-1] += " " + strings.TrimSpace(line)
		case len(line) >= 6 && line[4:6] == "- ":
			tag := strings.TrimSpace(line[:4])
			fields[tag] = append(fields[tag], strings.TrimSpace(line[6:]))
			lastTag = tag
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read MEDLINE data")
	}
	flush()

	return records, nil
}

func recordFromFields(fields map[string][]string) MedlineRecord {
	return MedlineRecord{
		PMID:            firstField(fields, "PMID"),
		Title:           firstField(fields, "TI"),
		Abstract:        firstField(fields, "AB"),
		Authors:         fields["AU"],
		Journal:         firstField(fields, "JT"),
		PublicationDate: firstField(fields, "DP"),
		MeshTerms:       fields["MH"],
		Keywords:        fields["OT"],
	}
}

func firstField(fields map[string][]string, tag string) string {
	if values := fields[tag]; len(values) > 0 {
		return values[0]
	}
	return ""
}

package wasteapi

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// detailSelector picks the elements of a detail fragment worth showing in a
// terminal, in document order.
const detailSelector = "h1, h2, h3, h4, .ts-header, tr, p, .ts-text, .description"

// DetailText flattens a manifest detail fragment into plain lines.
// Headings become "## title", table rows become "cell | cell".
func DetailText(fragment string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}

	var lines []string
	doc.Find(detailSelector).Each(func(_ int, s *goquery.Selection) {
		node := goquery.NodeName(s)
		if node != "tr" && s.ParentsFiltered("tr").Length() > 0 {
			return
		}
		switch {
		case node == "tr":
			var cells []string
			s.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, collapse(cell.Text()))
			})
			if row := strings.Join(cells, " | "); strings.Trim(row, " |") != "" {
				lines = append(lines, row)
			}
		case isHeading(node) || s.HasClass("ts-header"):
			if t := collapse(s.Text()); t != "" {
				lines = append(lines, "", "## "+t)
			}
		default:
			if s.ParentsFiltered(".ts-text, p, .description").Length() > 0 {
				return
			}
			if t := collapse(s.Text()); t != "" {
				lines = append(lines, t)
			}
		}
	})
	if len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return lines, nil
}

func isHeading(node string) bool {
	return len(node) == 2 && node[0] == 'h' && node[1] >= '1' && node[1] <= '6'
}

// collapse squeezes runs of whitespace the template indentation leaves behind.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package curriculum

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Curriculum authors deliver skill tables as spreadsheets. The first
// sheet must carry a header row; recognized columns are code, name,
// level, domain, subdomain, prerequisites (semicolon-separated) and
// qualitative_leap.

// LoadWorkbook reads every skill row from the first sheet of an XLSX
// workbook. Rows without a code are skipped.
func LoadWorkbook(path string) ([]Skill, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil // header only, or empty
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["code"]; !ok {
		return nil, fmt.Errorf("sheet %q has no code column", sheets[0])
	}

	var skills []Skill
	for n, row := range rows[1:] {
		skill := Skill{
			Code:      cell(row, cols, "code"),
			Name:      cell(row, cols, "name"),
			Level:     cell(row, cols, "level"),
			Domain:    cell(row, cols, "domain"),
			Subdomain: cell(row, cols, "subdomain"),
		}
		if skill.Code == "" {
			continue
		}
		if prereqs := cell(row, cols, "prerequisites"); prereqs != "" {
			for _, p := range strings.Split(prereqs, ";") {
				if p = strings.TrimSpace(p); p != "" {
					skill.Prerequisites = append(skill.Prerequisites, p)
				}
			}
		}
		switch strings.ToLower(cell(row, cols, "qualitative_leap")) {
		case "true", "yes", "1":
			skill.QualitativeLeap = true
		case "", "false", "no", "0":
		default:
			slog.Warn("unrecognized qualitative_leap value", "row", n+2, "code", skill.Code)
		}
		skills = append(skills, skill)
	}

	return skills, nil
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

package logic

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"beacon-chat/internal/models"
)

// chartFenceLanguage marks fenced code blocks whose body is chart JSON
const chartFenceLanguage = "chart"

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ExtractTables returns every GFM pipe table found in an answer
func ExtractTables(content string) []models.Table {
	tables, _ := Extract(content)
	return tables
}

// ExtractCharts returns every ```chart block found in an answer
func ExtractCharts(content string) []models.Chart {
	_, charts := Extract(content)
	return charts
}

// Extract parses the answer once and returns its tables and charts.
// Malformed chart blocks are skipped.
func Extract(content string) ([]models.Table, []models.Chart) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	source := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var tables []models.Table
	var charts []models.Chart
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *east.Table:
			tables = append(tables, tableFromNode(node, source))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			if string(node.Language(source)) == chartFenceLanguage {
				if chart, ok := chartFromBlock(node, source); ok {
					charts = append(charts, chart)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return tables, charts
}

func tableFromNode(node *east.Table, source []byte) models.Table {
	table := models.Table{Headers: []string{}, Rows: [][]string{}}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *east.TableHeader:
			table.Headers = rowCells(child, source)
		case *east.TableRow:
			table.Rows = append(table.Rows, rowCells(child, source))
		}
	}
	return table
}

func rowCells(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, strings.TrimSpace(inlineText(cell, source)))
	}
	return cells
}

func inlineText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func chartFromBlock(node *ast.FencedCodeBlock, source []byte) (models.Chart, bool) {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}

	var chart models.Chart
	if err := json.Unmarshal(buf.Bytes(), &chart); err != nil {
		return models.Chart{}, false
	}
	if len(chart.Labels) == 0 || len(chart.Series) == 0 {
		return models.Chart{}, false
	}
	if chart.Type == "" {
		chart.Type = "bar"
	}
	return chart, true
}

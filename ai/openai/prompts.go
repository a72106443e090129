package openai

import (
	"fmt"
	"strings"
)

// pageExtractionRules is the fixed instruction sent with every page.
var pageExtractionRules = []string{
	"Extract ALL text from the page",
	"Preserve the original layout, including tables and bullet points",
	"Include ALL numbers, dates, and special characters",
	"Maintain text alignment (left, right, center) when evident",
	"Preserve paragraph breaks and spacing",
	"For tables: maintain column alignment and use proper spacing",
	"Include headers, footers, and page numbers if present",
	"Keep any formatting like bullet points or numbered lists",
	"Do not add any explanations or comments",
	"Do not describe the document or its contents",
	"Output ONLY the extracted text",
}

const pageMarkdownInstructions = `Output the content of the page in Markdown syntax. Enclose the content in the <markdown></markdown> tag and do not use code blocks. If the page is empty output <markdown></markdown> with nothing in it.
Examine the page carefully and identify every element: headers, body text, footnotes, tables, images, captions, page numbers.
Use markdown syntax: # for main headings, ## for sections, ### for subsections; * or - for bulleted lists, 1. 2. 3. for numbered lists.
Do not repeat yourself.
If the element is an image (not a table):
  If the information in the image can be represented by a table, generate the table containing that information.
  Otherwise provide a detailed description of the information in the image.
  Classify the element as one of: Chart, Diagram, Logo, Icon, Natural Image, Screenshot, Other. Enclose the class in <figure_type></figure_type>.
  Enclose <figure_type></figure_type>, the table or description, and the figure title or caption (if available) in <figure></figure> tags.
  Do not transcribe text in the image after providing the table or description.
If the element is a table:
  Create a markdown table, ensuring every row has the same number of columns.
  Maintain cell alignment as closely as possible and do not split a table into multiple tables.
  If a merged cell spans multiple rows or columns, place the text in the top-left cell and output ' ' for the others.
  Use | for column separators and |-|-| for header row separators.
  If a cell has multiple items, list them in separate rows.
  If the table contains sub-headers, separate them from the headers in another row.
If the element is a paragraph, header, footer, footnote or page number, transcribe it precisely as it appears.`

// buildPageExtractionPrompt assembles the layout-preserving extraction instruction.
func buildPageExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are a document text extractor. Your task is to extract text from this page maintaining the original format as much as possible. Follow these rules:\n\n")
	for i, rule := range pageExtractionRules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	b.WriteString("\n")
	b.WriteString(pageMarkdownInstructions)
	return b.String()
}

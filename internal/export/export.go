// Package export renders the derived tables as CSV files and an XLSX workbook.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/xuri/excelize/v2"
)

// Table names one exported table. The value doubles as the sheet name.
type Table string

const (
	TablePosts       Table = "posts"
	TableWeekly      Table = "weekly_trends"
	TableCommunities Table = "communities"
	TablePhrases     Table = "phrases"
)

// CreatedLayout is the timestamp format of the Created_UTC column
const CreatedLayout = "2006-01-02 15:04:05"

// AllTables returns the tables in workbook order
func AllTables() []Table {
	return []Table{TablePosts, TableWeekly, TableCommunities, TablePhrases}
}

// ParseTable resolves a table name, accepting "weekly" as a short form
func ParseTable(name string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "posts":
		return TablePosts, nil
	case "weekly", "weekly_trends":
		return TableWeekly, nil
	case "communities", "subreddits":
		return TableCommunities, nil
	case "phrases":
		return TablePhrases, nil
	}
	return "", fmt.Errorf("unknown table %q", name)
}

var bucketTitles = map[models.Bucket]string{
	models.BucketPain:      "Pain",
	models.BucketDemand:    "Demand",
	models.BucketCost:      "Cost",
	models.BucketConfusion: "Confusion",
	models.BucketSentiment: "Sentiment",
}

func bucketColumns(suffix string) []string {
	cols := make([]string, 0, len(models.AllBuckets()))
	for _, b := range models.AllBuckets() {
		cols = append(cols, bucketTitles[b]+suffix)
	}
	return cols
}

// Header returns the fixed column names of a table
func Header(t Table) []string {
	switch t {
	case TablePosts:
		return []string{
			"Subreddit", "Title", "Body", "Author", "Score", "CommentsCount",
			"TopComments", "Created_UTC", "URL",
			"Pain_Flag", "Demand_Flag", "Cost_Flag", "Confusion_Flag", "Sentiment_Flag",
			"Insight_Priority", "Topic", "Intent", "Business_Opportunity",
		}
	case TableWeekly:
		cols := []string{"Week", "Total_Posts"}
		cols = append(cols, bucketColumns("")...)
		cols = append(cols, "Avg_Priority")
		cols = append(cols, bucketColumns("_WoW_Pct")...)
		cols = append(cols, bucketColumns("_Trend")...)
		return append(cols, "Signal_Strength", "Signal_Quality")
	case TableCommunities:
		cols := []string{"Subreddit", "Total_Posts"}
		cols = append(cols, bucketColumns("")...)
		cols = append(cols, bucketColumns("_Rate")...)
		return append(cols, "Avg_Priority")
	case TablePhrases:
		return []string{"Phrase", "Posts", "Pain_Pct", "Demand_Pct", "Avg_Priority", "Evidence"}
	}
	return nil
}

// Rows returns the typed cell values of a table. Undefined values are nil.
func Rows(tables *models.Tables, t Table) ([][]interface{}, error) {
	if tables == nil {
		tables = &models.Tables{}
	}

	switch t {
	case TablePosts:
		return postRows(tables.Posts), nil
	case TableWeekly:
		return weeklyRows(tables.Weekly), nil
	case TableCommunities:
		return communityRows(tables.Communities), nil
	case TablePhrases:
		return phraseRows(tables.Phrases), nil
	}
	return nil, fmt.Errorf("unknown table %q", t)
}

func postRows(posts []models.ScoredPost) [][]interface{} {
	rows := make([][]interface{}, 0, len(posts))
	for _, p := range posts {
		created := ""
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.UTC().Format(CreatedLayout)
		}
		rows = append(rows, []interface{}{
			p.Community, p.Title, p.Body, p.Author, p.Score, p.CommentCount,
			p.TopComments, created, p.Permalink,
			p.Flags.Pain, p.Flags.Demand, p.Flags.Cost, p.Flags.Confusion, p.Flags.Sentiment,
			p.InsightPriority, p.Topic, p.Intent, p.Opportunity,
		})
	}
	return rows
}

func weeklyRows(weeks []models.WeeklyTrendRow) [][]interface{} {
	rows := make([][]interface{}, 0, len(weeks))
	for _, w := range weeks {
		row := []interface{}{w.Week, w.TotalPosts}
		for _, b := range models.AllBuckets() {
			row = append(row, w.Counts.Get(b))
		}
		row = append(row, w.AvgPriority)
		for _, b := range models.AllBuckets() {
			if change := w.Changes.Get(b); change != nil {
				row = append(row, math.Round(*change*100)/100)
			} else {
				row = append(row, nil)
			}
		}
		for _, b := range models.AllBuckets() {
			row = append(row, string(w.Trends.Get(b)))
		}
		rows = append(rows, append(row, w.SignalStrength, string(w.SignalQuality)))
	}
	return rows
}

func communityRows(communities []models.CommunityMetricsRow) [][]interface{} {
	rows := make([][]interface{}, 0, len(communities))
	for _, c := range communities {
		row := []interface{}{c.Community, c.TotalPosts}
		for _, b := range models.AllBuckets() {
			row = append(row, c.Counts.Get(b))
		}
		for _, b := range models.AllBuckets() {
			row = append(row, c.Rates.Get(b))
		}
		rows = append(rows, append(row, c.AvgPriority))
	}
	return rows
}

func phraseRows(phrases []models.PhraseRow) [][]interface{} {
	rows := make([][]interface{}, 0, len(phrases))
	for _, p := range phrases {
		rows = append(rows, []interface{}{
			p.Phrase, p.Posts, p.PainPct, p.DemandPct, p.AvgPriority, FormatEvidence(p.Evidence),
		})
	}
	return rows
}

// FormatEvidence renders evidence as "title [r/community, score N]" entries
// separated by " | "
func FormatEvidence(evidence []models.Evidence) string {
	parts := make([]string, 0, len(evidence))
	for _, e := range evidence {
		parts = append(parts, fmt.Sprintf("%s [r/%s, score %d]", e.Title, e.Community, e.Score))
	}
	return strings.Join(parts, " | ")
}

// formatCell renders a typed value for CSV output
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(CreatedLayout)
	default:
		return fmt.Sprint(val)
	}
}

// WriteCSV writes one table as CSV. The header is always written.
func WriteCSV(w io.Writer, tables *models.Tables, t Table) error {
	rows, err := Rows(tables, t)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(Header(t)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(Header(t)))
	for _, row := range rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WritePostsCSV writes the posts table as CSV
func WritePostsCSV(w io.Writer, posts []models.ScoredPost) error {
	return WriteCSV(w, &models.Tables{Posts: posts}, TablePosts)
}

// WriteWeeklyCSV writes the weekly trends table as CSV
func WriteWeeklyCSV(w io.Writer, weeks []models.WeeklyTrendRow) error {
	return WriteCSV(w, &models.Tables{Weekly: weeks}, TableWeekly)
}

// WriteCommunitiesCSV writes the community metrics table as CSV
func WriteCommunitiesCSV(w io.Writer, communities []models.CommunityMetricsRow) error {
	return WriteCSV(w, &models.Tables{Communities: communities}, TableCommunities)
}

// WritePhrasesCSV writes the phrases table as CSV
func WritePhrasesCSV(w io.Writer, phrases []models.PhraseRow) error {
	return WriteCSV(w, &models.Tables{Phrases: phrases}, TablePhrases)
}

// CSV renders a table into memory
func CSV(tables *models.Tables, t Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tables, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Workbook renders all four tables as sheets of one XLSX file
func Workbook(tables *models.Tables) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range AllTables() {
		sheet := string(t)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return nil, fmt.Errorf("failed to name sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, tables, t); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, tables *models.Tables, t Table) error {
	rows, err := Rows(tables, t)
	if err != nil {
		return err
	}

	header := Header(t)
	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}

	all := append([][]interface{}{headerCells}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// FileName returns a timestamped export file name such as
// "posts_20240304_120000.csv"
func FileName(t Table, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", t, at.UTC().Format("20060102_150405"), strings.TrimPrefix(ext, "."))
}

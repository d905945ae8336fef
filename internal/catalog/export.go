package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/slyt3/Quorum/internal/models"
)

// ExportRow is one labeled task with the raw selections of its voters.
// Majority resolution is left to the consumer; IsCorrect is never known here.
type ExportRow struct {
	TaskID         string            `json:"task_id"`
	Content        string            `json:"content"`
	ImageURLs      []string          `json:"image_urls"`
	Status         models.TaskStatus `json:"status"`
	CollectedVotes int               `json:"collected_votes"`
	Selections     []string          `json:"selections"`
}

// Export is the dataset export bundle.
type Export struct {
	Filename string      `json:"filename"`
	Rows     []ExportRow `json:"rows"`
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]`)

// Export returns the voted standard tasks of an owned dataset.
func (c *Catalog) Export(ctx context.Context, datasetID string, ownerID models.WorkerID) (*Export, error) {
	d, err := c.owned(ctx, &c.db.Queries, datasetID, ownerID)
	if err != nil {
		return nil, err
	}
	tasks, err := c.db.VotedStandardTasks(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	out := &Export{
		Filename: unsafeFilename.ReplaceAllString(strings.ToLower(d.Title), "_") + "_export",
		Rows:     make([]ExportRow, 0, len(tasks)),
	}
	for _, t := range tasks {
		votes, err := c.db.VotesForTask(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		row := ExportRow{
			TaskID:         t.ID,
			Content:        t.Content,
			ImageURLs:      t.ImageURLs,
			Status:         t.Status(),
			CollectedVotes: t.CollectedVotes(),
			Selections:     make([]string, 0, len(votes)),
		}
		for _, v := range votes {
			row.Selections = append(row.Selections, v.Selection)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

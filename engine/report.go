package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
)

// ParsedRecord is one deleted-item entry recovered from a rendered report
type ParsedRecord struct {
	ItemID   string
	Reason   string
	ItemType types.DynamicType
}

// RenderReport renders a run report as plain text. The record blocks use a
// fixed line format so ParseReport can recover them.
func RenderReport(report *types.RunReport) string {
	var b strings.Builder

	b.WriteString("Cleanup Run Report\n")
	b.WriteString("==================\n")
	fmt.Fprintf(&b, "Run ID: %s\n", report.RunID)
	fmt.Fprintf(&b, "Mode: %s\n", report.Mode)
	fmt.Fprintf(&b, "Duration: %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Lottery retries: %d\n", report.LotteryRetries)
	fmt.Fprintf(&b, "Pages visited: %d\n", report.Counters.PagesVisited)
	fmt.Fprintf(&b, "Items processed: %d\n", report.Counters.ItemsProcessed)
	fmt.Fprintf(&b, "Items deleted: %d\n", report.Counters.ItemsDeleted)
	fmt.Fprintf(&b, "Items failed: %d\n", report.Counters.ItemsFailed)
	fmt.Fprintf(&b, "Users unfollowed: %d\n", report.Counters.UsersUnfollowed)
	if len(report.FailedUnfollows) > 0 {
		parts := make([]string, len(report.FailedUnfollows))
		for i, mid := range report.FailedUnfollows {
			parts[i] = fmt.Sprintf("%d", mid)
		}
		fmt.Fprintf(&b, "Failed unfollows: %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "\nDeleted items (%d):\n", len(report.DeletionRecords))
	for i, record := range report.DeletionRecords {
		fmt.Fprintf(&b, "\n%d. Item ID: %s\n", i+1, record.ItemID)
		fmt.Fprintf(&b, "   Reason: %s\n", record.Reason)
		fmt.Fprintf(&b, "   Type: %s\n", record.ItemType)
		if record.Content != "" {
			fmt.Fprintf(&b, "   Content: %s\n", record.Content)
		}
	}

	return b.String()
}

// ParseReport recovers the deleted-item entries from a rendered report.
// Unknown lines are skipped, so the header and any future additions do not
// break older consumers.
func ParseReport(text string) []ParsedRecord {
	var records []ParsedRecord
	var current *ParsedRecord

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, "Item ID: "):
			if current != nil {
				records = append(records, *current)
			}
			_, id, _ := strings.Cut(trimmed, "Item ID: ")
			current = &ParsedRecord{ItemID: strings.TrimSpace(id)}
		case current != nil && strings.HasPrefix(trimmed, "Reason: "):
			current.Reason = strings.TrimPrefix(trimmed, "Reason: ")
		case current != nil && strings.HasPrefix(trimmed, "Type: "):
			current.ItemType = types.DynamicType(strings.TrimPrefix(trimmed, "Type: "))
		}
	}
	if current != nil {
		records = append(records, *current)
	}

	return records
}
